package gitrepo

import (
	"strings"
)

const (
	configLineFeedConstant          = "\n"
	configCarriageReturnConstant    = "\r\n"
	configOptionIndentConstant      = "\t"
	configAssignmentConstant        = " = "
	sectionHeaderOpenConstant       = "["
	sectionHeaderCloseConstant      = "]"
	sectionHeaderQuoteConstant      = `"`
	configCommentPrefixesConstant   = "#;"
	configValueSpecialCharsConstant = "#;"
	configContinuationConstant      = '\\'
)

var configValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)

var subsectionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

type configSectionHeader struct {
	section       string
	subsection    string
	hasSubsection bool
	legacy        bool
}

func (header configSectionHeader) matches(sectionName string, subsection string, hasSubsection bool) bool {
	if !strings.EqualFold(header.section, sectionName) || header.hasSubsection != hasSubsection {
		return false
	}
	if !hasSubsection {
		return true
	}
	if header.legacy {
		return strings.EqualFold(header.subsection, subsection)
	}
	return header.subsection == subsection
}

// spliceConfigValue sets key to value in git config text. Only the last assignment of the
// option in a matching section is replaced; when none exists the option is added at the end
// of the last matching section, or a new section is appended. All other bytes are kept.
func spliceConfigValue(content []byte, key string, value string) []byte {
	sectionName, optionName, _ := splitConfigKey(key)
	subsection, hasSubsection := subsectionName(key)
	lines := splitConfigLines(string(content))

	insideTarget := false
	lastTargetLine := -1
	optionStart, optionEnd := -1, -1
	for lineIndex := 0; lineIndex < len(lines); lineIndex++ {
		trimmedLine := strings.TrimSpace(lines[lineIndex])
		if strings.HasPrefix(trimmedLine, sectionHeaderOpenConstant) {
			header, parsed := parseSectionHeader(trimmedLine)
			insideTarget = parsed && header.matches(sectionName, subsection, hasSubsection)
			if insideTarget {
				lastTargetLine = lineIndex
			}
			continue
		}
		if !insideTarget || len(trimmedLine) == 0 || strings.ContainsRune(configCommentPrefixesConstant, rune(trimmedLine[0])) {
			continue
		}
		statementEnd := lineIndex
		for statementEnd < len(lines)-1 && hasContinuation(lines[statementEnd]) {
			statementEnd++
		}
		if strings.EqualFold(optionKey(trimmedLine), optionName) {
			optionStart, optionEnd = lineIndex, statementEnd
		}
		lastTargetLine = statementEnd
		lineIndex = statementEnd
	}

	encodedValue := encodeConfigValue(value)
	var builder strings.Builder
	switch {
	case optionStart >= 0:
		writeLines(&builder, lines[:optionStart])
		originalLine := lines[optionStart]
		indentation := originalLine[:len(originalLine)-len(strings.TrimLeft(originalLine, " \t"))]
		builder.WriteString(indentation + optionKey(strings.TrimSpace(originalLine)) + configAssignmentConstant + encodedValue)
		builder.WriteString(lineTerminator(lines[optionEnd]))
		writeLines(&builder, lines[optionEnd+1:])
	case lastTargetLine >= 0:
		writeLines(&builder, lines[:lastTargetLine+1])
		ensureTrailingNewline(&builder)
		builder.WriteString(configOptionIndentConstant + optionName + configAssignmentConstant + encodedValue + configLineFeedConstant)
		writeLines(&builder, lines[lastTargetLine+1:])
	default:
		writeLines(&builder, lines)
		ensureTrailingNewline(&builder)
		builder.WriteString(formatSectionHeader(sectionName, subsection, hasSubsection) + configLineFeedConstant)
		builder.WriteString(configOptionIndentConstant + optionName + configAssignmentConstant + encodedValue + configLineFeedConstant)
	}
	return []byte(builder.String())
}

func splitConfigLines(text string) []string {
	lines := strings.SplitAfter(text, configLineFeedConstant)
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeLines(builder *strings.Builder, lines []string) {
	for _, line := range lines {
		builder.WriteString(line)
	}
}

func ensureTrailingNewline(builder *strings.Builder) {
	if builder.Len() > 0 && !strings.HasSuffix(builder.String(), configLineFeedConstant) {
		builder.WriteString(configLineFeedConstant)
	}
}

func lineTerminator(line string) string {
	switch {
	case strings.HasSuffix(line, configCarriageReturnConstant):
		return configCarriageReturnConstant
	case strings.HasSuffix(line, configLineFeedConstant):
		return configLineFeedConstant
	default:
		return ""
	}
}

// hasContinuation reports whether the line ends with an odd number of backslashes.
func hasContinuation(line string) bool {
	trimmedLine := strings.TrimRight(line, "\r\n")
	backslashCount := 0
	for index := len(trimmedLine) - 1; index >= 0 && trimmedLine[index] == configContinuationConstant; index-- {
		backslashCount++
	}
	return backslashCount%2 == 1
}

func optionKey(trimmedLine string) string {
	if separatorIndex := strings.IndexAny(trimmedLine, "= \t"); separatorIndex >= 0 {
		return trimmedLine[:separatorIndex]
	}
	return trimmedLine
}

// parseSectionHeader understands [section], [section "subsection"], and the legacy
// [section.subsection] forms.
func parseSectionHeader(trimmedLine string) (configSectionHeader, bool) {
	body := strings.TrimPrefix(trimmedLine, sectionHeaderOpenConstant)
	if quoteIndex := strings.Index(body, sectionHeaderQuoteConstant); quoteIndex >= 0 {
		header := configSectionHeader{section: strings.TrimSpace(body[:quoteIndex]), hasSubsection: true}
		var subsection strings.Builder
		remainder := body[quoteIndex+1:]
		for index := 0; index < len(remainder); index++ {
			switch remainder[index] {
			case '\\':
				if index+1 < len(remainder) {
					index++
					subsection.WriteByte(remainder[index])
				}
			case '"':
				if !strings.HasPrefix(strings.TrimSpace(remainder[index+1:]), sectionHeaderCloseConstant) {
					return configSectionHeader{}, false
				}
				header.subsection = subsection.String()
				return header, true
			default:
				subsection.WriteByte(remainder[index])
			}
		}
		return configSectionHeader{}, false
	}

	closingIndex := strings.Index(body, sectionHeaderCloseConstant)
	if closingIndex < 0 {
		return configSectionHeader{}, false
	}
	name := strings.TrimSpace(body[:closingIndex])
	if dotIndex := strings.Index(name, configKeySeparatorConstant); dotIndex >= 0 {
		return configSectionHeader{section: name[:dotIndex], subsection: name[dotIndex+1:], hasSubsection: true, legacy: true}, true
	}
	return configSectionHeader{section: name}, true
}

func formatSectionHeader(sectionName string, subsection string, hasSubsection bool) string {
	if !hasSubsection {
		return sectionHeaderOpenConstant + sectionName + sectionHeaderCloseConstant
	}
	return sectionHeaderOpenConstant + sectionName + " " + sectionHeaderQuoteConstant + subsectionEscaper.Replace(subsection) + sectionHeaderQuoteConstant + sectionHeaderCloseConstant
}

// encodeConfigValue quotes values that would otherwise lose surrounding whitespace or be cut
// at a comment character.
func encodeConfigValue(value string) string {
	escapedValue := configValueEscaper.Replace(value)
	if value != strings.TrimSpace(value) || strings.ContainsAny(value, configValueSpecialCharsConstant) {
		return sectionHeaderQuoteConstant + escapedValue + sectionHeaderQuoteConstant
	}
	return escapedValue
}
