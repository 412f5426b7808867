package sshconfig

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kevinburke/ssh_config"
)

const (
	beginMarkerTemplateConstant               = "# >>> gitid managed host: %s >>>"
	endMarkerTemplateConstant                 = "# <<< gitid managed host: %s <<<"
	hostLineTemplateConstant                  = "Host %s"
	directiveLineTemplateConstant             = "  %s %s"
	hostKeywordConstant                       = "host"
	hostNameDirectiveConstant                 = "HostName"
	userDirectiveConstant                     = "User"
	identityFileDirectiveConstant             = "IdentityFile"
	identitiesOnlyDirectiveConstant           = "IdentitiesOnly"
	matchKeywordConstant                      = "match"
	includeKeywordConstant                    = "include"
	yesValueConstant                          = "yes"
	noValueConstant                           = "no"
	newlineConstant                           = "\n"
	quoteConstant                             = `"`
	commentPrefixConstant                     = "#"
	parseErrorTemplateConstant                = "ssh config line %d: %s"
	unterminatedBlockMessageTemplateConstant  = "managed block %q is not terminated"
	unexpectedEndMessageTemplateConstant      = "end marker for %q without a begin marker"
	nestedBeginMessageTemplateConstant        = "begin marker for %q inside managed block %q"
	mismatchedEndMessageTemplateConstant      = "end marker for %q closes managed block %q"
	duplicateAliasMessageTemplateConstant     = "managed block %q appears more than once"
	hostLineMismatchMessageTemplateConstant   = "managed block %q must start with Host %s"
	unsupportedKeywordMessageTemplateConstant = "managed block %q contains unsupported keyword %s"
	decodeBodyMessageTemplateConstant         = "managed block %q cannot be decoded: %v"
	aliasConflictTemplateConstant             = "Host %s is already defined at line %d outside gitid managed blocks"
	hostPatternWildcardsConstant              = "*?!"
	keywordSeparatorsConstant                 = " \t="
)

// ErrHostAliasConflict indicates an alias already declared by a Host entry gitid does not manage.
var ErrHostAliasConflict = errors.New("host alias is defined outside managed blocks")

// HostAliasConflictError reports the unmanaged Host line that already claims an alias.
type HostAliasConflictError struct {
	Alias string
	Line  int
}

// Error describes the conflicting entry.
func (conflictError HostAliasConflictError) Error() string {
	return fmt.Sprintf(aliasConflictTemplateConstant, conflictError.Alias, conflictError.Line)
}

// Is matches ErrHostAliasConflict.
func (conflictError HostAliasConflictError) Is(target error) bool {
	return target == ErrHostAliasConflict
}

var (
	beginMarkerPattern = regexp.MustCompile(`^# >>> gitid managed host: (\S+) >>>$`)
	endMarkerPattern   = regexp.MustCompile(`^# <<< gitid managed host: (\S+) <<<$`)
)

// SSHConfigParseError reports an SSH config whose managed blocks cannot be delimited safely.
type SSHConfigParseError struct {
	Line    int
	Message string
}

// Error describes the malformed region.
func (parseError SSHConfigParseError) Error() string {
	return fmt.Sprintf(parseErrorTemplateConstant, parseError.Line, parseError.Message)
}

// HostBlock is one managed Host entry.
type HostBlock struct {
	Alias          string
	HostName       string
	User           string
	IdentityFile   string
	IdentitiesOnly bool
}

// Render produces the canonical managed text for the block, markers included.
func (host HostBlock) Render() []byte {
	identitiesOnly := noValueConstant
	if host.IdentitiesOnly {
		identitiesOnly = yesValueConstant
	}
	lines := []string{
		fmt.Sprintf(beginMarkerTemplateConstant, host.Alias),
		fmt.Sprintf(hostLineTemplateConstant, host.Alias),
		fmt.Sprintf(directiveLineTemplateConstant, hostNameDirectiveConstant, host.HostName),
		fmt.Sprintf(directiveLineTemplateConstant, userDirectiveConstant, host.User),
		fmt.Sprintf(directiveLineTemplateConstant, identityFileDirectiveConstant, quoteIfNeeded(host.IdentityFile)),
		fmt.Sprintf(directiveLineTemplateConstant, identitiesOnlyDirectiveConstant, identitiesOnly),
		fmt.Sprintf(endMarkerTemplateConstant, host.Alias),
	}
	return []byte(strings.Join(lines, newlineConstant) + newlineConstant)
}

type segment struct {
	managed   bool
	separator bool
	alias     string
	host      HostBlock
	content   []byte
}

// Document is an SSH config split into opaque regions, kept byte-for-byte, and managed host blocks.
// Documents are values: Upsert and Remove return modified copies.
type Document struct {
	segments []segment
	// unmanagedHosts maps literal Host patterns found in opaque regions to their first line.
	unmanagedHosts map[string]int
}

// Parse splits content into opaque and managed segments. Malformed marker structure fails closed.
func Parse(content []byte) (Document, error) {
	document := Document{unmanagedHosts: map[string]int{}}
	var opaque bytes.Buffer
	var managed *segment
	var managedBody bytes.Buffer
	managedStartLine := 0
	seenAliases := map[string]struct{}{}

	lines := bytes.SplitAfter(content, []byte(newlineConstant))
	for lineIndex, rawLine := range lines {
		if len(rawLine) == 0 {
			continue
		}
		lineNumber := lineIndex + 1
		trimmedLine := strings.TrimSpace(string(rawLine))

		if beginMatch := beginMarkerPattern.FindStringSubmatch(trimmedLine); beginMatch != nil {
			if managed != nil {
				return Document{}, SSHConfigParseError{Line: lineNumber, Message: fmt.Sprintf(nestedBeginMessageTemplateConstant, beginMatch[1], managed.alias)}
			}
			if opaque.Len() > 0 {
				document.segments = append(document.segments, segment{content: bytes.Clone(opaque.Bytes())})
				opaque.Reset()
			}
			managed = &segment{managed: true, alias: beginMatch[1]}
			managed.content = append(managed.content, rawLine...)
			managedBody.Reset()
			managedStartLine = lineNumber
			continue
		}

		if endMatch := endMarkerPattern.FindStringSubmatch(trimmedLine); endMatch != nil {
			if managed == nil {
				return Document{}, SSHConfigParseError{Line: lineNumber, Message: fmt.Sprintf(unexpectedEndMessageTemplateConstant, endMatch[1])}
			}
			if endMatch[1] != managed.alias {
				return Document{}, SSHConfigParseError{Line: lineNumber, Message: fmt.Sprintf(mismatchedEndMessageTemplateConstant, endMatch[1], managed.alias)}
			}
			if _, duplicate := seenAliases[managed.alias]; duplicate {
				return Document{}, SSHConfigParseError{Line: managedStartLine, Message: fmt.Sprintf(duplicateAliasMessageTemplateConstant, managed.alias)}
			}
			host, decodeError := decodeManagedBody(managed.alias, managedBody.Bytes(), managedStartLine)
			if decodeError != nil {
				return Document{}, decodeError
			}
			managed.content = append(managed.content, rawLine...)
			managed.host = host
			seenAliases[managed.alias] = struct{}{}
			document.segments = append(document.segments, *managed)
			managed = nil
			continue
		}

		if managed != nil {
			managed.content = append(managed.content, rawLine...)
			managedBody.Write(rawLine)
			continue
		}
		for _, pattern := range hostPatterns(trimmedLine) {
			if _, seen := document.unmanagedHosts[pattern]; !seen {
				document.unmanagedHosts[pattern] = lineNumber
			}
		}
		opaque.Write(rawLine)
	}

	if managed != nil {
		return Document{}, SSHConfigParseError{Line: managedStartLine, Message: fmt.Sprintf(unterminatedBlockMessageTemplateConstant, managed.alias)}
	}
	if opaque.Len() > 0 {
		document.segments = append(document.segments, segment{content: bytes.Clone(opaque.Bytes())})
	}
	return document, nil
}

// Render reassembles the document.
func (document Document) Render() []byte {
	var buffer bytes.Buffer
	for _, documentSegment := range document.segments {
		buffer.Write(documentSegment.content)
	}
	return buffer.Bytes()
}

// Lookup returns the managed block for alias.
func (document Document) Lookup(alias string) (HostBlock, bool) {
	for _, documentSegment := range document.segments {
		if documentSegment.managed && documentSegment.alias == alias {
			return documentSegment.host, true
		}
	}
	return HostBlock{}, false
}

// IsCurrent reports whether a managed block for host.Alias exists with exactly these directives.
func (document Document) IsCurrent(host HostBlock) bool {
	existing, found := document.Lookup(host.Alias)
	return found && existing == host
}

// CheckAlias returns a HostAliasConflictError when alias is declared by a Host line outside the
// managed blocks. ssh honors the first matching entry, so a managed block could never take effect.
func (document Document) CheckAlias(alias string) error {
	if line, found := document.unmanagedHosts[alias]; found {
		return HostAliasConflictError{Alias: alias, Line: line}
	}
	return nil
}

// ManagedAliases lists managed aliases in file order.
func (document Document) ManagedAliases() []string {
	var aliases []string
	for _, documentSegment := range document.segments {
		if documentSegment.managed {
			aliases = append(aliases, documentSegment.alias)
		}
	}
	return aliases
}

// Upsert replaces the managed block for host.Alias in place, or appends it at the end separated
// from preceding content by a blank line. An alias claimed by an unmanaged Host entry is refused.
func (document Document) Upsert(host HostBlock) (Document, error) {
	if conflictError := document.CheckAlias(host.Alias); conflictError != nil {
		return document, conflictError
	}
	replacement := segment{managed: true, alias: host.Alias, host: host, content: host.Render()}
	segments := make([]segment, 0, len(document.segments)+2)
	replaced := false
	for _, documentSegment := range document.segments {
		if documentSegment.managed && documentSegment.alias == host.Alias {
			segments = append(segments, replacement)
			replaced = true
			continue
		}
		segments = append(segments, documentSegment)
	}
	if replaced {
		return Document{segments: segments, unmanagedHosts: document.unmanagedHosts}, nil
	}

	existingContent := document.Render()
	if separator := appendSeparator(existingContent); len(separator) > 0 {
		segments = append(segments, segment{separator: true, content: separator})
	}
	segments = append(segments, replacement)
	return Document{segments: segments, unmanagedHosts: document.unmanagedHosts}, nil
}

// Remove deletes the managed block for alias and reports whether it existed. The blank line that
// Upsert placed in front of the block goes with it.
func (document Document) Remove(alias string) (Document, bool) {
	segments := make([]segment, 0, len(document.segments))
	removed := false
	for _, documentSegment := range document.segments {
		if documentSegment.managed && documentSegment.alias == alias {
			removed = true
			segments = dropLeadingSeparator(segments)
			continue
		}
		segments = append(segments, documentSegment)
	}
	return Document{segments: segments, unmanagedHosts: document.unmanagedHosts}, removed
}

// dropLeadingSeparator trims the blank line that precedes a removed block. Separators added in
// memory are dropped whole; once reparsed they are the trailing newline of the opaque region.
func dropLeadingSeparator(segments []segment) []segment {
	if len(segments) == 0 {
		return segments
	}
	previous := segments[len(segments)-1]
	switch {
	case previous.managed:
		return segments
	case previous.separator:
		return segments[:len(segments)-1]
	case string(previous.content) == newlineConstant && len(segments) > 1 && segments[len(segments)-2].managed:
		return segments[:len(segments)-1]
	case bytes.HasSuffix(previous.content, []byte(newlineConstant+newlineConstant)):
		trimmed := segment{content: bytes.Clone(previous.content[:len(previous.content)-1])}
		return append(segments[:len(segments)-1], trimmed)
	default:
		return segments
	}
}

// hostPatterns returns the literal patterns of a Host line. Negated and wildcard patterns never
// name a single alias and are ignored.
func hostPatterns(trimmedLine string) []string {
	if len(trimmedLine) == 0 || strings.HasPrefix(trimmedLine, commentPrefixConstant) {
		return nil
	}
	keywordEnd := strings.IndexAny(trimmedLine, keywordSeparatorsConstant)
	if keywordEnd <= 0 || !strings.EqualFold(trimmedLine[:keywordEnd], hostKeywordConstant) {
		return nil
	}
	arguments := strings.TrimLeft(trimmedLine[keywordEnd:], keywordSeparatorsConstant)
	if commentIndex := strings.Index(arguments, commentPrefixConstant); commentIndex >= 0 {
		arguments = arguments[:commentIndex]
	}
	var patterns []string
	for _, field := range strings.Fields(arguments) {
		pattern := unquote(field)
		if len(pattern) == 0 || strings.ContainsAny(pattern, hostPatternWildcardsConstant) {
			continue
		}
		patterns = append(patterns, pattern)
	}
	return patterns
}

func appendSeparator(existingContent []byte) []byte {
	switch {
	case len(existingContent) == 0:
		return nil
	case bytes.HasSuffix(existingContent, []byte(newlineConstant+newlineConstant)):
		return nil
	case bytes.HasSuffix(existingContent, []byte(newlineConstant)):
		return []byte(newlineConstant)
	default:
		return []byte(newlineConstant + newlineConstant)
	}
}

// decodeManagedBody validates the Host line of a managed body and reads its directives.
func decodeManagedBody(alias string, body []byte, startLine int) (HostBlock, error) {
	hostLineSeen := false
	for _, rawLine := range strings.Split(string(body), newlineConstant) {
		fields := strings.Fields(rawLine)
		if len(fields) == 0 || strings.HasPrefix(fields[0], commentPrefixConstant) {
			continue
		}
		keyword := strings.ToLower(fields[0])
		if keyword == matchKeywordConstant || keyword == includeKeywordConstant {
			return HostBlock{}, SSHConfigParseError{Line: startLine, Message: fmt.Sprintf(unsupportedKeywordMessageTemplateConstant, alias, fields[0])}
		}
		if hostLineSeen {
			if keyword == hostKeywordConstant {
				return HostBlock{}, SSHConfigParseError{Line: startLine, Message: fmt.Sprintf(hostLineMismatchMessageTemplateConstant, alias, alias)}
			}
			continue
		}
		if keyword != hostKeywordConstant || len(fields) != 2 || fields[1] != alias {
			return HostBlock{}, SSHConfigParseError{Line: startLine, Message: fmt.Sprintf(hostLineMismatchMessageTemplateConstant, alias, alias)}
		}
		hostLineSeen = true
	}
	if !hostLineSeen {
		return HostBlock{}, SSHConfigParseError{Line: startLine, Message: fmt.Sprintf(hostLineMismatchMessageTemplateConstant, alias, alias)}
	}

	decoded, decodeError := ssh_config.DecodeBytes(body)
	if decodeError != nil {
		return HostBlock{}, SSHConfigParseError{Line: startLine, Message: fmt.Sprintf(decodeBodyMessageTemplateConstant, alias, decodeError)}
	}
	lookup := func(directive string) string {
		value, _ := decoded.Get(alias, directive)
		return unquote(value)
	}
	return HostBlock{
		Alias:          alias,
		HostName:       lookup(hostNameDirectiveConstant),
		User:           lookup(userDirectiveConstant),
		IdentityFile:   lookup(identityFileDirectiveConstant),
		IdentitiesOnly: strings.EqualFold(lookup(identitiesOnlyDirectiveConstant), yesValueConstant),
	}, nil
}

func quoteIfNeeded(value string) string {
	if strings.ContainsAny(value, " \t") {
		return quoteConstant + value + quoteConstant
	}
	return value
}

func unquote(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) >= 2 && strings.HasPrefix(trimmedValue, quoteConstant) && strings.HasSuffix(trimmedValue, quoteConstant) {
		return trimmedValue[1 : len(trimmedValue)-1]
	}
	return trimmedValue
}
