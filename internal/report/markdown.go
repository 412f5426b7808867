package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/temirov/gitid/internal/bulkapply"
)

const (
	titleLineConstant              = "# gitid identity report"
	dryRunBannerConstant           = "> **DRY RUN:** no files were modified. Every outcome below describes what would happen."
	runLineTemplateConstant        = "- Run: `%s`"
	modeLineTemplateConstant       = "- Mode: %s"
	generatedLineTemplateConstant  = "- Generated: %s"
	summaryHeadingConstant         = "## Summary"
	summaryTableHeaderConstant     = "| Status | Count |\n|---|---:|"
	summaryRowTemplateConstant     = "| %s | %d |"
	totalLabelConstant             = "Total"
	sectionHeadingTemplateConstant = "## %s (%d)"
	emptySectionConstant           = "_None._"
	appliedItemTemplateConstant    = "- `%s`: account `%s` (%s)"
	skippedItemTemplateConstant    = "- `%s`: %s"
	failedItemTemplateConstant     = "- `%s`: %s"
	failedAccountTemplateConstant  = "- `%s`: account `%s`: %s"
	actionItemTemplateConstant     = "  - %s"
	appliedLabelConstant           = "Applied"
	plannedLabelConstant           = "Would apply"
	skippedLabelConstant           = "Skipped"
	failedLabelConstant            = "Failed"
)

// Render produces the markdown document for a bulk report. Dry runs open with a banner and label the
// applied section as hypothetical.
func Render(bulkReport bulkapply.BulkReport) string {
	var builder strings.Builder
	writeLine := func(format string, arguments ...any) {
		fmt.Fprintf(&builder, format, arguments...)
		builder.WriteString("\n")
	}

	appliedLabel := appliedLabelConstant
	writeLine(titleLineConstant)
	writeLine("")
	if bulkReport.DryRun {
		appliedLabel = plannedLabelConstant
		writeLine(dryRunBannerConstant)
		writeLine("")
	}
	writeLine(runLineTemplateConstant, bulkReport.RunID)
	writeLine(modeLineTemplateConstant, bulkReport.Mode)
	writeLine(generatedLineTemplateConstant, bulkReport.GeneratedAt.UTC().Format(time.RFC3339))
	writeLine("")

	writeLine(summaryHeadingConstant)
	writeLine("")
	writeLine(summaryTableHeaderConstant)
	writeLine(summaryRowTemplateConstant, appliedLabel, bulkReport.Count(bulkapply.StatusApplied))
	writeLine(summaryRowTemplateConstant, skippedLabelConstant, bulkReport.Count(bulkapply.StatusSkipped))
	writeLine(summaryRowTemplateConstant, failedLabelConstant, bulkReport.Count(bulkapply.StatusFailed))
	writeLine(summaryRowTemplateConstant, totalLabelConstant, len(bulkReport.Outcomes))

	sections := []struct {
		label  string
		status bulkapply.Status
	}{
		{label: appliedLabel, status: bulkapply.StatusApplied},
		{label: skippedLabelConstant, status: bulkapply.StatusSkipped},
		{label: failedLabelConstant, status: bulkapply.StatusFailed},
	}
	for _, section := range sections {
		outcomes := bulkReport.OutcomesWithStatus(section.status)
		writeLine("")
		writeLine(sectionHeadingTemplateConstant, section.label, len(outcomes))
		writeLine("")
		if len(outcomes) == 0 {
			writeLine(emptySectionConstant)
			continue
		}
		for _, outcome := range outcomes {
			switch section.status {
			case bulkapply.StatusApplied:
				writeLine(appliedItemTemplateConstant, outcome.RepositoryPath, outcome.ChosenAccount, outcome.Reason)
				for _, action := range outcome.Actions {
					writeLine(actionItemTemplateConstant, action)
				}
			case bulkapply.StatusSkipped:
				writeLine(skippedItemTemplateConstant, outcome.RepositoryPath, outcome.Reason)
			default:
				if len(outcome.ChosenAccount) > 0 {
					writeLine(failedAccountTemplateConstant, outcome.RepositoryPath, outcome.ChosenAccount, outcome.Reason)
				} else {
					writeLine(failedItemTemplateConstant, outcome.RepositoryPath, outcome.Reason)
				}
			}
		}
	}
	return builder.String()
}
