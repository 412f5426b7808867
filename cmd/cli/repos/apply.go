package repos

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/temirov/gitid/internal/bulkapply"
	"github.com/temirov/gitid/internal/repos/dependencies"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/report"
	"github.com/temirov/gitid/internal/utils"
	flagutils "github.com/temirov/gitid/internal/utils/flags"
	pathutils "github.com/temirov/gitid/internal/utils/path"
)

const (
	applyUseConstant                    = "apply [root ...]"
	applyShortDescription               = "Bind every confidently matched repository to its suggested account"
	applyLongDescription                = "apply scans the roots, chooses the top suggestion for each repository and writes the account's identity, SSH host block and origin remote. Ambiguous and low-confidence suggestions are skipped; --force waives the confidence threshold but never breaks ties. Exits non-zero when any repository fails."
	thresholdFlagNameConstant           = "threshold"
	thresholdFlagUsageConstant          = "Minimum confidence acted on without --force, between 0 and 1"
	invalidFlagValueTemplateConstant    = "invalid --%s: %w"
	timeoutFlagNameConstant             = "timeout"
	timeoutFlagUsageConstant            = "Time allowed for each repository"
	concurrencyFlagNameConstant         = "concurrency"
	concurrencyFlagUsageConstant        = "Number of repositories bound concurrently"
	reportFlagNameConstant              = "report"
	reportFlagUsageConstant             = "Write the run report to this file"
	formatFlagNameConstant              = "format"
	formatFlagDescriptionConstant       = "Report encoding."
	plannedOutcomeTemplateConstant      = "PLAN: %s account=%s (%s)\n"
	appliedOutcomeTemplateConstant      = "APPLIED: %s account=%s (%s)\n"
	skippedOutcomeTemplateConstant      = "SKIPPED: %s (%s)\n"
	failedOutcomeTemplateConstant       = "FAILED: %s account=%s: %s\n"
	actionTemplateConstant              = "  %s\n"
	summaryTemplateConstant             = "SUMMARY: applied=%d skipped=%d failed=%d mode=%s\n"
	reportWrittenTemplateConstant       = "REPORT: %s\n"
	failedOutcomesErrorTemplateConstant = "%w: %d of %d"
)

var reportFormatChoices = []string{string(report.FormatMarkdown), string(report.FormatYAML)}

type applyFlagValues struct {
	threshold   float64
	timeout     time.Duration
	concurrency int
	reportPath  string
	format      string
}

func bindApplyFlags(command *cobra.Command, includeReportPath bool) *applyFlagValues {
	values := &applyFlagValues{}
	defaults := bulkapply.DefaultOptions()
	command.Flags().Float64Var(&values.threshold, thresholdFlagNameConstant, defaults.ConfidenceThreshold, thresholdFlagUsageConstant)
	command.Flags().DurationVar(&values.timeout, timeoutFlagNameConstant, defaults.OperationTimeout, timeoutFlagUsageConstant)
	command.Flags().IntVar(&values.concurrency, concurrencyFlagNameConstant, defaults.Concurrency, concurrencyFlagUsageConstant)
	flagutils.AddChoiceFlag(command.Flags(), &values.format, formatFlagNameConstant, string(report.FormatMarkdown), reportFormatChoices, formatFlagDescriptionConstant)
	if includeReportPath {
		command.Flags().StringVar(&values.reportPath, reportFlagNameConstant, "", reportFlagUsageConstant)
	}
	return values
}

func (values *applyFlagValues) options(command *cobra.Command, mode shared.ApplyMode, configuration ApplyConfiguration) (bulkapply.Options, error) {
	options := bulkapply.Options{
		Mode:                mode,
		ConfidenceThreshold: configuration.ConfidenceThreshold,
		OperationTimeout:    configuration.OperationTimeout,
		Concurrency:         configuration.Concurrency,
	}
	if command.Flags().Changed(thresholdFlagNameConstant) {
		if thresholdError := bulkapply.ValidateConfidenceThreshold(values.threshold); thresholdError != nil {
			return bulkapply.Options{}, fmt.Errorf(invalidFlagValueTemplateConstant, thresholdFlagNameConstant, thresholdError)
		}
		options.ConfidenceThreshold = values.threshold
	}
	if command.Flags().Changed(timeoutFlagNameConstant) {
		options.OperationTimeout = values.timeout
	}
	if command.Flags().Changed(concurrencyFlagNameConstant) {
		options.Concurrency = values.concurrency
	}
	return options, nil
}

func (values *applyFlagValues) renderer(command *cobra.Command, configuration ReportConfiguration) (report.Renderer, error) {
	rawFormat := configuration.Format
	if command.Flags().Changed(formatFlagNameConstant) {
		rawFormat = values.format
	}
	format, formatError := report.ParseFormat(rawFormat)
	if formatError != nil {
		return report.Renderer{}, formatError
	}
	return report.Renderer{Format: format}, nil
}

// ApplyCommandBuilder assembles the repos apply command.
type ApplyCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ServicesProvider      ServicesProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the repos apply command.
func (builder *ApplyCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   applyUseConstant,
		Short: applyShortDescription,
		Long:  applyLongDescription,
	}
	flagutils.BindExecutionFlags(command, flagutils.ExecutionDefaults{}, flagutils.DefaultExecutionFlagDefinitions())
	scanFlags := bindScanFlags(command)
	applyFlags := bindApplyFlags(command, true)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		configuration := resolveConfiguration(builder.ConfigurationProvider)
		renderer, rendererError := applyFlags.renderer(command, configuration.Report)
		if rendererError != nil {
			return rendererError
		}
		mode := utils.NewCommandContextAccessor().ApplyMode(command.Context())
		options, optionsError := applyFlags.options(command, mode, configuration.Apply)
		if optionsError != nil {
			return optionsError
		}

		roots, scanOptions := scanFlags.resolve(command, arguments, configuration.Discovery)
		result, scanError := scanAndSuggest(command.Context(), builder.ServicesProvider, resolveLogger(builder.LoggerProvider), roots, scanOptions)
		if scanError != nil {
			return scanError
		}

		bulkReport := result.services.Orchestrator(result.store).Apply(command.Context(), result.repositories, options)

		reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))
		printOutcomes(reporter, bulkReport)

		if len(applyFlags.reportPath) > 0 {
			if writeError := writeReport(result.services, renderer, applyFlags.reportPath, bulkReport, reporter); writeError != nil {
				return writeError
			}
		}

		if bulkReport.HasFailures() {
			return fmt.Errorf(failedOutcomesErrorTemplateConstant, ErrFailedOutcomes, bulkReport.Count(bulkapply.StatusFailed), len(bulkReport.Outcomes))
		}
		return nil
	}
	return command, nil
}

func printOutcomes(reporter shared.Reporter, bulkReport bulkapply.BulkReport) {
	for _, outcome := range bulkReport.Outcomes {
		switch outcome.Status {
		case bulkapply.StatusApplied:
			template := appliedOutcomeTemplateConstant
			if bulkReport.DryRun {
				template = plannedOutcomeTemplateConstant
			}
			reporter.Printf(template, outcome.RepositoryPath, outcome.ChosenAccount, outcome.Reason)
			for _, action := range outcome.Actions {
				reporter.Printf(actionTemplateConstant, action)
			}
		case bulkapply.StatusSkipped:
			reporter.Printf(skippedOutcomeTemplateConstant, outcome.RepositoryPath, outcome.Reason)
		default:
			reporter.Printf(failedOutcomeTemplateConstant, outcome.RepositoryPath, outcome.ChosenAccount, outcome.Reason)
		}
	}
	reporter.Printf(summaryTemplateConstant,
		bulkReport.Count(bulkapply.StatusApplied),
		bulkReport.Count(bulkapply.StatusSkipped),
		bulkReport.Count(bulkapply.StatusFailed),
		bulkReport.Mode,
	)
}

func writeReport(services dependencies.Services, renderer report.Renderer, outputPath string, bulkReport bulkapply.BulkReport, reporter shared.Reporter) error {
	if len(outputPath) == 0 {
		content, renderError := renderer.Render(bulkReport)
		if renderError != nil {
			return renderError
		}
		reporter.Printf("%s", content)
		return nil
	}
	expandedPath := pathutils.NewHomeExpander().Expand(outputPath)
	if writeError := renderer.WriteFile(services.FileSystem, expandedPath, bulkReport); writeError != nil {
		return writeError
	}
	reporter.Printf(reportWrittenTemplateConstant, expandedPath)
	return nil
}
