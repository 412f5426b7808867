package repos

import (
	"github.com/spf13/cobra"

	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/utils"
)

const (
	reportUseConstant           = "report [root ...]"
	reportShortDescription      = "Render a dry-run report of what apply would do"
	reportLongDescription       = "report performs a dry run over the roots and renders the resulting report as markdown or YAML, either to standard output or to --output."
	outputFlagNameConstant      = "output"
	outputFlagShorthandConstant = "o"
	outputFlagUsageConstant     = "Write the report to this file instead of standard output"
)

// ReportCommandBuilder assembles the repos report command.
type ReportCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ServicesProvider      ServicesProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the repos report command.
func (builder *ReportCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   reportUseConstant,
		Short: reportShortDescription,
		Long:  reportLongDescription,
	}
	scanFlags := bindScanFlags(command)
	applyFlags := bindApplyFlags(command, false)
	var outputPath string
	command.Flags().StringVarP(&outputPath, outputFlagNameConstant, outputFlagShorthandConstant, "", outputFlagUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		configuration := resolveConfiguration(builder.ConfigurationProvider)
		renderer, rendererError := applyFlags.renderer(command, configuration.Report)
		if rendererError != nil {
			return rendererError
		}

		options, optionsError := applyFlags.options(command, shared.ApplyModeDryRun, configuration.Apply)
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
		return writeReport(result.services, renderer, outputPath, bulkReport, reporter)
	}
	return command, nil
}
