package repos

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/bulkapply"
	"github.com/temirov/gitid/internal/repos/dependencies"
	"github.com/temirov/gitid/internal/repos/discovery"
	"github.com/temirov/gitid/internal/suggest"
	flagutils "github.com/temirov/gitid/internal/utils/flags"
	pathutils "github.com/temirov/gitid/internal/utils/path"
)

const (
	maxDepthFlagNameConstant            = "max-depth"
	maxDepthFlagUsageConstant           = "Maximum directory depth below each root"
	includeHiddenFlagNameConstant       = "include-hidden"
	includeHiddenFlagUsageConstant      = "Descend into directories whose names start with a dot"
	workersFlagNameConstant             = "workers"
	workersFlagUsageConstant            = "Number of repositories inspected concurrently"
	missingServicesErrorMessageConstant = "repository services are not configured"
	scanIssueLogMessageConstant         = "Skipped part of the scan"
	scanCompletedLogMessageConstant     = "Repository scan completed"
	logFieldIssueKindConstant           = "issue_kind"
	logFieldPathConstant                = "path"
	logFieldRootsConstant               = "roots"
	logFieldRepositoryCountConstant     = "repository_count"
	logFieldAccountCountConstant        = "account_count"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ServicesProvider yields the wired gitid services for command execution.
type ServicesProvider func() (dependencies.Services, error)

// ErrFailedOutcomes is returned after a bulk run in which at least one repository failed.
var ErrFailedOutcomes = errors.New("one or more repositories failed")

type scanFlagValues struct {
	roots         *flagutils.RootFlagValues
	maxDepth      int
	includeHidden bool
	workers       int
}

func bindScanFlags(command *cobra.Command) *scanFlagValues {
	values := &scanFlagValues{
		roots: flagutils.BindRootFlags(command, flagutils.RootFlagValues{}, flagutils.RootFlagDefinition{Enabled: true}),
	}
	command.Flags().IntVar(&values.maxDepth, maxDepthFlagNameConstant, discovery.DefaultMaxDepthConstant, maxDepthFlagUsageConstant)
	flagutils.AddToggleFlag(command.Flags(), &values.includeHidden, includeHiddenFlagNameConstant, false, includeHiddenFlagUsageConstant)
	command.Flags().IntVar(&values.workers, workersFlagNameConstant, discovery.DefaultWorkersConstant, workersFlagUsageConstant)
	return values
}

// resolve merges positional roots, flags and configuration. Positional roots win over --root, which wins
// over configured roots.
func (values *scanFlagValues) resolve(command *cobra.Command, arguments []string, configuration DiscoveryConfiguration) ([]string, discovery.Options) {
	candidateRoots := configuration.Roots
	if len(values.roots.Roots) > 0 {
		candidateRoots = values.roots.Roots
	}
	if len(arguments) > 0 {
		candidateRoots = arguments
	}

	options := discovery.DefaultOptions()
	options.MaxDepth = configuration.MaxDepth
	options.IncludeHidden = configuration.IncludeHidden
	options.Workers = configuration.Workers
	if command.Flags().Changed(maxDepthFlagNameConstant) {
		options.MaxDepth = values.maxDepth
	}
	if command.Flags().Changed(includeHiddenFlagNameConstant) {
		options.IncludeHidden = values.includeHidden
	}
	if command.Flags().Changed(workersFlagNameConstant) {
		options.Workers = values.workers
	}

	roots := pathutils.NewRootSanitizer(nil).Sanitize(candidateRoots)
	if len(roots) == 0 {
		roots = []string{defaultRepositoryRootConstant}
	}
	return roots, options
}

type scanResult struct {
	services     dependencies.Services
	store        *accounts.Store
	repositories []bulkapply.AnnotatedRepository
}

// scanAndSuggest loads the account store, scans the roots and annotates every repository with its
// suggestion.
func scanAndSuggest(executionContext context.Context, servicesProvider ServicesProvider, logger *zap.Logger, roots []string, options discovery.Options) (scanResult, error) {
	services, servicesError := resolveServices(servicesProvider)
	if servicesError != nil {
		return scanResult{}, servicesError
	}
	store, loadError := services.Accounts.Load()
	if loadError != nil {
		return scanResult{}, loadError
	}

	options.IssueHandler = func(issue discovery.ScanIssue) {
		logger.Warn(scanIssueLogMessageConstant, zap.String(logFieldIssueKindConstant, string(issue.Kind)), zap.String(logFieldPathConstant, issue.Path), zap.Error(issue.Cause))
	}
	discovered, scanError := services.Scanner.ScanRoots(executionContext, roots, options)
	if scanError != nil {
		return scanResult{}, scanError
	}

	accountList := store.List()
	suggestions, suggestError := suggest.SuggestAll(executionContext, discovered, accountList, options.Workers)
	if suggestError != nil {
		return scanResult{}, suggestError
	}

	annotated := make([]bulkapply.AnnotatedRepository, len(discovered))
	for repositoryIndex := range discovered {
		annotated[repositoryIndex] = bulkapply.AnnotatedRepository{Repository: discovered[repositoryIndex], Suggestion: suggestions[repositoryIndex]}
	}
	logger.Info(scanCompletedLogMessageConstant, zap.Strings(logFieldRootsConstant, roots), zap.Int(logFieldRepositoryCountConstant, len(annotated)), zap.Int(logFieldAccountCountConstant, len(accountList)))

	return scanResult{services: services, store: store, repositories: annotated}, nil
}

func resolveServices(provider ServicesProvider) (dependencies.Services, error) {
	if provider == nil {
		return dependencies.Services{}, errors.New(missingServicesErrorMessageConstant)
	}
	return provider()
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveConfiguration(provider func() Configuration) Configuration {
	if provider == nil {
		return DefaultConfiguration()
	}
	return provider().sanitize()
}
