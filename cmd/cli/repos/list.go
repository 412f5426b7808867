package repos

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/bulkapply"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/utils"
)

const (
	listUseConstant                         = "list [root ...]"
	listShortDescription                    = "Summarize discovered repositories"
	listLongDescription                     = "list scans the roots and prints how many repositories were found, how many have suggestions, how many suggestions are high confidence, and how many local identities disagree with the suggested account."
	highConfidenceThresholdConstant         = 0.7
	summaryRepositoriesTemplateConstant     = "Repositories: %d\n"
	summarySuggestionsTemplateConstant      = "With suggestions: %d\n"
	summaryHighConfidenceTemplateConstant   = "High confidence: %d\n"
	summaryIdentityMismatchTemplateConstant = "Identity mismatches: %d\n"
	mismatchDetailTemplateConstant          = "MISMATCH: %s local=%s suggested=%s <%s>\n"
)

// DiscoverySummary aggregates a scan.
type DiscoverySummary struct {
	Total              int
	WithSuggestions    int
	HighConfidence     int
	IdentityMismatches []bulkapply.AnnotatedRepository
}

// Summarize counts the repositories. A repository counts as high confidence when its top candidate scores
// strictly above 0.7, and as a mismatch when its local email differs from the unambiguous top candidate's
// email.
func Summarize(repositories []bulkapply.AnnotatedRepository, store *accounts.Store) DiscoverySummary {
	summary := DiscoverySummary{Total: len(repositories)}
	for _, repository := range repositories {
		top, found := repository.Suggestion.Top()
		if !found {
			continue
		}
		summary.WithSuggestions++
		if top.Confidence > highConfidenceThresholdConstant {
			summary.HighConfidence++
		}
		if repository.Suggestion.Ambiguous() || store == nil {
			continue
		}
		identity := repository.Repository.LocalIdentity
		if identity == nil || len(identity.Email) == 0 {
			continue
		}
		account, known := store.ByName(top.AccountName)
		if known && !strings.EqualFold(identity.Email, account.GitEmail) {
			summary.IdentityMismatches = append(summary.IdentityMismatches, repository)
		}
	}
	return summary
}

// ListCommandBuilder assembles the repos list command.
type ListCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ServicesProvider      ServicesProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the repos list command.
func (builder *ListCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   listUseConstant,
		Short: listShortDescription,
		Long:  listLongDescription,
	}
	scanFlags := bindScanFlags(command)
	command.RunE = func(command *cobra.Command, arguments []string) error {
		configuration := resolveConfiguration(builder.ConfigurationProvider)
		roots, options := scanFlags.resolve(command, arguments, configuration.Discovery)
		result, scanError := scanAndSuggest(command.Context(), builder.ServicesProvider, resolveLogger(builder.LoggerProvider), roots, options)
		if scanError != nil {
			return scanError
		}

		summary := Summarize(result.repositories, result.store)
		reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))
		reporter.Printf(summaryRepositoriesTemplateConstant, summary.Total)
		reporter.Printf(summarySuggestionsTemplateConstant, summary.WithSuggestions)
		reporter.Printf(summaryHighConfidenceTemplateConstant, summary.HighConfidence)
		reporter.Printf(summaryIdentityMismatchTemplateConstant, len(summary.IdentityMismatches))
		for _, mismatch := range summary.IdentityMismatches {
			top, _ := mismatch.Suggestion.Top()
			account, _ := result.store.ByName(top.AccountName)
			reporter.Printf(mismatchDetailTemplateConstant, mismatch.Repository.Path, mismatch.Repository.LocalIdentity.Email, account.Name, account.GitEmail)
		}
		return nil
	}
	return command, nil
}
