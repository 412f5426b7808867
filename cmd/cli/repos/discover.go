package repos

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/gitid/internal/bulkapply"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/utils"
)

const (
	discoverUseConstant                  = "discover [root ...]"
	discoverShortDescription             = "List repositories with their current identity and suggested account"
	discoverLongDescription              = "discover scans the roots (the configured roots or the current directory by default) and prints one line per repository with its origin remote, local identity and best account suggestion."
	discoveredRepositoryTemplateConstant = "REPO: %s remote=%s identity=%s suggestion=%s\n"
	noValueConstant                      = "none"
	unsetIdentityConstant                = "unset"
	identityTemplateConstant             = "%s <%s>"
	suggestionTemplateConstant           = "%s(%.2f,%s)"
	ambiguousSuggestionTemplateConstant  = "ambiguous(%s)"
	ambiguousCandidateSeparatorConstant  = "|"
	suggestionRationaleSeparatorConstant = "_"
)

// DiscoverCommandBuilder assembles the repos discover command.
type DiscoverCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ServicesProvider      ServicesProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the repos discover command.
func (builder *DiscoverCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   discoverUseConstant,
		Short: discoverShortDescription,
		Long:  discoverLongDescription,
	}
	scanFlags := bindScanFlags(command)
	command.RunE = func(command *cobra.Command, arguments []string) error {
		configuration := resolveConfiguration(builder.ConfigurationProvider)
		roots, options := scanFlags.resolve(command, arguments, configuration.Discovery)
		result, scanError := scanAndSuggest(command.Context(), builder.ServicesProvider, resolveLogger(builder.LoggerProvider), roots, options)
		if scanError != nil {
			return scanError
		}

		reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))
		for _, repository := range result.repositories {
			reporter.Printf(discoveredRepositoryTemplateConstant,
				repository.Repository.Path,
				formatRemote(repository),
				formatIdentity(repository),
				formatSuggestion(repository),
			)
		}
		return nil
	}
	return command, nil
}

func formatRemote(repository bulkapply.AnnotatedRepository) string {
	if !repository.Repository.HasRemote() {
		return noValueConstant
	}
	return repository.Repository.RemoteURL
}

func formatIdentity(repository bulkapply.AnnotatedRepository) string {
	identity := repository.Repository.LocalIdentity
	if identity == nil || (len(identity.Name) == 0 && len(identity.Email) == 0) {
		return unsetIdentityConstant
	}
	return fmt.Sprintf(identityTemplateConstant, identity.Name, identity.Email)
}

// formatSuggestion renders the top candidate with its confidence and rationale, or every tied candidate
// when the suggestion is ambiguous. Rationale spaces become underscores to keep the line splittable.
func formatSuggestion(repository bulkapply.AnnotatedRepository) string {
	suggestion := repository.Suggestion
	top, found := suggestion.Top()
	if !found {
		return noValueConstant
	}
	if suggestion.Ambiguous() {
		tiedNames := make([]string, 0, len(suggestion.Candidates))
		for _, candidate := range suggestion.Candidates {
			if candidate.Confidence != top.Confidence {
				break
			}
			tiedNames = append(tiedNames, candidate.AccountName)
		}
		return fmt.Sprintf(ambiguousSuggestionTemplateConstant, strings.Join(tiedNames, ambiguousCandidateSeparatorConstant))
	}
	return fmt.Sprintf(suggestionTemplateConstant, top.AccountName, top.Confidence, strings.ReplaceAll(top.Rationale, " ", suggestionRationaleSeparatorConstant))
}
