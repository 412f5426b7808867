package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/gitrepo"
	"github.com/temirov/gitid/internal/repos/discovery"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/suggest"
	"github.com/temirov/gitid/internal/utils"
	pathutils "github.com/temirov/gitid/internal/utils/path"
)

const (
	whoamiUseConstant                     = "whoami [repository]"
	whoamiShortDescription                = "Show the identity git uses and the account it belongs to"
	whoamiLongDescription                 = "whoami prints the global and repository-local commit identities with the accounts they match by email, then suggests an account from the origin remote and flags a mismatch with the identity in effect. The repository defaults to the current directory."
	whoamiGlobalTemplateConstant          = "GLOBAL: %s\n"
	whoamiLocalTemplateConstant           = "LOCAL: %s\n"
	whoamiNotRepositoryTemplateConstant   = "REPOSITORY: %s is not a git repository\n"
	whoamiRemoteTemplateConstant          = "REMOTE: %s\n"
	whoamiSuggestionTemplateConstant      = "SUGGESTED: %s (confidence %.2f)\n"
	whoamiNoSuggestionTemplateConstant    = "SUGGESTED: none (%s)\n"
	whoamiAmbiguousTemplateConstant       = "SUGGESTED: ambiguous between %s and %s\n"
	whoamiMismatchTemplateConstant        = "MISMATCH: commits use account %s but origin suggests %s\n"
	whoamiUnknownMismatchTemplateConstant = "MISMATCH: commits use %s which matches no account; origin suggests %s\n"
	identityUnsetConstant                 = "(unset)"
	identityAccountTemplateConstant       = "%s [account %s]"
	identityNoAccountTemplateConstant     = "%s [no matching account]"
	identityTemplateConstant              = "%s <%s>"
	remoteNoneConstant                    = "(none)"
)

func (builder *CommandGroupBuilder) buildWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   whoamiUseConstant,
		Short: whoamiShortDescription,
		Long:  whoamiLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.runWhoami,
	}
}

func (builder *CommandGroupBuilder) runWhoami(command *cobra.Command, arguments []string) error {
	services, servicesError := builder.services()
	if servicesError != nil {
		return servicesError
	}
	store, loadError := services.Accounts.Load()
	if loadError != nil {
		return loadError
	}

	repositoryArgument := defaultRepositoryArgumentConstant
	if len(arguments) > 0 && len(strings.TrimSpace(arguments[0])) > 0 {
		repositoryArgument = strings.TrimSpace(arguments[0])
	}
	repositoryPath, absoluteError := services.FileSystem.Abs(pathutils.NewHomeExpander().Expand(repositoryArgument))
	if absoluteError != nil {
		return absoluteError
	}

	parentContext := command.Context()
	if parentContext == nil {
		parentContext = context.Background()
	}
	executionContext, cancel := context.WithTimeout(parentContext, builder.configuration().OperationTimeout)
	defer cancel()

	reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))

	var globalIdentity gitrepo.Identity
	if services.GlobalConfig != nil {
		identity, globalError := services.GlobalConfig.ReadIdentity(executionContext)
		if globalError != nil {
			return globalError
		}
		globalIdentity = identity
	}
	reporter.Printf(whoamiGlobalTemplateConstant, describeIdentity(store, globalIdentity))

	repositoryConfig, readError := services.ConfigManager.ReadRepositoryConfig(executionContext, repositoryPath)
	if errors.Is(readError, gitrepo.ErrNotRepository) {
		reporter.Printf(whoamiNotRepositoryTemplateConstant, repositoryPath)
		return nil
	}
	if readError != nil {
		return readError
	}
	localIdentity := gitrepo.Identity{Name: repositoryConfig.UserName, Email: repositoryConfig.UserEmail}
	reporter.Printf(whoamiLocalTemplateConstant, describeIdentity(store, localIdentity))

	repository := repositoryFromConfig(repositoryPath, repositoryConfig)
	if len(repositoryConfig.OriginURL) == 0 {
		reporter.Printf(whoamiRemoteTemplateConstant, remoteNoneConstant)
	} else {
		reporter.Printf(whoamiRemoteTemplateConstant, repositoryConfig.OriginURL)
	}

	suggestion := suggest.Suggest(repository, store.List())
	topCandidate, hasCandidate := suggestion.Top()
	switch {
	case !hasCandidate:
		reporter.Printf(whoamiNoSuggestionTemplateConstant, suggestion.Rationale)
		return nil
	case suggestion.Ambiguous():
		reporter.Printf(whoamiAmbiguousTemplateConstant, suggestion.Candidates[0].AccountName, suggestion.Candidates[1].AccountName)
		return nil
	default:
		reporter.Printf(whoamiSuggestionTemplateConstant, topCandidate.AccountName, topCandidate.Confidence)
	}

	effectiveEmail := localIdentity.Email
	if len(effectiveEmail) == 0 {
		effectiveEmail = globalIdentity.Email
	}
	if len(effectiveEmail) == 0 {
		return nil
	}
	effectiveAccount, matched := store.ByEmail(effectiveEmail)
	switch {
	case !matched:
		reporter.Printf(whoamiUnknownMismatchTemplateConstant, effectiveEmail, topCandidate.AccountName)
	case effectiveAccount.Name != topCandidate.AccountName:
		reporter.Printf(whoamiMismatchTemplateConstant, effectiveAccount.Name, topCandidate.AccountName)
	}
	return nil
}

// repositoryFromConfig describes one repository the way a scan would, so suggestions for a single
// repository score exactly like bulk ones.
func repositoryFromConfig(repositoryPath string, repositoryConfig gitrepo.RepositoryConfig) discovery.DiscoveredRepository {
	repository := discovery.DiscoveredRepository{Path: repositoryPath}
	if len(repositoryConfig.UserName) > 0 || len(repositoryConfig.UserEmail) > 0 {
		repository.LocalIdentity = &discovery.Identity{Name: repositoryConfig.UserName, Email: repositoryConfig.UserEmail}
	}
	if len(repositoryConfig.OriginURL) == 0 {
		return repository
	}
	remote, parseError := gitrepo.ParseRemoteURL(repositoryConfig.OriginURL)
	if parseError != nil {
		return repository
	}
	repository.RemoteURL = remote.Raw
	repository.RemoteHost = remote.Host
	repository.RemoteOwnerPath = remote.OwnerPath
	return repository
}

func describeIdentity(store *accounts.Store, identity gitrepo.Identity) string {
	if identity.IsEmpty() {
		return identityUnsetConstant
	}
	description := fmt.Sprintf(identityTemplateConstant, valueOrUnset(identity.Name), valueOrUnset(identity.Email))
	if len(identity.Email) == 0 {
		return fmt.Sprintf(identityNoAccountTemplateConstant, description)
	}
	if account, found := store.ByEmail(identity.Email); found {
		return fmt.Sprintf(identityAccountTemplateConstant, description, account.Name)
	}
	return fmt.Sprintf(identityNoAccountTemplateConstant, description)
}

func valueOrUnset(value string) string {
	if len(value) == 0 {
		return identityUnsetConstant
	}
	return value
}
