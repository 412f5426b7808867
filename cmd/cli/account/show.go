package account

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/temirov/gitid/internal/binding"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/sshconfig"
	"github.com/temirov/gitid/internal/utils"
)

const (
	showUseConstant                  = "show <name|username|email>"
	showShortDescription             = "Show one account with its key and SSH host block status"
	showLongDescription              = "show looks the account up by name, then by username, then by email, and reports whether its key validates and whether its managed SSH Host block is current."
	showNameTemplateConstant         = "Name: %s\n"
	showUsernameTemplateConstant     = "Username: %s\n"
	showEmailTemplateConstant        = "Email: %s\n"
	showProviderTemplateConstant     = "Provider host: %s\n"
	showAliasTemplateConstant        = "Host alias: %s\n"
	showPrivateKeyTemplateConstant   = "Private key: %s\n"
	showPublicKeyTemplateConstant    = "Public key: %s\n"
	showCreatedTemplateConstant      = "Created: %s\n"
	showKeyTemplateConstant          = "Key: %s %s\n"
	showKeyErrorTemplateConstant     = "Key: invalid (%v)\n"
	showHostBlockTemplateConstant    = "SSH host block: %s\n"
	hostBlockCurrentConstant         = "current"
	hostBlockOutdatedConstant        = "outdated"
	hostBlockMissingConstant         = "missing"
	hostBlockConflictConstant        = "conflict"
	showHostConflictTemplateConstant = "SSH host block: %s (%v)\n"
)

func (builder *CommandGroupBuilder) buildShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   showUseConstant,
		Short: showShortDescription,
		Long:  showLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			services, servicesError := builder.services()
			if servicesError != nil {
				return servicesError
			}
			store, loadError := services.Accounts.Load()
			if loadError != nil {
				return loadError
			}
			account, findError := store.Find(arguments[0])
			if findError != nil {
				return findError
			}

			reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))
			reporter.Printf(showNameTemplateConstant, account.Name)
			reporter.Printf(showUsernameTemplateConstant, account.GitUsername)
			reporter.Printf(showEmailTemplateConstant, account.GitEmail)
			reporter.Printf(showProviderTemplateConstant, account.ProviderHost)
			reporter.Printf(showAliasTemplateConstant, account.HostAlias)
			reporter.Printf(showPrivateKeyTemplateConstant, account.PrivateKeyPath)
			reporter.Printf(showPublicKeyTemplateConstant, account.PublicKeyPath)
			reporter.Printf(showCreatedTemplateConstant, account.CreatedAt.UTC().Format(time.RFC3339))

			if keyInfo, keyError := services.Keys.Validate(account.PrivateKeyPath, account.PublicKeyPath); keyError != nil {
				reporter.Printf(showKeyErrorTemplateConstant, keyError)
			} else {
				reporter.Printf(showKeyTemplateConstant, keyInfo.Type, keyInfo.Fingerprint)
			}

			if conflictError := services.Synchronizer.CheckAlias(account.HostAlias); conflictError != nil {
				if !errors.Is(conflictError, sshconfig.ErrHostAliasConflict) {
					return conflictError
				}
				reporter.Printf(showHostConflictTemplateConstant, hostBlockConflictConstant, conflictError)
				return nil
			}

			hostBlockStatus := hostBlockMissingConstant
			_, present, inspectError := services.Synchronizer.Inspect(account.HostAlias)
			if inspectError != nil {
				return inspectError
			}
			if present {
				hostBlockStatus = hostBlockOutdatedConstant
				current, currentError := services.Synchronizer.IsCurrent(binding.HostBlockFor(account))
				if currentError != nil {
					return currentError
				}
				if current {
					hostBlockStatus = hostBlockCurrentConstant
				}
			}
			reporter.Printf(showHostBlockTemplateConstant, hostBlockStatus)
			return nil
		},
	}
}
