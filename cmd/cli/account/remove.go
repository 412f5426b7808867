package account

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/utils"
)

const (
	removeUseConstant                = "remove <name>"
	removeShortDescription           = "Remove an account and its managed SSH host block"
	removeLongDescription            = "remove deletes the account from the store and its managed Host block from the SSH config. Key files and repositories already bound to the account are left untouched."
	accountRemovedTemplateConstant   = "ACCOUNT-REMOVED: %s\n"
	hostBlockRemovedTemplateConstant = "SSH-HOST-REMOVED: %s\n"
	accountRemovedLogMessageConstant = "Account removed"
	logFieldHostBlockRemovedConstant = "host_block_removed"
)

func (builder *CommandGroupBuilder) buildRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     removeUseConstant,
		Aliases: []string{"rm"},
		Short:   removeShortDescription,
		Long:    removeLongDescription,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			services, servicesError := builder.services()
			if servicesError != nil {
				return servicesError
			}
			store, loadError := services.Accounts.Load()
			if loadError != nil {
				return loadError
			}
			removedAccount, removeError := store.Remove(arguments[0])
			if removeError != nil {
				return removeError
			}

			hostBlockRemoved, hostRemoveError := services.Synchronizer.RemoveHost(removedAccount.HostAlias)
			if hostRemoveError != nil {
				return hostRemoveError
			}
			if saveError := services.Accounts.Save(store); saveError != nil {
				return saveError
			}

			builder.logger().Info(accountRemovedLogMessageConstant, zap.String(logFieldAccountConstant, removedAccount.Name), zap.Bool(logFieldHostBlockRemovedConstant, hostBlockRemoved))
			reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))
			reporter.Printf(accountRemovedTemplateConstant, removedAccount.Name)
			if hostBlockRemoved {
				reporter.Printf(hostBlockRemovedTemplateConstant, removedAccount.HostAlias)
			}
			return nil
		},
	}
}
