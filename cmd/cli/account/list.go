package account

import (
	"github.com/spf13/cobra"

	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/utils"
)

const (
	listUseConstant             = "list"
	listShortDescription        = "List registered accounts"
	accountLineTemplateConstant = "ACCOUNT: %s username=%s email=%s host=%s alias=%s key=%s\n"
	noAccountsMessageConstant   = "No accounts configured. Add one with: gitid account add <name> --username <name> --email <email> --generate-key\n"
)

func (builder *CommandGroupBuilder) buildListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   listUseConstant,
		Short: listShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			services, servicesError := builder.services()
			if servicesError != nil {
				return servicesError
			}
			store, loadError := services.Accounts.Load()
			if loadError != nil {
				return loadError
			}

			reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))
			if store.Len() == 0 {
				reporter.Printf(noAccountsMessageConstant)
				return nil
			}
			for _, account := range store.List() {
				reporter.Printf(accountLineTemplateConstant, account.Name, account.GitUsername, account.GitEmail, account.ProviderHost, account.HostAlias, account.PrivateKeyPath)
			}
			return nil
		},
	}
}
