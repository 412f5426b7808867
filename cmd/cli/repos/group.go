package repos

import "github.com/spf13/cobra"

const (
	groupUseConstant      = "repos"
	groupShortDescription = "Discover repositories and bind them to accounts"
	groupLongDescription  = "repos scans directory trees for git working trees, suggests the account each one belongs to, and applies identities in bulk."
)

// CommandGroupBuilder assembles the repos command group.
type CommandGroupBuilder struct {
	LoggerProvider        LoggerProvider
	ServicesProvider      ServicesProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the repos command hierarchy.
func (builder *CommandGroupBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   groupUseConstant,
		Short: groupShortDescription,
		Long:  groupLongDescription,
	}

	subcommandBuilders := []interface {
		Build() (*cobra.Command, error)
	}{
		&DiscoverCommandBuilder{LoggerProvider: builder.LoggerProvider, ServicesProvider: builder.ServicesProvider, ConfigurationProvider: builder.ConfigurationProvider},
		&ListCommandBuilder{LoggerProvider: builder.LoggerProvider, ServicesProvider: builder.ServicesProvider, ConfigurationProvider: builder.ConfigurationProvider},
		&ApplyCommandBuilder{LoggerProvider: builder.LoggerProvider, ServicesProvider: builder.ServicesProvider, ConfigurationProvider: builder.ConfigurationProvider},
		&ReportCommandBuilder{LoggerProvider: builder.LoggerProvider, ServicesProvider: builder.ServicesProvider, ConfigurationProvider: builder.ConfigurationProvider},
	}
	for _, subcommandBuilder := range subcommandBuilders {
		subcommand, buildError := subcommandBuilder.Build()
		if buildError != nil {
			return nil, buildError
		}
		command.AddCommand(subcommand)
	}

	return command, nil
}
