// Package account implements the gitid account commands: registering identities with their SSH keys and
// host aliases, inspecting them, removing them, binding one to a single repository or to the global
// identity, and reporting which account git currently commits as.
package account

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitid/internal/repos/dependencies"
)

const (
	groupUseConstant                    = "account"
	groupShortDescription               = "Manage Git accounts"
	groupLongDescription                = "account registers, inspects and removes the Git identities gitid binds repositories to."
	missingServicesErrorMessageConstant = "account services are not configured"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ServicesProvider yields the wired gitid services for command execution.
type ServicesProvider func() (dependencies.Services, error)

// CommandGroupBuilder assembles the account command group.
type CommandGroupBuilder struct {
	LoggerProvider        LoggerProvider
	ServicesProvider      ServicesProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the account command hierarchy.
func (builder *CommandGroupBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:     groupUseConstant,
		Aliases: []string{"accounts"},
		Short:   groupShortDescription,
		Long:    groupLongDescription,
	}

	command.AddCommand(builder.buildAddCommand())
	command.AddCommand(builder.buildListCommand())
	command.AddCommand(builder.buildShowCommand())
	command.AddCommand(builder.buildRemoveCommand())
	command.AddCommand(builder.buildApplyCommand())
	command.AddCommand(builder.buildWhoamiCommand())

	return command, nil
}

func (builder *CommandGroupBuilder) services() (dependencies.Services, error) {
	if builder.ServicesProvider == nil {
		return dependencies.Services{}, errors.New(missingServicesErrorMessageConstant)
	}
	return builder.ServicesProvider()
}

func (builder *CommandGroupBuilder) logger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	if logger := builder.LoggerProvider(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

func (builder *CommandGroupBuilder) configuration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider().sanitize()
}
