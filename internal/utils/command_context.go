package utils

import (
	"context"

	"github.com/temirov/gitid/internal/repos/shared"
)

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
	applyModeContextKeyConstant             = commandContextKey("applyMode")
)

type commandContextKey string

// CommandContextAccessor manages values stored in command execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the configuration file path to the provided context.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	return context.WithValue(nonNilContext(parentContext), configurationFilePathContextKeyConstant, configurationFilePath)
}

// ConfigurationFilePath extracts the configuration file path from the provided context.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, available := executionContext.Value(configurationFilePathContextKeyConstant).(string)
	return configurationFilePath, available
}

// WithApplyMode attaches the mode resolved from --dry-run and --force.
func (accessor CommandContextAccessor) WithApplyMode(parentContext context.Context, mode shared.ApplyMode) context.Context {
	return context.WithValue(nonNilContext(parentContext), applyModeContextKeyConstant, mode)
}

// ApplyMode extracts the resolved apply mode. Contexts without one report dry run so nothing is written by
// accident.
func (accessor CommandContextAccessor) ApplyMode(executionContext context.Context) shared.ApplyMode {
	if executionContext == nil {
		return shared.ApplyModeDryRun
	}
	mode, available := executionContext.Value(applyModeContextKeyConstant).(shared.ApplyMode)
	if !available {
		return shared.ApplyModeDryRun
	}
	return mode
}

func nonNilContext(parentContext context.Context) context.Context {
	if parentContext == nil {
		return context.Background()
	}
	return parentContext
}
