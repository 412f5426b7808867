// Package flags provides helpers for binding the shared gitid flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/temirov/gitid/internal/repos/shared"
)

// ExecutionDefaults describes default values for the mutation control flags.
type ExecutionDefaults struct {
	DryRun bool
	Force  bool
}

// ExecutionFlagDefinition captures a single flag's configuration.
type ExecutionFlagDefinition struct {
	Name    string
	Usage   string
	Enabled bool
}

// ExecutionFlagDefinitions groups execution flag definitions.
type ExecutionFlagDefinitions struct {
	DryRun ExecutionFlagDefinition
	Force  ExecutionFlagDefinition
}

// DefaultExecutionFlagDefinitions enables --dry-run and --force with their standard usage text.
func DefaultExecutionFlagDefinitions() ExecutionFlagDefinitions {
	return ExecutionFlagDefinitions{
		DryRun: ExecutionFlagDefinition{Name: DryRunFlagName, Usage: DryRunFlagUsage, Enabled: true},
		Force:  ExecutionFlagDefinition{Name: ForceFlagName, Usage: ForceFlagUsage, Enabled: true},
	}
}

// BindExecutionFlags attaches the mutation control flags to the provided command using persistent scope.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults, definitions ExecutionFlagDefinitions) {
	if command == nil {
		return
	}

	persistentFlagSet := command.PersistentFlags()
	bindBoolFlag(persistentFlagSet, definitions.DryRun, defaults.DryRun)
	bindBoolFlag(persistentFlagSet, definitions.Force, defaults.Force)
}

// ResolveApplyMode reads the execution flags visible to command. Flags that were never bound count as unset.
func ResolveApplyMode(command *cobra.Command) (shared.ApplyMode, error) {
	if command == nil {
		return shared.ApplyModeApply, nil
	}

	dryRun, dryRunError := lookupBool(command.Flags(), DryRunFlagName)
	if dryRunError != nil {
		return shared.ApplyModeDryRun, dryRunError
	}
	force, forceError := lookupBool(command.Flags(), ForceFlagName)
	if forceError != nil {
		return shared.ApplyModeDryRun, forceError
	}
	return shared.ApplyModeFromFlags(dryRun, force), nil
}

func lookupBool(flagSet *pflag.FlagSet, name string) (bool, error) {
	if flagSet == nil || flagSet.Lookup(name) == nil {
		return false, nil
	}
	return flagSet.GetBool(name)
}

func bindBoolFlag(flagSet *pflag.FlagSet, definition ExecutionFlagDefinition, defaultValue bool) {
	if flagSet == nil || !definition.Enabled || len(definition.Name) == 0 {
		return
	}
	if flagSet.Lookup(definition.Name) != nil {
		return
	}
	flagSet.Bool(definition.Name, defaultValue, definition.Usage)
}
