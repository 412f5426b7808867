package account

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitid/internal/binding"
	"github.com/temirov/gitid/internal/repos/dependencies"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/utils"
	flagutils "github.com/temirov/gitid/internal/utils/flags"
	pathutils "github.com/temirov/gitid/internal/utils/path"
)

const (
	applyUseConstant                  = "apply <name|username|email> [repository]"
	applyAliasConstant                = "use"
	applyShortDescription             = "Bind one repository, or the global identity, to an account"
	applyLongDescription              = "apply sets user.name and user.email in the repository, points origin at the account's SSH host alias and refreshes the managed Host block. The repository defaults to the current directory. With --global it sets the global user.name and user.email instead and leaves repositories alone. Use --dry-run to print the plan without writing."
	globalFlagNameConstant            = "global"
	globalFlagUsageConstant           = "Set the global git identity instead of binding a repository."
	globalRepositoryConflictConstant  = "--global does not take a repository argument"
	globalUnchangedTemplateConstant   = "UNCHANGED: global identity already set to account %s\n"
	globalAppliedLogMessageConstant   = "Account applied to global identity"
	logFieldGlobalPathConstant        = "global_config"
	defaultRepositoryArgumentConstant = "."
	plannedActionTemplateConstant     = "PLAN: %s\n"
	performedActionTemplateConstant   = "DONE: %s\n"
	unchangedTemplateConstant         = "UNCHANGED: %s already configured for account %s\n"
	accountAppliedLogMessageConstant  = "Account applied to repository"
	logFieldRepositoryConstant        = "repository"
	logFieldActionCountConstant       = "actions"
	logFieldModeConstant              = "mode"
)

func (builder *CommandGroupBuilder) buildApplyCommand() *cobra.Command {
	command := &cobra.Command{
		Use:     applyUseConstant,
		Aliases: []string{applyAliasConstant},
		Short:   applyShortDescription,
		Long:    applyLongDescription,
		Args:    cobra.RangeArgs(1, 2),
		RunE:    builder.runApply,
	}
	command.Flags().Bool(globalFlagNameConstant, false, globalFlagUsageConstant)
	flagutils.BindExecutionFlags(command, flagutils.ExecutionDefaults{}, flagutils.DefaultExecutionFlagDefinitions())
	return command
}

func (builder *CommandGroupBuilder) runApply(command *cobra.Command, arguments []string) error {
	global, _ := command.Flags().GetBool(globalFlagNameConstant)
	if global && len(arguments) > 1 {
		return errors.New(globalRepositoryConflictConstant)
	}
	services, servicesError := builder.services()
	if servicesError != nil {
		return servicesError
	}
	if global {
		return builder.runApplyGlobal(command, services, arguments[0])
	}

	repositoryArgument := defaultRepositoryArgumentConstant
	if len(arguments) > 1 && len(strings.TrimSpace(arguments[1])) > 0 {
		repositoryArgument = strings.TrimSpace(arguments[1])
	}
	repositoryPath, absoluteError := services.FileSystem.Abs(pathutils.NewHomeExpander().Expand(repositoryArgument))
	if absoluteError != nil {
		return absoluteError
	}

	store, loadError := services.Accounts.Load()
	if loadError != nil {
		return loadError
	}
	account, findError := store.Find(arguments[0])
	if findError != nil {
		return findError
	}

	parentContext := command.Context()
	if parentContext == nil {
		parentContext = context.Background()
	}
	mode := utils.NewCommandContextAccessor().ApplyMode(parentContext)
	executionContext, cancel := context.WithTimeout(parentContext, builder.configuration().OperationTimeout)
	defer cancel()

	result, bindError := services.Binder.Bind(executionContext, repositoryPath, account, mode)
	reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))
	printActions(reporter, result)
	if bindError != nil {
		return bindError
	}
	if !result.Changed() {
		reporter.Printf(unchangedTemplateConstant, repositoryPath, account.Name)
	}

	builder.logger().Info(accountAppliedLogMessageConstant,
		zap.String(logFieldAccountConstant, account.Name),
		zap.String(logFieldRepositoryConstant, repositoryPath),
		zap.Int(logFieldActionCountConstant, len(result.Actions)),
		zap.String(logFieldModeConstant, mode.String()),
	)
	return nil
}

func (builder *CommandGroupBuilder) runApplyGlobal(command *cobra.Command, services dependencies.Services, query string) error {
	if services.GlobalConfig == nil {
		return binding.ErrIncompleteDependencies
	}
	store, loadError := services.Accounts.Load()
	if loadError != nil {
		return loadError
	}
	account, findError := store.Find(query)
	if findError != nil {
		return findError
	}

	parentContext := command.Context()
	if parentContext == nil {
		parentContext = context.Background()
	}
	mode := utils.NewCommandContextAccessor().ApplyMode(parentContext)
	executionContext, cancel := context.WithTimeout(parentContext, builder.configuration().OperationTimeout)
	defer cancel()

	result, bindError := services.Binder.BindGlobal(executionContext, account, mode)
	reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))
	printActions(reporter, result)
	if bindError != nil {
		return bindError
	}
	if !result.Changed() {
		reporter.Printf(globalUnchangedTemplateConstant, account.Name)
	}

	builder.logger().Info(globalAppliedLogMessageConstant,
		zap.String(logFieldAccountConstant, account.Name),
		zap.String(logFieldGlobalPathConstant, services.GlobalConfig.Path()),
		zap.Int(logFieldActionCountConstant, len(result.Actions)),
		zap.String(logFieldModeConstant, mode.String()),
	)
	return nil
}

func printActions(reporter shared.Reporter, result binding.Result) {
	actionTemplate := performedActionTemplateConstant
	if !result.Performed {
		actionTemplate = plannedActionTemplateConstant
	}
	for _, action := range result.Actions {
		reporter.Printf(actionTemplate, action)
	}
}
