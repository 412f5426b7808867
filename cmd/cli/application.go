package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/gitid/cmd/cli/account"
	"github.com/temirov/gitid/cmd/cli/repos"
	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/repos/dependencies"
	"github.com/temirov/gitid/internal/utils"
	flagutils "github.com/temirov/gitid/internal/utils/flags"
	pathutils "github.com/temirov/gitid/internal/utils/path"
)

const (
	applicationNameConstant                 = "gitid"
	applicationShortDescriptionConstant     = "Manage multiple Git identities across repositories"
	applicationLongDescriptionConstant      = "gitid keeps a store of Git accounts, maintains one SSH host alias per account, and binds repositories to the right account individually or in bulk."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	accountStorePathConfigKeyConstant       = "accounts.store_path"
	sshConfigPathConfigKeyConstant          = "ssh.config_path"
	globalGitConfigPathConfigKeyConstant    = "git.global_config_path"
	defaultGlobalGitConfigPathConstant      = "~/.gitconfig"
	defaultAccountStorePathConstant         = "~/.config/gitid/" + accounts.DefaultStoreFileNameConstant
	defaultSSHConfigPathConstant            = "~/.ssh/config"
	environmentPrefixConstant               = "GITID"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationModeFieldConstant          = "mode"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	applyModeErrorTemplateConstant          = "unable to resolve apply mode: %w"
	missingPathErrorTemplateConstant        = "configuration value %s must not be empty"
	rootCommandInfoMessageConstant          = "gitid CLI executed"
	rootCommandDebugMessageConstant         = "gitid CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	userConfigurationSearchPathConstant     = "~/.config/gitid"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common    ApplicationCommonConfiguration   `mapstructure:"common"`
	Accounts  ApplicationAccountsConfiguration `mapstructure:"accounts"`
	SSH       ApplicationSSHConfiguration      `mapstructure:"ssh"`
	Git       ApplicationGitConfiguration      `mapstructure:"git"`
	Discovery repos.DiscoveryConfiguration     `mapstructure:"discovery"`
	Apply     repos.ApplyConfiguration         `mapstructure:"apply"`
	Report    repos.ReportConfiguration        `mapstructure:"report"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationAccountsConfiguration locates the account store.
type ApplicationAccountsConfiguration struct {
	StorePath string `mapstructure:"store_path"`
}

// ApplicationSSHConfiguration locates the SSH client configuration and the directory generated keys go to.
type ApplicationSSHConfiguration struct {
	ConfigPath    string `mapstructure:"config_path"`
	KeysDirectory string `mapstructure:"keys_directory"`
}

// ApplicationGitConfiguration locates the global git configuration file account use --global writes.
type ApplicationGitConfiguration struct {
	GlobalConfigPath string `mapstructure:"global_config_path"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
	homeExpander           *pathutils.HomeExpander
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	homeExpander := pathutils.NewHomeExpander()
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant, homeExpander.Expand(userConfigurationSearchPathConstant)},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		homeExpander:           homeExpander,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}

	accountBuilder := account.CommandGroupBuilder{
		LoggerProvider:   loggerProvider,
		ServicesProvider: application.services,
		ConfigurationProvider: func() account.Configuration {
			return account.Configuration{
				KeysDirectory:    application.configuration.SSH.KeysDirectory,
				OperationTimeout: application.configuration.Apply.OperationTimeout,
			}
		},
	}
	accountCommand, accountBuildError := accountBuilder.Build()
	if accountBuildError == nil {
		cobraCommand.AddCommand(accountCommand)
	}

	reposBuilder := repos.CommandGroupBuilder{
		LoggerProvider:   loggerProvider,
		ServicesProvider: application.services,
		ConfigurationProvider: func() repos.Configuration {
			return repos.Configuration{
				Discovery: application.configuration.Discovery,
				Apply:     application.configuration.Apply,
				Report:    application.configuration.Report,
			}
		},
	}
	reposCommand, reposBuildError := reposBuilder.Build()
	if reposBuildError == nil {
		cobraCommand.AddCommand(reposCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	application.rootCommand.SetArgs(flagutils.NormalizeToggleArguments(os.Args[1:]))
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// DefaultConfigurationValues lists the Viper defaults of every command group.
func DefaultConfigurationValues() map[string]any {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:      string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:     string(utils.LogFormatStructured),
		accountStorePathConfigKeyConstant:    defaultAccountStorePathConstant,
		sshConfigPathConfigKeyConstant:       defaultSSHConfigPathConstant,
		globalGitConfigPathConfigKeyConstant: defaultGlobalGitConfigPathConstant,
	}
	for configurationKey, configurationValue := range account.DefaultConfigurationValues() {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range repos.DefaultConfigurationValues() {
		defaultValues[configurationKey] = configurationValue
	}
	return defaultValues
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, DefaultConfigurationValues(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger

	applyMode, applyModeError := flagutils.ResolveApplyMode(command)
	if applyModeError != nil {
		return fmt.Errorf(applyModeErrorTemplateConstant, applyModeError)
	}

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(configurationModeFieldConstant, applyMode.String()),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		updatedContext = application.commandContextAccessor.WithApplyMode(updatedContext, applyMode)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// services builds the service graph from the loaded configuration. It runs after initializeConfiguration,
// so paths and logger reflect files, environment and flags.
func (application *Application) services() (dependencies.Services, error) {
	requiredPaths := []struct {
		key   string
		value string
	}{
		{key: accountStorePathConfigKeyConstant, value: application.configuration.Accounts.StorePath},
		{key: sshConfigPathConfigKeyConstant, value: application.configuration.SSH.ConfigPath},
	}
	for _, requiredPath := range requiredPaths {
		if len(strings.TrimSpace(requiredPath.value)) == 0 {
			return dependencies.Services{}, fmt.Errorf(missingPathErrorTemplateConstant, requiredPath.key)
		}
	}

	return dependencies.Build(dependencies.Settings{
		AccountStorePath:    application.homeExpander.Expand(strings.TrimSpace(application.configuration.Accounts.StorePath)),
		SSHConfigPath:       application.homeExpander.Expand(strings.TrimSpace(application.configuration.SSH.ConfigPath)),
		GlobalGitConfigPath: application.homeExpander.Expand(strings.TrimSpace(application.configuration.Git.GlobalConfigPath)),
		Logger:              application.logger,
	}), nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
