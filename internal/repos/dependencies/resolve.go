// Package dependencies assembles the gitid services from configuration, substituting defaults for collaborators
// the caller leaves unset.
package dependencies

import (
	"go.uber.org/zap"

	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/binding"
	"github.com/temirov/gitid/internal/bulkapply"
	"github.com/temirov/gitid/internal/gitrepo"
	"github.com/temirov/gitid/internal/repos/discovery"
	"github.com/temirov/gitid/internal/repos/filesystem"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/sshconfig"
	"github.com/temirov/gitid/internal/sshkeys"
)

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing shared.FileSystem) shared.FileSystem {
	if existing != nil {
		return existing
	}
	return filesystem.OSFileSystem{}
}

// ResolveClock returns the provided clock or the system clock.
func ResolveClock(existing shared.Clock) shared.Clock {
	if existing != nil {
		return existing
	}
	return shared.SystemClock{}
}

// ResolveLogger returns the provided logger or a no-op logger.
func ResolveLogger(existing *zap.Logger) *zap.Logger {
	if existing != nil {
		return existing
	}
	return zap.NewNop()
}

// Settings names the files the services operate on. An empty GlobalGitConfigPath leaves global binding
// unavailable.
type Settings struct {
	AccountStorePath    string
	SSHConfigPath       string
	GlobalGitConfigPath string
	FileSystem          shared.FileSystem
	Clock               shared.Clock
	Logger              *zap.Logger
}

// Services is the wired service graph shared by every command.
type Services struct {
	FileSystem    shared.FileSystem
	Clock         shared.Clock
	Logger        *zap.Logger
	ConfigManager *gitrepo.ConfigManager
	GlobalConfig  *gitrepo.GlobalConfig
	Scanner       *discovery.Scanner
	Synchronizer  *sshconfig.Synchronizer
	Keys          *sshkeys.Manager
	Accounts      *accounts.FileRepository
	Binder        *binding.Binder
}

// Build wires the services for settings.
func Build(settings Settings) Services {
	fileSystem := ResolveFileSystem(settings.FileSystem)
	clock := ResolveClock(settings.Clock)
	logger := ResolveLogger(settings.Logger)

	configManager := gitrepo.NewConfigManager(fileSystem)
	synchronizer := sshconfig.NewSynchronizer(fileSystem, settings.SSHConfigPath, logger)
	binderDependencies := binding.Dependencies{
		GitConfig: configManager,
		SSHConfig: synchronizer,
		Logger:    logger,
	}
	var globalConfig *gitrepo.GlobalConfig
	if len(settings.GlobalGitConfigPath) > 0 {
		globalConfig = gitrepo.NewGlobalConfig(fileSystem, settings.GlobalGitConfigPath)
		binderDependencies.GlobalConfig = globalConfig
	}

	return Services{
		FileSystem:    fileSystem,
		Clock:         clock,
		Logger:        logger,
		ConfigManager: configManager,
		GlobalConfig:  globalConfig,
		Scanner:       discovery.NewScanner(fileSystem, configManager, logger),
		Synchronizer:  synchronizer,
		Keys:          sshkeys.NewManager(fileSystem),
		Accounts:      accounts.NewFileRepository(fileSystem, clock, settings.AccountStorePath),
		Binder:        binding.NewBinder(binderDependencies),
	}
}

// Orchestrator builds a bulk apply orchestrator resolving accounts from store.
func (services Services) Orchestrator(store *accounts.Store) *bulkapply.Orchestrator {
	return bulkapply.NewOrchestrator(bulkapply.Dependencies{
		Accounts: store,
		Binder:   services.Binder,
		Clock:    services.Clock,
		Logger:   services.Logger,
	})
}
