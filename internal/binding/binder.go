package binding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/gitrepo"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/sshconfig"
)

const (
	// SSHUserConstant is the login used by Git hosting providers for SSH transport.
	SSHUserConstant = "git"

	readValueErrorTemplateConstant     = "unable to read %s: %w"
	readRemoteErrorTemplateConstant    = "unable to read remote %s: %w"
	inspectHostErrorTemplateConstant   = "unable to inspect ssh host %s: %w"
	formatRemoteErrorTemplateConstant  = "unable to build remote for alias %s: %w"
	actionErrorTemplateConstant        = "%s failed: %w"
	actionDescriptionTemplateConstant  = "%s %s: %s -> %s"
	emptyValuePlaceholderConstant      = "(unset)"
	missingDependencyMessageConstant   = "binder dependencies are incomplete"
	plannedActionLogMessageConstant    = "Planned identity binding action"
	performedActionLogMessageConstant  = "Performed identity binding action"
	unparsableRemoteLogMessageConstant = "Origin remote is not parsable; leaving it unchanged"
	logFieldRepositoryConstant         = "repository"
	logFieldActionConstant             = "action"
	logFieldTargetConstant             = "target"
	logFieldValueConstant              = "value"
	globalScopeConstant                = "global"
)

// ErrIncompleteDependencies indicates a Binder was constructed without its collaborators.
var ErrIncompleteDependencies = errors.New(missingDependencyMessageConstant)

// ActionKind names one mutation of identity binding.
type ActionKind string

const (
	// ActionUpsertSSHHost writes the account's managed SSH host block.
	ActionUpsertSSHHost ActionKind = "upsert_ssh_host"
	// ActionSetUserName sets user.name in the repository config.
	ActionSetUserName ActionKind = "set_user_name"
	// ActionSetUserEmail sets user.email in the repository config.
	ActionSetUserEmail ActionKind = "set_user_email"
	// ActionRewriteRemote points origin at the account's host alias.
	ActionRewriteRemote ActionKind = "rewrite_remote"
	// ActionSetGlobalUserName sets user.name in the global config.
	ActionSetGlobalUserName ActionKind = "set_global_user_name"
	// ActionSetGlobalUserEmail sets user.email in the global config.
	ActionSetGlobalUserEmail ActionKind = "set_global_user_email"
)

// Action is one planned or performed mutation.
type Action struct {
	Kind   ActionKind `json:"kind" yaml:"kind"`
	Target string     `json:"target" yaml:"target"`
	From   string     `json:"from,omitempty" yaml:"from,omitempty"`
	To     string     `json:"to" yaml:"to"`
}

// String renders the action for reports.
func (action Action) String() string {
	from := action.From
	if len(from) == 0 {
		from = emptyValuePlaceholderConstant
	}
	return fmt.Sprintf(actionDescriptionTemplateConstant, action.Kind, action.Target, from, action.To)
}

// HostSynchronizer persists managed SSH host blocks.
type HostSynchronizer interface {
	UpsertHost(host sshconfig.HostBlock) (bool, error)
	IsCurrent(host sshconfig.HostBlock) (bool, error)
}

// GlobalConfigWriter reads and writes the user's global git configuration.
type GlobalConfigWriter interface {
	GetConfig(executionContext context.Context, key string) (string, error)
	SetConfig(executionContext context.Context, key string, value string) error
}

// Dependencies captures collaborators required to bind identities. GlobalConfig is only needed by
// BindGlobal.
type Dependencies struct {
	GitConfig    shared.GitConfigManager
	SSHConfig    HostSynchronizer
	GlobalConfig GlobalConfigWriter
	Logger       *zap.Logger
}

// Result lists the actions of one binding. Performed is false for dry runs.
type Result struct {
	Actions   []Action
	Performed bool
}

// Changed reports whether the binding had anything to do.
func (result Result) Changed() bool {
	return len(result.Actions) > 0
}

// Binder applies an account to a repository: commit identity, origin remote and SSH host block.
// Single-account and bulk operations both go through Bind.
type Binder struct {
	dependencies Dependencies
	locks        shared.PathLocks
}

// NewBinder constructs a Binder.
func NewBinder(dependencies Dependencies) *Binder {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	return &Binder{dependencies: dependencies}
}

// HostBlockFor derives the managed SSH host block owned by account.
func HostBlockFor(account accounts.Account) sshconfig.HostBlock {
	return sshconfig.HostBlock{
		Alias:          account.HostAlias,
		HostName:       account.ProviderHost,
		User:           SSHUserConstant,
		IdentityFile:   account.PrivateKeyPath,
		IdentitiesOnly: true,
	}
}

// Plan computes the actions that would bring the repository in line with account without writing.
func (binder *Binder) Plan(executionContext context.Context, repositoryPath string, account accounts.Account) ([]Action, error) {
	if binder.dependencies.GitConfig == nil || binder.dependencies.SSHConfig == nil {
		return nil, ErrIncompleteDependencies
	}
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}

	var actions []Action

	hostBlock := HostBlockFor(account)
	hostCurrent, inspectError := binder.dependencies.SSHConfig.IsCurrent(hostBlock)
	if inspectError != nil {
		return nil, fmt.Errorf(inspectHostErrorTemplateConstant, hostBlock.Alias, inspectError)
	}
	if !hostCurrent {
		actions = append(actions, Action{Kind: ActionUpsertSSHHost, Target: hostBlock.Alias, To: hostBlock.IdentityFile})
	}

	identityValues := []struct {
		kind  ActionKind
		key   string
		value string
	}{
		{kind: ActionSetUserName, key: shared.GitUserNameKeyConstant, value: account.GitUsername},
		{kind: ActionSetUserEmail, key: shared.GitUserEmailKeyConstant, value: account.GitEmail},
	}
	for _, identityValue := range identityValues {
		currentValue, readError := binder.dependencies.GitConfig.GetConfig(executionContext, repositoryPath, identityValue.key)
		if readError != nil && !errors.Is(readError, gitrepo.ErrConfigValueNotFound) {
			return nil, fmt.Errorf(readValueErrorTemplateConstant, identityValue.key, readError)
		}
		if currentValue != identityValue.value {
			actions = append(actions, Action{Kind: identityValue.kind, Target: identityValue.key, From: currentValue, To: identityValue.value})
		}
	}

	remoteAction, hasRemoteAction, remoteError := binder.planRemote(executionContext, repositoryPath, account)
	if remoteError != nil {
		return nil, remoteError
	}
	if hasRemoteAction {
		actions = append(actions, remoteAction)
	}
	return actions, nil
}

// Bind plans the binding and, when mode mutates, performs the actions in order. On failure the returned
// result lists the actions completed before the error.
func (binder *Binder) Bind(executionContext context.Context, repositoryPath string, account accounts.Account, mode shared.ApplyMode) (Result, error) {
	release := binder.locks.Lock(repositoryPath)
	defer release()

	actions, planError := binder.Plan(executionContext, repositoryPath, account)
	if planError != nil {
		return Result{}, planError
	}
	return binder.execute(executionContext, repositoryPath, account, actions, mode)
}

func (binder *Binder) execute(executionContext context.Context, scope string, account accounts.Account, actions []Action, mode shared.ApplyMode) (Result, error) {
	if !mode.Mutates() {
		for _, action := range actions {
			binder.logAction(plannedActionLogMessageConstant, scope, action)
		}
		return Result{Actions: actions}, nil
	}

	performed := make([]Action, 0, len(actions))
	for _, action := range actions {
		if contextError := executionContext.Err(); contextError != nil {
			return Result{Actions: performed, Performed: true}, contextError
		}
		if performError := binder.perform(executionContext, scope, account, action); performError != nil {
			return Result{Actions: performed, Performed: true}, fmt.Errorf(actionErrorTemplateConstant, action.Kind, performError)
		}
		binder.logAction(performedActionLogMessageConstant, scope, action)
		performed = append(performed, action)
	}
	return Result{Actions: performed, Performed: true}, nil
}

// PlanGlobal computes the actions that make account the default identity: its SSH host block and the
// global user.name and user.email.
func (binder *Binder) PlanGlobal(executionContext context.Context, account accounts.Account) ([]Action, error) {
	if binder.dependencies.GlobalConfig == nil || binder.dependencies.SSHConfig == nil {
		return nil, ErrIncompleteDependencies
	}
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}

	var actions []Action

	hostBlock := HostBlockFor(account)
	hostCurrent, inspectError := binder.dependencies.SSHConfig.IsCurrent(hostBlock)
	if inspectError != nil {
		return nil, fmt.Errorf(inspectHostErrorTemplateConstant, hostBlock.Alias, inspectError)
	}
	if !hostCurrent {
		actions = append(actions, Action{Kind: ActionUpsertSSHHost, Target: hostBlock.Alias, To: hostBlock.IdentityFile})
	}

	identityValues := []struct {
		kind  ActionKind
		key   string
		value string
	}{
		{kind: ActionSetGlobalUserName, key: shared.GitUserNameKeyConstant, value: account.GitUsername},
		{kind: ActionSetGlobalUserEmail, key: shared.GitUserEmailKeyConstant, value: account.GitEmail},
	}
	for _, identityValue := range identityValues {
		currentValue, readError := binder.dependencies.GlobalConfig.GetConfig(executionContext, identityValue.key)
		if readError != nil && !errors.Is(readError, gitrepo.ErrConfigValueNotFound) {
			return nil, fmt.Errorf(readValueErrorTemplateConstant, identityValue.key, readError)
		}
		if currentValue != identityValue.value {
			actions = append(actions, Action{Kind: identityValue.kind, Target: identityValue.key, From: currentValue, To: identityValue.value})
		}
	}
	return actions, nil
}

// BindGlobal makes account the default identity for repositories without a local one. Remotes are
// never touched.
func (binder *Binder) BindGlobal(executionContext context.Context, account accounts.Account, mode shared.ApplyMode) (Result, error) {
	release := binder.locks.Lock(globalScopeConstant)
	defer release()

	actions, planError := binder.PlanGlobal(executionContext, account)
	if planError != nil {
		return Result{}, planError
	}
	return binder.execute(executionContext, globalScopeConstant, account, actions, mode)
}

func (binder *Binder) planRemote(executionContext context.Context, repositoryPath string, account accounts.Account) (Action, bool, error) {
	currentURL, readError := binder.dependencies.GitConfig.GetRemoteURL(executionContext, repositoryPath, shared.OriginRemoteNameConstant)
	if readError != nil {
		if errors.Is(readError, gitrepo.ErrRemoteNotFound) {
			return Action{}, false, nil
		}
		return Action{}, false, fmt.Errorf(readRemoteErrorTemplateConstant, shared.OriginRemoteNameConstant, readError)
	}

	remote, parseError := gitrepo.ParseRemoteURL(currentURL)
	if parseError != nil {
		binder.dependencies.Logger.Warn(unparsableRemoteLogMessageConstant, zap.String(logFieldRepositoryConstant, repositoryPath), zap.Error(parseError))
		return Action{}, false, nil
	}
	if strings.EqualFold(remote.Host, account.HostAlias) {
		return Action{}, false, nil
	}

	targetURL, formatError := gitrepo.FormatAliasRemoteURL(account.HostAlias, remote.OwnerPath)
	if formatError != nil {
		return Action{}, false, fmt.Errorf(formatRemoteErrorTemplateConstant, account.HostAlias, formatError)
	}
	return Action{Kind: ActionRewriteRemote, Target: shared.OriginRemoteNameConstant, From: currentURL, To: targetURL}, true, nil
}

func (binder *Binder) perform(executionContext context.Context, repositoryPath string, account accounts.Account, action Action) error {
	switch action.Kind {
	case ActionUpsertSSHHost:
		_, upsertError := binder.dependencies.SSHConfig.UpsertHost(HostBlockFor(account))
		return upsertError
	case ActionSetUserName, ActionSetUserEmail:
		return binder.dependencies.GitConfig.SetConfig(executionContext, repositoryPath, action.Target, action.To)
	case ActionRewriteRemote:
		return binder.dependencies.GitConfig.SetRemoteURL(executionContext, repositoryPath, action.Target, action.To)
	case ActionSetGlobalUserName, ActionSetGlobalUserEmail:
		return binder.dependencies.GlobalConfig.SetConfig(executionContext, action.Target, action.To)
	default:
		return nil
	}
}

func (binder *Binder) logAction(message string, repositoryPath string, action Action) {
	binder.dependencies.Logger.Info(
		message,
		zap.String(logFieldRepositoryConstant, repositoryPath),
		zap.String(logFieldActionConstant, string(action.Kind)),
		zap.String(logFieldTargetConstant, action.Target),
		zap.String(logFieldValueConstant, action.To),
	)
}
