package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	formatconfig "github.com/go-git/go-git/v5/plumbing/format/config"

	"github.com/temirov/gitid/internal/repos/shared"
)

const (
	gitDirectoryNameConstant             = ".git"
	gitConfigFileNameConstant            = "config"
	gitCommonDirFileNameConstant         = "commondir"
	gitDirPointerPrefixConstant          = "gitdir:"
	configKeySeparatorConstant           = "."
	remoteSectionNameConstant            = "remote"
	remoteURLOptionNameConstant          = "url"
	configFilePermissionsConstant        = fs.FileMode(0o644)
	invalidConfigKeyTemplateConstant     = "invalid git config key %q"
	notRepositoryTemplateConstant        = "%s is not a git repository"
	invalidGitDirPointerTemplateConstant = "%s contains an invalid gitdir pointer"
	readConfigErrorTemplateConstant      = "unable to read git config %s: %w"
	decodeConfigErrorTemplateConstant    = "unable to parse git config %s: %w"
	configWriteErrorTemplateConstant     = "unable to write %s in %s: %v"
	missingConfigValueTemplateConstant   = "%s is not set in %s"
	missingRemoteTemplateConstant        = "remote %s is not configured in %s"
)

// ErrConfigValueNotFound indicates the requested key has no value in the repository config.
var ErrConfigValueNotFound = errors.New("git config value not found")

// ErrRemoteNotFound indicates the requested remote is not configured.
var ErrRemoteNotFound = errors.New("git remote not found")

// ErrNotRepository indicates the path does not contain a git directory.
var ErrNotRepository = errors.New("not a git repository")

// ConfigWriteError reports a failure to persist a configuration change.
type ConfigWriteError struct {
	RepositoryPath string
	Key            string
	Cause          error
}

// Error describes the failed write.
func (writeError ConfigWriteError) Error() string {
	return fmt.Sprintf(configWriteErrorTemplateConstant, writeError.Key, writeError.RepositoryPath, writeError.Cause)
}

// Unwrap exposes the underlying failure.
func (writeError ConfigWriteError) Unwrap() error {
	return writeError.Cause
}

// RepositoryConfig captures the identity-related values of a repository's local configuration.
type RepositoryConfig struct {
	UserName  string
	UserEmail string
	OriginURL string
}

// ConfigManager reads and writes repository-local git configuration files directly.
// Reads decode the whole file; writes splice the changed option into the original text so
// comments and unrelated lines survive. Writes to the same repository are serialized and
// replace the file atomically.
type ConfigManager struct {
	fileSystem shared.FileSystem
	locks      shared.PathLocks
}

// NewConfigManager constructs a ConfigManager backed by the provided filesystem.
func NewConfigManager(fileSystem shared.FileSystem) *ConfigManager {
	return &ConfigManager{fileSystem: fileSystem}
}

// ResolveConfigPath locates the configuration file for a working tree. A .git file holding a
// gitdir pointer is followed, and linked worktrees resolve to their common directory.
func (manager *ConfigManager) ResolveConfigPath(repositoryPath string) (string, error) {
	gitPath := filepath.Join(repositoryPath, gitDirectoryNameConstant)
	gitInfo, statError := manager.fileSystem.Stat(gitPath)
	if statError != nil {
		return "", fmt.Errorf(notRepositoryTemplateConstant+": %w", repositoryPath, ErrNotRepository)
	}
	if gitInfo.IsDir() {
		return filepath.Join(gitPath, gitConfigFileNameConstant), nil
	}

	pointerContent, readError := manager.fileSystem.ReadFile(gitPath)
	if readError != nil {
		return "", fmt.Errorf(readConfigErrorTemplateConstant, gitPath, readError)
	}
	gitDirectory, pointerError := parseGitDirPointer(string(pointerContent))
	if pointerError != nil {
		return "", fmt.Errorf(invalidGitDirPointerTemplateConstant+": %w", gitPath, ErrNotRepository)
	}
	if !filepath.IsAbs(gitDirectory) {
		gitDirectory = filepath.Join(repositoryPath, gitDirectory)
	}

	commonDirContent, commonDirError := manager.fileSystem.ReadFile(filepath.Join(gitDirectory, gitCommonDirFileNameConstant))
	if commonDirError == nil {
		commonDirectory := strings.TrimSpace(string(commonDirContent))
		if len(commonDirectory) > 0 {
			if !filepath.IsAbs(commonDirectory) {
				commonDirectory = filepath.Join(gitDirectory, commonDirectory)
			}
			return filepath.Join(filepath.Clean(commonDirectory), gitConfigFileNameConstant), nil
		}
	}
	return filepath.Join(filepath.Clean(gitDirectory), gitConfigFileNameConstant), nil
}

// ReadRepositoryConfig loads user.name, user.email, and the origin URL in a single read.
func (manager *ConfigManager) ReadRepositoryConfig(executionContext context.Context, repositoryPath string) (RepositoryConfig, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return RepositoryConfig{}, contextError
	}
	_, _, configuration, loadError := manager.load(repositoryPath)
	if loadError != nil {
		return RepositoryConfig{}, loadError
	}
	userName, _ := lookupValue(configuration, shared.GitUserNameKeyConstant)
	userEmail, _ := lookupValue(configuration, shared.GitUserEmailKeyConstant)
	originURL, _ := lookupValue(configuration, remoteURLKey(shared.OriginRemoteNameConstant))
	return RepositoryConfig{UserName: userName, UserEmail: userEmail, OriginURL: originURL}, nil
}

// GetConfig returns the value stored for key, or ErrConfigValueNotFound.
func (manager *ConfigManager) GetConfig(executionContext context.Context, repositoryPath string, key string) (string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	if _, _, keyError := splitConfigKey(key); keyError != nil {
		return "", keyError
	}
	_, _, configuration, loadError := manager.load(repositoryPath)
	if loadError != nil {
		return "", loadError
	}
	value, found := lookupValue(configuration, key)
	if !found {
		return "", fmt.Errorf(missingConfigValueTemplateConstant+": %w", key, repositoryPath, ErrConfigValueNotFound)
	}
	return value, nil
}

// SetConfig stores value under key. The file is left untouched when the value already matches.
func (manager *ConfigManager) SetConfig(executionContext context.Context, repositoryPath string, key string, value string) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if _, _, keyError := splitConfigKey(key); keyError != nil {
		return keyError
	}
	release := manager.locks.Lock(repositoryPath)
	defer release()

	configPath, content, configuration, loadError := manager.load(repositoryPath)
	if loadError != nil {
		return loadError
	}
	if currentValue, found := lookupValue(configuration, key); found && currentValue == value {
		return nil
	}
	return manager.store(repositoryPath, key, configPath, spliceConfigValue(content, key, value))
}

// GetRemoteURL returns the URL of the named remote, or ErrRemoteNotFound.
func (manager *ConfigManager) GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	remoteURL, getError := manager.GetConfig(executionContext, repositoryPath, remoteURLKey(remoteName))
	if errors.Is(getError, ErrConfigValueNotFound) {
		return "", fmt.Errorf(missingRemoteTemplateConstant+": %w", remoteName, repositoryPath, ErrRemoteNotFound)
	}
	return remoteURL, getError
}

// SetRemoteURL points the named remote at remoteURL.
func (manager *ConfigManager) SetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string) error {
	return manager.SetConfig(executionContext, repositoryPath, remoteURLKey(remoteName), remoteURL)
}

func (manager *ConfigManager) load(repositoryPath string) (string, []byte, *formatconfig.Config, error) {
	configPath, resolveError := manager.ResolveConfigPath(repositoryPath)
	if resolveError != nil {
		return "", nil, nil, resolveError
	}
	content, configuration, readError := readConfigFile(manager.fileSystem, configPath)
	if readError != nil {
		return "", nil, nil, readError
	}
	return configPath, content, configuration, nil
}

// readConfigFile decodes the config file at configPath. A missing file yields an empty configuration.
func readConfigFile(fileSystem shared.FileSystem, configPath string) ([]byte, *formatconfig.Config, error) {
	configuration := formatconfig.New()
	content, readError := fileSystem.ReadFile(configPath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil, configuration, nil
		}
		return nil, nil, fmt.Errorf(readConfigErrorTemplateConstant, configPath, readError)
	}
	if decodeError := formatconfig.NewDecoder(bytes.NewReader(content)).Decode(configuration); decodeError != nil {
		return nil, nil, fmt.Errorf(decodeConfigErrorTemplateConstant, configPath, decodeError)
	}
	return content, configuration, nil
}

func (manager *ConfigManager) store(repositoryPath string, key string, configPath string, content []byte) error {
	if writeError := manager.fileSystem.WriteFile(configPath, content, configFilePermissionsConstant); writeError != nil {
		return ConfigWriteError{RepositoryPath: repositoryPath, Key: key, Cause: writeError}
	}
	return nil
}

func parseGitDirPointer(content string) (string, error) {
	for _, line := range strings.Split(content, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmedLine, gitDirPointerPrefixConstant) {
			continue
		}
		gitDirectory := strings.TrimSpace(strings.TrimPrefix(trimmedLine, gitDirPointerPrefixConstant))
		if len(gitDirectory) > 0 {
			return gitDirectory, nil
		}
	}
	return "", ErrNotRepository
}

func remoteURLKey(remoteName string) string {
	return strings.Join([]string{remoteSectionNameConstant, remoteName, remoteURLOptionNameConstant}, configKeySeparatorConstant)
}

// splitConfigKey separates section.option and section.subsection.option keys.
func splitConfigKey(key string) (string, string, error) {
	firstSeparator := strings.Index(key, configKeySeparatorConstant)
	lastSeparator := strings.LastIndex(key, configKeySeparatorConstant)
	if firstSeparator <= 0 || lastSeparator == len(key)-1 {
		return "", "", fmt.Errorf(invalidConfigKeyTemplateConstant, key)
	}
	return key[:firstSeparator], key[lastSeparator+1:], nil
}

func subsectionName(key string) (string, bool) {
	firstSeparator := strings.Index(key, configKeySeparatorConstant)
	lastSeparator := strings.LastIndex(key, configKeySeparatorConstant)
	if firstSeparator == lastSeparator {
		return "", false
	}
	return key[firstSeparator+1 : lastSeparator], true
}

func lookupValue(configuration *formatconfig.Config, key string) (string, bool) {
	sectionName, optionName, keyError := splitConfigKey(key)
	if keyError != nil || !configuration.HasSection(sectionName) {
		return "", false
	}
	section := configuration.Section(sectionName)
	subsection, hasSubsection := subsectionName(key)
	if !hasSubsection {
		if !section.HasOption(optionName) {
			return "", false
		}
		return section.Option(optionName), true
	}
	if !section.HasSubsection(subsection) {
		return "", false
	}
	resolvedSubsection := section.Subsection(subsection)
	if !resolvedSubsection.HasOption(optionName) {
		return "", false
	}
	return resolvedSubsection.Option(optionName), true
}
