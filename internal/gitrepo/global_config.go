package gitrepo

import (
	"context"
	"fmt"
	"sync"

	"github.com/temirov/gitid/internal/repos/shared"
)

const (
	globalScopeNameConstant            = "global"
	missingGlobalValueTemplateConstant = "%s is not set in global config %s"
)

// Identity is a user.name and user.email pair read from one configuration scope.
type Identity struct {
	Name  string
	Email string
}

// IsEmpty reports whether neither value is set.
func (identity Identity) IsEmpty() bool {
	return len(identity.Name) == 0 && len(identity.Email) == 0
}

// GlobalConfig reads and writes the user's global git configuration file. Like ConfigManager it
// splices changes into the existing text and replaces the file atomically.
type GlobalConfig struct {
	fileSystem shared.FileSystem
	path       string
	mutex      sync.Mutex
}

// NewGlobalConfig constructs a GlobalConfig for the file at path.
func NewGlobalConfig(fileSystem shared.FileSystem, path string) *GlobalConfig {
	return &GlobalConfig{fileSystem: fileSystem, path: path}
}

// Path returns the location of the global configuration file.
func (globalConfig *GlobalConfig) Path() string {
	return globalConfig.path
}

// ReadIdentity returns the global user.name and user.email. A missing file yields an empty identity.
func (globalConfig *GlobalConfig) ReadIdentity(executionContext context.Context) (Identity, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return Identity{}, contextError
	}
	_, configuration, readError := readConfigFile(globalConfig.fileSystem, globalConfig.path)
	if readError != nil {
		return Identity{}, readError
	}
	userName, _ := lookupValue(configuration, shared.GitUserNameKeyConstant)
	userEmail, _ := lookupValue(configuration, shared.GitUserEmailKeyConstant)
	return Identity{Name: userName, Email: userEmail}, nil
}

// GetConfig returns the global value stored for key, or ErrConfigValueNotFound.
func (globalConfig *GlobalConfig) GetConfig(executionContext context.Context, key string) (string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	if _, _, keyError := splitConfigKey(key); keyError != nil {
		return "", keyError
	}
	_, configuration, readError := readConfigFile(globalConfig.fileSystem, globalConfig.path)
	if readError != nil {
		return "", readError
	}
	value, found := lookupValue(configuration, key)
	if !found {
		return "", fmt.Errorf(missingGlobalValueTemplateConstant+": %w", key, globalConfig.path, ErrConfigValueNotFound)
	}
	return value, nil
}

// SetConfig stores value under key in the global file, creating it when absent. The file is left
// untouched when the value already matches.
func (globalConfig *GlobalConfig) SetConfig(executionContext context.Context, key string, value string) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if _, _, keyError := splitConfigKey(key); keyError != nil {
		return keyError
	}
	globalConfig.mutex.Lock()
	defer globalConfig.mutex.Unlock()

	content, configuration, readError := readConfigFile(globalConfig.fileSystem, globalConfig.path)
	if readError != nil {
		return readError
	}
	if currentValue, found := lookupValue(configuration, key); found && currentValue == value {
		return nil
	}
	if writeError := globalConfig.fileSystem.WriteFile(globalConfig.path, spliceConfigValue(content, key, value), configFilePermissionsConstant); writeError != nil {
		return ConfigWriteError{RepositoryPath: globalScopeNameConstant, Key: key, Cause: writeError}
	}
	return nil
}
