package account

import (
	"time"

	"github.com/temirov/gitid/internal/bulkapply"
)

const (
	defaultKeysDirectoryConstant          = "~/.ssh"
	sshConfigurationKeyConstant           = "ssh"
	keysDirectoryConfigurationKeyConstant = "keys_directory"
)

// Configuration holds the values the account commands read.
type Configuration struct {
	KeysDirectory    string
	OperationTimeout time.Duration
}

// DefaultConfiguration returns baseline configuration values for account commands.
func DefaultConfiguration() Configuration {
	return Configuration{
		KeysDirectory:    defaultKeysDirectoryConstant,
		OperationTimeout: bulkapply.DefaultOperationTimeoutConstant,
	}
}

// DefaultConfigurationValues produces Viper defaults owned by the account commands.
func DefaultConfigurationValues() map[string]any {
	return map[string]any{
		sshConfigurationKeyConstant + "." + keysDirectoryConfigurationKeyConstant: DefaultConfiguration().KeysDirectory,
	}
}

func (configuration Configuration) sanitize() Configuration {
	defaults := DefaultConfiguration()
	if len(configuration.KeysDirectory) == 0 {
		configuration.KeysDirectory = defaults.KeysDirectory
	}
	if configuration.OperationTimeout <= 0 {
		configuration.OperationTimeout = defaults.OperationTimeout
	}
	return configuration
}
