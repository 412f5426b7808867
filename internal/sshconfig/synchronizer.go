package sshconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitid/internal/repos/shared"
)

const (
	configFilePermissionsConstant      = fs.FileMode(0o600)
	readConfigErrorTemplateConstant    = "unable to read ssh config %s: %w"
	parseConfigErrorTemplateConstant   = "unable to parse ssh config %s: %w"
	writeConfigErrorTemplateConstant   = "unable to write ssh config %s: %w"
	aliasUnavailableTemplateConstant   = "ssh config %s: %w"
	invalidHostBlockTemplateConstant   = "invalid host block %q: %s"
	missingAliasMessageConstant        = "alias is required"
	aliasWhitespaceMessageConstant     = "alias must not contain whitespace"
	missingHostNameMessageConstant     = "hostname is required"
	missingIdentityFileMessageConstant = "identity file is required"
	hostUpsertedLogMessageConstant     = "Updated managed SSH host block"
	hostRemovedLogMessageConstant      = "Removed managed SSH host block"
	hostUnchangedLogMessageConstant    = "Managed SSH host block already current"
	logFieldAliasConstant              = "alias"
	logFieldPathConstant               = "path"
)

// configFileLocks serializes read-modify-write cycles on each SSH config path within the process.
var configFileLocks shared.PathLocks

// InvalidHostBlockError reports a host block that cannot be written.
type InvalidHostBlockError struct {
	Alias   string
	Message string
}

// Error describes the invalid block.
func (invalidError InvalidHostBlockError) Error() string {
	return fmt.Sprintf(invalidHostBlockTemplateConstant, invalidError.Alias, invalidError.Message)
}

// Validate checks that the block can be rendered into a usable Host entry.
func (host HostBlock) Validate() error {
	switch {
	case len(strings.TrimSpace(host.Alias)) == 0:
		return InvalidHostBlockError{Alias: host.Alias, Message: missingAliasMessageConstant}
	case strings.ContainsAny(host.Alias, " \t\r\n"):
		return InvalidHostBlockError{Alias: host.Alias, Message: aliasWhitespaceMessageConstant}
	case len(strings.TrimSpace(host.HostName)) == 0:
		return InvalidHostBlockError{Alias: host.Alias, Message: missingHostNameMessageConstant}
	case len(strings.TrimSpace(host.IdentityFile)) == 0:
		return InvalidHostBlockError{Alias: host.Alias, Message: missingIdentityFileMessageConstant}
	default:
		return nil
	}
}

// Synchronizer applies managed host block changes to an SSH config file on disk.
type Synchronizer struct {
	fileSystem shared.FileSystem
	path       string
	logger     *zap.Logger
}

// NewSynchronizer constructs a Synchronizer for the SSH config at path.
func NewSynchronizer(fileSystem shared.FileSystem, path string, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{fileSystem: fileSystem, path: path, logger: logger}
}

// Path returns the SSH config location.
func (synchronizer *Synchronizer) Path() string {
	return synchronizer.path
}

// UpsertHost writes host into the config and reports whether the file changed. A file whose managed
// blocks cannot be delimited, or that declares the alias in an unmanaged Host entry, is left untouched.
func (synchronizer *Synchronizer) UpsertHost(host HostBlock) (bool, error) {
	if validationError := host.Validate(); validationError != nil {
		return false, validationError
	}
	changed, updateError := synchronizer.update(func(document Document) (Document, bool, error) {
		updated, upsertError := document.Upsert(host)
		return updated, upsertError == nil, upsertError
	})
	if updateError != nil {
		return false, updateError
	}
	if changed {
		synchronizer.logger.Info(hostUpsertedLogMessageConstant, zap.String(logFieldAliasConstant, host.Alias), zap.String(logFieldPathConstant, synchronizer.path))
	} else {
		synchronizer.logger.Debug(hostUnchangedLogMessageConstant, zap.String(logFieldAliasConstant, host.Alias), zap.String(logFieldPathConstant, synchronizer.path))
	}
	return changed, nil
}

// RemoveHost deletes the managed block for alias and reports whether one existed.
func (synchronizer *Synchronizer) RemoveHost(alias string) (bool, error) {
	removed := false
	_, updateError := synchronizer.update(func(document Document) (Document, bool, error) {
		var updated Document
		updated, removed = document.Remove(alias)
		return updated, removed, nil
	})
	if updateError != nil {
		return false, updateError
	}
	if removed {
		synchronizer.logger.Info(hostRemovedLogMessageConstant, zap.String(logFieldAliasConstant, alias), zap.String(logFieldPathConstant, synchronizer.path))
	}
	return removed, nil
}

// Inspect returns the managed block for alias as currently stored.
func (synchronizer *Synchronizer) Inspect(alias string) (HostBlock, bool, error) {
	release := configFileLocks.Lock(synchronizer.path)
	defer release()

	document, _, loadError := synchronizer.load()
	if loadError != nil {
		return HostBlock{}, false, loadError
	}
	host, found := document.Lookup(alias)
	return host, found, nil
}

// IsCurrent reports whether the stored block for host.Alias already matches host. An alias claimed
// by an unmanaged Host entry yields a HostAliasConflictError.
func (synchronizer *Synchronizer) IsCurrent(host HostBlock) (bool, error) {
	release := configFileLocks.Lock(synchronizer.path)
	defer release()

	document, _, loadError := synchronizer.load()
	if loadError != nil {
		return false, loadError
	}
	if conflictError := document.CheckAlias(host.Alias); conflictError != nil {
		return false, fmt.Errorf(aliasUnavailableTemplateConstant, synchronizer.path, conflictError)
	}
	return document.IsCurrent(host), nil
}

// CheckAlias reports a HostAliasConflictError when alias is declared outside the managed blocks.
func (synchronizer *Synchronizer) CheckAlias(alias string) error {
	release := configFileLocks.Lock(synchronizer.path)
	defer release()

	document, _, loadError := synchronizer.load()
	if loadError != nil {
		return loadError
	}
	if conflictError := document.CheckAlias(alias); conflictError != nil {
		return fmt.Errorf(aliasUnavailableTemplateConstant, synchronizer.path, conflictError)
	}
	return nil
}

// ManagedAliases lists the aliases of all managed blocks in file order.
func (synchronizer *Synchronizer) ManagedAliases() ([]string, error) {
	release := configFileLocks.Lock(synchronizer.path)
	defer release()

	document, _, loadError := synchronizer.load()
	if loadError != nil {
		return nil, loadError
	}
	return document.ManagedAliases(), nil
}

func (synchronizer *Synchronizer) update(mutate func(Document) (Document, bool, error)) (bool, error) {
	release := configFileLocks.Lock(synchronizer.path)
	defer release()

	document, originalContent, loadError := synchronizer.load()
	if loadError != nil {
		return false, loadError
	}
	updatedDocument, proceed, mutateError := mutate(document)
	if mutateError != nil {
		return false, fmt.Errorf(aliasUnavailableTemplateConstant, synchronizer.path, mutateError)
	}
	if !proceed {
		return false, nil
	}
	updatedContent := updatedDocument.Render()
	if bytes.Equal(updatedContent, originalContent) {
		return false, nil
	}
	if writeError := synchronizer.fileSystem.WriteFile(synchronizer.path, updatedContent, configFilePermissionsConstant); writeError != nil {
		return false, fmt.Errorf(writeConfigErrorTemplateConstant, synchronizer.path, writeError)
	}
	return true, nil
}

func (synchronizer *Synchronizer) load() (Document, []byte, error) {
	content, readError := synchronizer.fileSystem.ReadFile(synchronizer.path)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return Document{}, nil, nil
		}
		return Document{}, nil, fmt.Errorf(readConfigErrorTemplateConstant, synchronizer.path, readError)
	}
	document, parseError := Parse(content)
	if parseError != nil {
		return Document{}, nil, fmt.Errorf(parseConfigErrorTemplateConstant, synchronizer.path, parseError)
	}
	return document, content, nil
}
