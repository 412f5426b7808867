package accounts

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"

	"github.com/temirov/gitid/internal/repos/shared"
)

// DefaultStoreFileNameConstant is the file name of the account store inside the gitid configuration directory.
const DefaultStoreFileNameConstant = "accounts.toml"

const (
	storeFilePermissionsConstant         = fs.FileMode(0o600)
	readStoreErrorTemplateConstant       = "unable to read account store %s: %w"
	parseStoreErrorTemplateConstant      = "unable to parse account store %s: %w"
	invalidStoredAccountTemplateConstant = "account store %s: %w"
	encodeStoreErrorTemplateConstant     = "unable to encode account store: %w"
	writeStoreErrorTemplateConstant      = "unable to write account store %s: %w"
)

type storeDocument struct {
	Accounts map[string]Account `toml:"accounts"`
}

// FileRepository loads and saves a Store as a TOML document keyed by account name.
type FileRepository struct {
	fileSystem shared.FileSystem
	clock      shared.Clock
	path       string
}

// NewFileRepository constructs a FileRepository for the store file at path.
func NewFileRepository(fileSystem shared.FileSystem, clock shared.Clock, path string) *FileRepository {
	return &FileRepository{fileSystem: fileSystem, clock: clock, path: path}
}

// Path returns the store file location.
func (repository *FileRepository) Path() string {
	return repository.path
}

// Load reads the store file. A missing file yields an empty store.
func (repository *FileRepository) Load() (*Store, error) {
	store := NewStore(repository.clock)
	content, readError := repository.fileSystem.ReadFile(repository.path)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf(readStoreErrorTemplateConstant, repository.path, readError)
	}

	var document storeDocument
	if decodeError := toml.Unmarshal(content, &document); decodeError != nil {
		return nil, fmt.Errorf(parseStoreErrorTemplateConstant, repository.path, decodeError)
	}
	for name, account := range document.Accounts {
		account.Name = name
		if _, addError := store.Add(account); addError != nil {
			return nil, fmt.Errorf(invalidStoredAccountTemplateConstant, repository.path, addError)
		}
	}
	return store, nil
}

// Save writes store atomically with owner-only permissions.
func (repository *FileRepository) Save(store *Store) error {
	document := storeDocument{Accounts: map[string]Account{}}
	for _, account := range store.List() {
		document.Accounts[account.Name] = account
	}

	var buffer bytes.Buffer
	if encodeError := toml.NewEncoder(&buffer).Encode(document); encodeError != nil {
		return fmt.Errorf(encodeStoreErrorTemplateConstant, encodeError)
	}
	if writeError := repository.fileSystem.WriteFile(repository.path, buffer.Bytes(), storeFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeStoreErrorTemplateConstant, repository.path, writeError)
	}
	return nil
}
