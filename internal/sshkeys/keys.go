// Package sshkeys generates and validates the SSH key pairs referenced by accounts.
package sshkeys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"golang.org/x/crypto/ssh"

	"github.com/temirov/gitid/internal/repos/shared"
)

const (
	privateKeyPermissionsConstant        = fs.FileMode(0o600)
	publicKeyPermissionsConstant         = fs.FileMode(0o644)
	groupWorldPermissionMaskConstant     = fs.FileMode(0o077)
	authorizedKeyCommentTemplateConstant = "%s %s\n"
	keyExistsTemplateConstant            = "%s already exists: %w"
	generateKeyErrorTemplateConstant     = "unable to generate key pair: %w"
	encodeKeyErrorTemplateConstant       = "unable to encode private key: %w"
	writeKeyErrorTemplateConstant        = "unable to write %s: %w"
	readKeyErrorTemplateConstant         = "unable to read %s: %w"
	invalidKeyTemplateConstant           = "%s is not a valid SSH private key: %w"
	invalidPublicKeyTemplateConstant     = "%s is not a valid SSH public key: %w"
	keyPermissionsTemplateConstant       = "%s has permissions %04o; it must not be accessible by group or others"
	publicKeyMismatchTemplateConstant    = "%s does not match private key %s"
	trailingNewlineConstant              = "\n"
)

// ErrKeyExists indicates generation would overwrite an existing key file.
var ErrKeyExists = errors.New("key file exists")

// ErrPublicKeyMismatch indicates the public key file belongs to a different private key.
var ErrPublicKeyMismatch = errors.New("public key does not match private key")

// KeyPermissionError reports a private key readable by group or others.
type KeyPermissionError struct {
	Path        string
	Permissions fs.FileMode
}

// Error describes the permission problem.
func (permissionError KeyPermissionError) Error() string {
	return fmt.Sprintf(keyPermissionsTemplateConstant, permissionError.Path, uint32(permissionError.Permissions))
}

// KeyInfo describes a validated key pair.
type KeyInfo struct {
	PrivateKeyPath string
	PublicKeyPath  string
	Type           string
	Fingerprint    string
	Encrypted      bool
}

// Manager creates and inspects key files through a FileSystem.
type Manager struct {
	fileSystem   shared.FileSystem
	randomSource io.Reader
}

// NewManager constructs a Manager using crypto/rand for key material.
func NewManager(fileSystem shared.FileSystem) *Manager {
	return &Manager{fileSystem: fileSystem, randomSource: rand.Reader}
}

// Generate writes a new ed25519 key pair. Existing files are never overwritten.
func (manager *Manager) Generate(privateKeyPath string, publicKeyPath string, comment string) (KeyInfo, error) {
	for _, keyPath := range []string{privateKeyPath, publicKeyPath} {
		if _, statError := manager.fileSystem.Stat(keyPath); statError == nil {
			return KeyInfo{}, fmt.Errorf(keyExistsTemplateConstant, keyPath, ErrKeyExists)
		}
	}

	publicKey, privateKey, generateError := ed25519.GenerateKey(manager.randomSource)
	if generateError != nil {
		return KeyInfo{}, fmt.Errorf(generateKeyErrorTemplateConstant, generateError)
	}
	privateBlock, marshalError := ssh.MarshalPrivateKey(privateKey, comment)
	if marshalError != nil {
		return KeyInfo{}, fmt.Errorf(encodeKeyErrorTemplateConstant, marshalError)
	}
	sshPublicKey, publicKeyError := ssh.NewPublicKey(publicKey)
	if publicKeyError != nil {
		return KeyInfo{}, fmt.Errorf(encodeKeyErrorTemplateConstant, publicKeyError)
	}

	if writeError := manager.fileSystem.WriteFile(privateKeyPath, pem.EncodeToMemory(privateBlock), privateKeyPermissionsConstant); writeError != nil {
		return KeyInfo{}, fmt.Errorf(writeKeyErrorTemplateConstant, privateKeyPath, writeError)
	}
	if writeError := manager.fileSystem.WriteFile(publicKeyPath, formatAuthorizedKey(sshPublicKey, comment), publicKeyPermissionsConstant); writeError != nil {
		return KeyInfo{}, fmt.Errorf(writeKeyErrorTemplateConstant, publicKeyPath, writeError)
	}

	return KeyInfo{
		PrivateKeyPath: privateKeyPath,
		PublicKeyPath:  publicKeyPath,
		Type:           sshPublicKey.Type(),
		Fingerprint:    ssh.FingerprintSHA256(sshPublicKey),
	}, nil
}

// Validate checks that the private key parses, is not group or world accessible, and, when the
// public key file exists, that it belongs to the private key. Passphrase-protected keys are
// accepted without decryption.
func (manager *Manager) Validate(privateKeyPath string, publicKeyPath string) (KeyInfo, error) {
	privateKeyInfo, statError := manager.fileSystem.Stat(privateKeyPath)
	if statError != nil {
		return KeyInfo{}, fmt.Errorf(readKeyErrorTemplateConstant, privateKeyPath, statError)
	}
	if privateKeyInfo.Mode().Perm()&groupWorldPermissionMaskConstant != 0 {
		return KeyInfo{}, KeyPermissionError{Path: privateKeyPath, Permissions: privateKeyInfo.Mode().Perm()}
	}
	privateKeyContent, readError := manager.fileSystem.ReadFile(privateKeyPath)
	if readError != nil {
		return KeyInfo{}, fmt.Errorf(readKeyErrorTemplateConstant, privateKeyPath, readError)
	}

	keyInfo := KeyInfo{PrivateKeyPath: privateKeyPath, PublicKeyPath: publicKeyPath}
	var derivedPublicKey ssh.PublicKey
	signer, parseError := ssh.ParsePrivateKey(privateKeyContent)
	var passphraseError *ssh.PassphraseMissingError
	switch {
	case parseError == nil:
		derivedPublicKey = signer.PublicKey()
	case errors.As(parseError, &passphraseError):
		keyInfo.Encrypted = true
		derivedPublicKey = passphraseError.PublicKey
	default:
		return KeyInfo{}, fmt.Errorf(invalidKeyTemplateConstant, privateKeyPath, parseError)
	}

	publicKeyContent, publicReadError := manager.fileSystem.ReadFile(publicKeyPath)
	if publicReadError == nil {
		storedPublicKey, _, _, _, publicParseError := ssh.ParseAuthorizedKey(publicKeyContent)
		if publicParseError != nil {
			return KeyInfo{}, fmt.Errorf(invalidPublicKeyTemplateConstant, publicKeyPath, publicParseError)
		}
		if derivedPublicKey != nil && !bytes.Equal(storedPublicKey.Marshal(), derivedPublicKey.Marshal()) {
			return KeyInfo{}, fmt.Errorf(publicKeyMismatchTemplateConstant+": %w", publicKeyPath, privateKeyPath, ErrPublicKeyMismatch)
		}
		if derivedPublicKey == nil {
			derivedPublicKey = storedPublicKey
		}
	} else if !errors.Is(publicReadError, fs.ErrNotExist) {
		return KeyInfo{}, fmt.Errorf(readKeyErrorTemplateConstant, publicKeyPath, publicReadError)
	}

	if derivedPublicKey != nil {
		keyInfo.Type = derivedPublicKey.Type()
		keyInfo.Fingerprint = ssh.FingerprintSHA256(derivedPublicKey)
	}
	return keyInfo, nil
}

func formatAuthorizedKey(publicKey ssh.PublicKey, comment string) []byte {
	authorizedKey := bytes.TrimSuffix(ssh.MarshalAuthorizedKey(publicKey), []byte(trailingNewlineConstant))
	if len(comment) == 0 {
		return append(authorizedKey, trailingNewlineConstant...)
	}
	return []byte(fmt.Sprintf(authorizedKeyCommentTemplateConstant, authorizedKey, comment))
}
