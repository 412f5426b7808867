package sshkeys_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitid/internal/repos/filesystem"
	"github.com/temirov/gitid/internal/sshkeys"
)

const (
	testPrivateKeyNameConstant  = "id_ed25519_work"
	testPublicKeySuffixConstant = ".pub"
	testCommentConstant         = "dev@acme.example"
)

func TestGenerateAndValidate(testInstance *testing.T) {
	keyDirectory := filepath.Join(testInstance.TempDir(), ".ssh")
	privateKeyPath := filepath.Join(keyDirectory, testPrivateKeyNameConstant)
	publicKeyPath := privateKeyPath + testPublicKeySuffixConstant
	manager := sshkeys.NewManager(filesystem.OSFileSystem{})

	generated, generateError := manager.Generate(privateKeyPath, publicKeyPath, testCommentConstant)
	require.NoError(testInstance, generateError)
	require.Equal(testInstance, "ssh-ed25519", generated.Type)
	require.True(testInstance, strings.HasPrefix(generated.Fingerprint, "SHA256:"))

	privateInfo, statError := os.Stat(privateKeyPath)
	require.NoError(testInstance, statError)
	require.Equal(testInstance, os.FileMode(0o600), privateInfo.Mode().Perm())

	publicContent, readError := os.ReadFile(publicKeyPath)
	require.NoError(testInstance, readError)
	require.True(testInstance, strings.HasPrefix(string(publicContent), "ssh-ed25519 "))
	require.True(testInstance, strings.HasSuffix(string(publicContent), " "+testCommentConstant+"\n"))

	validated, validateError := manager.Validate(privateKeyPath, publicKeyPath)
	require.NoError(testInstance, validateError)
	require.Equal(testInstance, generated.Fingerprint, validated.Fingerprint)
	require.False(testInstance, validated.Encrypted)

	_, regenerateError := manager.Generate(privateKeyPath, publicKeyPath, testCommentConstant)
	require.ErrorIs(testInstance, regenerateError, sshkeys.ErrKeyExists)
}

func TestValidateRejectsBadKeys(testInstance *testing.T) {
	keyDirectory := testInstance.TempDir()
	manager := sshkeys.NewManager(filesystem.OSFileSystem{})

	firstPrivate := filepath.Join(keyDirectory, "first")
	_, firstError := manager.Generate(firstPrivate, firstPrivate+testPublicKeySuffixConstant, "")
	require.NoError(testInstance, firstError)
	secondPrivate := filepath.Join(keyDirectory, "second")
	_, secondError := manager.Generate(secondPrivate, secondPrivate+testPublicKeySuffixConstant, "")
	require.NoError(testInstance, secondError)

	testInstance.Run("public_key_mismatch", func(subtest *testing.T) {
		_, validateError := manager.Validate(firstPrivate, secondPrivate+testPublicKeySuffixConstant)
		require.ErrorIs(subtest, validateError, sshkeys.ErrPublicKeyMismatch)
	})

	testInstance.Run("missing_public_key_is_allowed", func(subtest *testing.T) {
		keyInfo, validateError := manager.Validate(firstPrivate, filepath.Join(keyDirectory, "absent.pub"))
		require.NoError(subtest, validateError)
		require.Equal(subtest, "ssh-ed25519", keyInfo.Type)
	})

	testInstance.Run("open_permissions", func(subtest *testing.T) {
		openPrivate := filepath.Join(keyDirectory, "open")
		content, readError := os.ReadFile(firstPrivate)
		require.NoError(subtest, readError)
		require.NoError(subtest, os.WriteFile(openPrivate, content, 0o644))
		require.NoError(subtest, os.Chmod(openPrivate, 0o644))

		_, validateError := manager.Validate(openPrivate, openPrivate+testPublicKeySuffixConstant)
		require.ErrorAs(subtest, validateError, &sshkeys.KeyPermissionError{})
	})

	testInstance.Run("garbage_content", func(subtest *testing.T) {
		garbagePrivate := filepath.Join(keyDirectory, "garbage")
		require.NoError(subtest, os.WriteFile(garbagePrivate, []byte("not a key\n"), 0o600))

		_, validateError := manager.Validate(garbagePrivate, garbagePrivate+testPublicKeySuffixConstant)
		require.Error(subtest, validateError)
	})

	testInstance.Run("missing_private_key", func(subtest *testing.T) {
		_, validateError := manager.Validate(filepath.Join(keyDirectory, "nothing"), "")
		require.Error(subtest, validateError)
	})
}
