package sshconfig_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitid/internal/repos/filesystem"
	"github.com/temirov/gitid/internal/sshconfig"
)

func newSynchronizer(testInstance *testing.T, initialContent string) (*sshconfig.Synchronizer, string) {
	testInstance.Helper()
	configPath := filepath.Join(testInstance.TempDir(), ".ssh", "config")
	if len(initialContent) > 0 {
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(configPath), 0o700))
		require.NoError(testInstance, os.WriteFile(configPath, []byte(initialContent), 0o600))
	}
	return sshconfig.NewSynchronizer(filesystem.OSFileSystem{}, configPath, nil), configPath
}

func TestSynchronizerUpsertIsIdempotent(testInstance *testing.T) {
	synchronizer, configPath := newSynchronizer(testInstance, unmanagedConfigContent)

	changed, upsertError := synchronizer.UpsertHost(workHost())
	require.NoError(testInstance, upsertError)
	require.True(testInstance, changed)

	firstContent, readError := os.ReadFile(configPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, unmanagedConfigContent+"\n"+workManagedBlock, string(firstContent))
	firstInfo, statError := os.Stat(configPath)
	require.NoError(testInstance, statError)

	changedAgain, secondError := synchronizer.UpsertHost(workHost())
	require.NoError(testInstance, secondError)
	require.False(testInstance, changedAgain)

	secondContent, secondReadError := os.ReadFile(configPath)
	require.NoError(testInstance, secondReadError)
	require.Equal(testInstance, firstContent, secondContent)
	secondInfo, secondStatError := os.Stat(configPath)
	require.NoError(testInstance, secondStatError)
	require.Equal(testInstance, firstInfo.ModTime(), secondInfo.ModTime())

	current, currentError := synchronizer.IsCurrent(workHost())
	require.NoError(testInstance, currentError)
	require.True(testInstance, current)
}

func TestSynchronizerCreatesMissingConfig(testInstance *testing.T) {
	synchronizer, configPath := newSynchronizer(testInstance, "")

	_, missing, inspectError := synchronizer.Inspect("github.com-work")
	require.NoError(testInstance, inspectError)
	require.False(testInstance, missing)

	changed, upsertError := synchronizer.UpsertHost(workHost())
	require.NoError(testInstance, upsertError)
	require.True(testInstance, changed)

	info, statError := os.Stat(configPath)
	require.NoError(testInstance, statError)
	require.Equal(testInstance, os.FileMode(0o600), info.Mode().Perm())

	host, found, inspectAfterError := synchronizer.Inspect("github.com-work")
	require.NoError(testInstance, inspectAfterError)
	require.True(testInstance, found)
	require.Equal(testInstance, workHost(), host)
}

func TestSynchronizerRemoveHost(testInstance *testing.T) {
	synchronizer, configPath := newSynchronizer(testInstance, unmanagedConfigContent+workManagedBlock)

	removed, removeError := synchronizer.RemoveHost("github.com-work")
	require.NoError(testInstance, removeError)
	require.True(testInstance, removed)

	content, readError := os.ReadFile(configPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, unmanagedConfigContent, string(content))

	removedAgain, secondError := synchronizer.RemoveHost("github.com-work")
	require.NoError(testInstance, secondError)
	require.False(testInstance, removedAgain)
}

func TestSynchronizerRefusesMalformedConfig(testInstance *testing.T) {
	malformed := unmanagedConfigContent + "# >>> gitid managed host: broken >>>\nHost broken\n"
	synchronizer, configPath := newSynchronizer(testInstance, malformed)

	_, upsertError := synchronizer.UpsertHost(workHost())
	require.ErrorAs(testInstance, upsertError, &sshconfig.SSHConfigParseError{})

	_, removeError := synchronizer.RemoveHost("broken")
	require.ErrorAs(testInstance, removeError, &sshconfig.SSHConfigParseError{})

	content, readError := os.ReadFile(configPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, malformed, string(content))
}

func TestSynchronizerRejectsInvalidHostBlocks(testInstance *testing.T) {
	synchronizer, configPath := newSynchronizer(testInstance, "")

	invalidHost := workHost()
	invalidHost.HostName = ""
	_, upsertError := synchronizer.UpsertHost(invalidHost)
	require.ErrorAs(testInstance, upsertError, &sshconfig.InvalidHostBlockError{})

	_, statError := os.Stat(configPath)
	require.True(testInstance, os.IsNotExist(statError))
}

func TestSynchronizerSerializesConcurrentUpserts(testInstance *testing.T) {
	synchronizer, configPath := newSynchronizer(testInstance, unmanagedConfigContent)
	observedCore, observedLogs := observer.New(zapcore.InfoLevel)
	loggingSynchronizer := sshconfig.NewSynchronizer(filesystem.OSFileSystem{}, configPath, zap.New(observedCore))

	const hostCount = 8
	var waitGroup sync.WaitGroup
	for hostIndex := 0; hostIndex < hostCount; hostIndex++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			host := workHost()
			host.Alias = fmt.Sprintf("github.com-account%d", index)
			target := synchronizer
			if index%2 == 0 {
				target = loggingSynchronizer
			}
			_, upsertError := target.UpsertHost(host)
			require.NoError(testInstance, upsertError)
		}(hostIndex)
	}
	waitGroup.Wait()

	aliases, aliasesError := synchronizer.ManagedAliases()
	require.NoError(testInstance, aliasesError)
	require.Len(testInstance, aliases, hostCount)
	require.Equal(testInstance, hostCount/2, observedLogs.FilterMessage("Updated managed SSH host block").Len())
}

func TestSynchronizerRefusesUnmanagedAliasCollision(testInstance *testing.T) {
	legacyContent := "Host github.com-work\n  HostName github.com\n  IdentityFile ~/.ssh/old\n"
	synchronizer, configPath := newSynchronizer(testInstance, legacyContent)

	changed, upsertError := synchronizer.UpsertHost(workHost())
	require.ErrorIs(testInstance, upsertError, sshconfig.ErrHostAliasConflict)
	require.False(testInstance, changed)

	_, currentError := synchronizer.IsCurrent(workHost())
	require.ErrorIs(testInstance, currentError, sshconfig.ErrHostAliasConflict)
	require.ErrorIs(testInstance, synchronizer.CheckAlias(workHost().Alias), sshconfig.ErrHostAliasConflict)
	require.NoError(testInstance, synchronizer.CheckAlias("gitlab.com-personal"))

	content, readError := os.ReadFile(configPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, legacyContent, string(content))
}

func TestSynchronizerWritesThroughSymlinkedConfig(testInstance *testing.T) {
	homeDirectory := testInstance.TempDir()
	dotfilesConfig := filepath.Join(homeDirectory, "dotfiles", "ssh-config")
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(dotfilesConfig), 0o700))
	require.NoError(testInstance, os.WriteFile(dotfilesConfig, []byte("Host old\n"), 0o600))
	configPath := filepath.Join(homeDirectory, ".ssh", "config")
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(configPath), 0o700))
	require.NoError(testInstance, os.Symlink(dotfilesConfig, configPath))

	synchronizer := sshconfig.NewSynchronizer(filesystem.OSFileSystem{}, configPath, nil)
	changed, upsertError := synchronizer.UpsertHost(workHost())
	require.NoError(testInstance, upsertError)
	require.True(testInstance, changed)

	linkInfo, lstatError := os.Lstat(configPath)
	require.NoError(testInstance, lstatError)
	require.NotZero(testInstance, linkInfo.Mode()&os.ModeSymlink)

	content, readError := os.ReadFile(dotfilesConfig)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "Host old\n\n"+workManagedBlock, string(content))

	removed, removeError := synchronizer.RemoveHost(workHost().Alias)
	require.NoError(testInstance, removeError)
	require.True(testInstance, removed)
	restored, restoredError := os.ReadFile(dotfilesConfig)
	require.NoError(testInstance, restoredError)
	require.Equal(testInstance, "Host old\n", string(restored))
}
