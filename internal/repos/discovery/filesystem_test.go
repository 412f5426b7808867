package discovery_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitid/internal/gitrepo"
	"github.com/temirov/gitid/internal/repos/discovery"
	"github.com/temirov/gitid/internal/repos/filesystem"
)

const (
	developerDirectoryName             = "Dev"
	engineeringGroupDirectoryName      = "Group1"
	applicationRepositoryDirectoryName = "Repo1"
	serviceRepositoryDirectoryName     = "Repo2"
	toolsRepositoryDirectoryName       = "Repo3"
	gitMetadataDirectoryName           = ".git"
	gitConfigFileName                  = "config"
	repositoryDirectoryPermissions     = 0o755
	repositoryFilePermissions          = 0o644
	identityConfigContent              = "[user]\n\tname = Alice\n\temail = alice@example.com\n[remote \"origin\"]\n\turl = git@github.com:acme/widgets.git\n"
	unparsableOriginConfigContent      = "[remote \"origin\"]\n\turl = /srv/git/widgets.git\n"
)

func createRepository(testInstance *testing.T, repositoryPath string, configContent string) {
	testInstance.Helper()
	gitDirectory := filepath.Join(repositoryPath, gitMetadataDirectoryName)
	require.NoError(testInstance, os.MkdirAll(gitDirectory, repositoryDirectoryPermissions))
	if len(configContent) == 0 {
		return
	}
	require.NoError(testInstance, os.WriteFile(filepath.Join(gitDirectory, gitConfigFileName), []byte(configContent), repositoryFilePermissions))
}

func newScanner(logger *zap.Logger) *discovery.Scanner {
	fileSystem := filesystem.OSFileSystem{}
	return discovery.NewScanner(fileSystem, gitrepo.NewConfigManager(fileSystem), logger)
}

func collectPaths(testInstance *testing.T, scanner *discovery.Scanner, root string, options discovery.Options) []string {
	testInstance.Helper()
	sequence, scanError := scanner.Scan(root, options)
	require.NoError(testInstance, scanError)
	var paths []string
	for repository := range sequence {
		paths = append(paths, repository.Path)
	}
	return paths
}

func TestScannerDiscoversNestedLayouts(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	expectedPaths := []string{
		filepath.Join(rootDirectory, developerDirectoryName, engineeringGroupDirectoryName, applicationRepositoryDirectoryName),
		filepath.Join(rootDirectory, developerDirectoryName, engineeringGroupDirectoryName, serviceRepositoryDirectoryName),
		filepath.Join(rootDirectory, developerDirectoryName, toolsRepositoryDirectoryName),
	}
	for _, repositoryPath := range expectedPaths {
		createRepository(testInstance, repositoryPath, "")
	}

	scanner := newScanner(nil)
	require.Equal(testInstance, expectedPaths, collectPaths(testInstance, scanner, rootDirectory, discovery.DefaultOptions()))

	repositories, scanError := scanner.ScanAll(context.Background(), rootDirectory, discovery.DefaultOptions())
	require.NoError(testInstance, scanError)
	require.Len(testInstance, repositories, len(expectedPaths))
	for repositoryIndex, repository := range repositories {
		require.Equal(testInstance, expectedPaths[repositoryIndex], repository.Path)
		require.False(testInstance, repository.HasRemote())
		require.Nil(testInstance, repository.LocalIdentity)
	}
	require.Equal(testInstance, 3, repositories[0].Depth)
	require.Equal(testInstance, 2, repositories[2].Depth)
}

func TestScannerTraversalRules(testInstance *testing.T) {
	testCases := []struct {
		name          string
		layout        []string
		options       discovery.Options
		expectedPaths []string
	}{
		{
			name:          "does_not_descend_into_repositories",
			layout:        []string{"outer", "outer/vendor/inner"},
			options:       discovery.DefaultOptions(),
			expectedPaths: []string{"outer"},
		},
		{
			name:          "descends_into_repositories_when_requested",
			layout:        []string{"outer", "outer/vendor/inner"},
			options:       discovery.Options{MaxDepth: 5, DescendIntoRepositories: true},
			expectedPaths: []string{"outer", "outer/vendor/inner"},
		},
		{
			name:          "inspects_max_depth_without_recursing",
			layout:        []string{"a/b", "a/c/d"},
			options:       discovery.Options{MaxDepth: 2},
			expectedPaths: []string{"a/b"},
		},
		{
			name:          "root_repository_at_depth_zero",
			layout:        []string{""},
			options:       discovery.Options{MaxDepth: 0},
			expectedPaths: []string{""},
		},
		{
			name:          "skips_hidden_directories",
			layout:        []string{".cache/repo", "visible"},
			options:       discovery.DefaultOptions(),
			expectedPaths: []string{"visible"},
		},
		{
			name:          "includes_hidden_directories_when_requested",
			layout:        []string{".cache/repo", "visible"},
			options:       discovery.Options{MaxDepth: 5, IncludeHidden: true},
			expectedPaths: []string{".cache/repo", "visible"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			rootDirectory := subtest.TempDir()
			for _, relativePath := range testCase.layout {
				createRepository(subtest, filepath.Join(rootDirectory, relativePath), "")
			}
			expectedPaths := make([]string, 0, len(testCase.expectedPaths))
			for _, relativePath := range testCase.expectedPaths {
				expectedPaths = append(expectedPaths, filepath.Join(rootDirectory, relativePath))
			}

			require.Equal(subtest, expectedPaths, collectPaths(subtest, newScanner(nil), rootDirectory, testCase.options))
		})
	}
}

func TestScannerDoesNotFollowSymlinks(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	targetDirectory := testInstance.TempDir()
	createRepository(testInstance, filepath.Join(targetDirectory, "linked"), "")
	require.NoError(testInstance, os.Symlink(targetDirectory, filepath.Join(rootDirectory, "link")))
	require.NoError(testInstance, os.Symlink(rootDirectory, filepath.Join(rootDirectory, "cycle")))

	require.Empty(testInstance, collectPaths(testInstance, newScanner(nil), rootDirectory, discovery.DefaultOptions()))
}

func TestScannerExtractsRemoteAndIdentity(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	createRepository(testInstance, filepath.Join(rootDirectory, "widgets"), identityConfigContent)
	createRepository(testInstance, filepath.Join(rootDirectory, "local"), unparsableOriginConfigContent)

	observedCore, observedLogs := observer.New(zapcore.WarnLevel)
	var issues []discovery.ScanIssue
	options := discovery.DefaultOptions()
	options.IssueHandler = func(issue discovery.ScanIssue) {
		issues = append(issues, issue)
	}

	repositories, scanError := newScanner(zap.New(observedCore)).ScanAll(context.Background(), rootDirectory, options)
	require.NoError(testInstance, scanError)
	require.Len(testInstance, repositories, 2)

	localRepository := repositories[0]
	require.Equal(testInstance, filepath.Join(rootDirectory, "local"), localRepository.Path)
	require.False(testInstance, localRepository.HasRemote())
	require.Empty(testInstance, localRepository.RemoteHost)
	require.Empty(testInstance, localRepository.RemoteOwnerPath)

	widgetsRepository := repositories[1]
	require.Equal(testInstance, "git@github.com:acme/widgets.git", widgetsRepository.RemoteURL)
	require.Equal(testInstance, "github.com", widgetsRepository.RemoteHost)
	require.Equal(testInstance, "acme/widgets", widgetsRepository.RemoteOwnerPath)
	require.Equal(testInstance, &discovery.Identity{Name: "Alice", Email: "alice@example.com"}, widgetsRepository.LocalIdentity)

	require.Len(testInstance, issues, 1)
	require.Equal(testInstance, discovery.IssueRemoteURLUnparsable, issues[0].Kind)
	require.Equal(testInstance, 1, observedLogs.Len())
}

func TestScannerSequenceIsRestartable(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	createRepository(testInstance, filepath.Join(rootDirectory, "first"), "")

	scanner := newScanner(nil)
	sequence, scanError := scanner.Scan(rootDirectory, discovery.DefaultOptions())
	require.NoError(testInstance, scanError)

	var firstPass []string
	for repository := range sequence {
		firstPass = append(firstPass, repository.Path)
	}
	createRepository(testInstance, filepath.Join(rootDirectory, "second"), "")
	var secondPass []string
	for repository := range sequence {
		secondPass = append(secondPass, repository.Path)
	}

	require.Equal(testInstance, []string{filepath.Join(rootDirectory, "first")}, firstPass)
	require.Equal(testInstance, []string{filepath.Join(rootDirectory, "first"), filepath.Join(rootDirectory, "second")}, secondPass)
}

func TestScannerRejectsUnreadableRoots(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	regularFile := filepath.Join(rootDirectory, "file.txt")
	require.NoError(testInstance, os.WriteFile(regularFile, []byte("content"), repositoryFilePermissions))

	scanner := newScanner(nil)
	for _, root := range []string{filepath.Join(rootDirectory, "missing"), regularFile} {
		_, scanError := scanner.Scan(root, discovery.DefaultOptions())
		require.ErrorIs(testInstance, scanError, discovery.ErrScanRootUnreadable)

		_, scanAllError := scanner.ScanAll(context.Background(), root, discovery.DefaultOptions())
		require.ErrorIs(testInstance, scanAllError, discovery.ErrScanRootUnreadable)
	}
}

func TestScannerSkipsUnreadableDirectories(testInstance *testing.T) {
	if os.Geteuid() == 0 {
		testInstance.Skip("permission bits are not enforced for root")
	}
	rootDirectory := testInstance.TempDir()
	createRepository(testInstance, filepath.Join(rootDirectory, "readable"), "")
	lockedDirectory := filepath.Join(rootDirectory, "locked")
	createRepository(testInstance, filepath.Join(lockedDirectory, "hidden"), "")
	require.NoError(testInstance, os.Chmod(lockedDirectory, 0o000))
	testInstance.Cleanup(func() {
		_ = os.Chmod(lockedDirectory, repositoryDirectoryPermissions)
	})

	var issues []discovery.ScanIssue
	options := discovery.DefaultOptions()
	options.IssueHandler = func(issue discovery.ScanIssue) {
		issues = append(issues, issue)
	}

	require.Equal(testInstance, []string{filepath.Join(rootDirectory, "readable")}, collectPaths(testInstance, newScanner(nil), rootDirectory, options))
	require.Len(testInstance, issues, 1)
	require.Equal(testInstance, discovery.IssueDirectoryUnreadable, issues[0].Kind)
	require.Equal(testInstance, lockedDirectory, issues[0].Path)
}

func TestScannerMergesOverlappingRoots(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	nestedRoot := filepath.Join(rootDirectory, developerDirectoryName)
	createRepository(testInstance, filepath.Join(nestedRoot, toolsRepositoryDirectoryName), "")
	createRepository(testInstance, filepath.Join(rootDirectory, applicationRepositoryDirectoryName), "")

	repositories, scanError := newScanner(nil).ScanRoots(context.Background(), []string{nestedRoot, rootDirectory}, discovery.DefaultOptions())
	require.NoError(testInstance, scanError)
	require.Len(testInstance, repositories, 2)
	require.Equal(testInstance, filepath.Join(nestedRoot, toolsRepositoryDirectoryName), repositories[0].Path)
	require.Equal(testInstance, 1, repositories[0].Depth)
	require.Equal(testInstance, filepath.Join(rootDirectory, applicationRepositoryDirectoryName), repositories[1].Path)
}
