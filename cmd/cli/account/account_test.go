package account

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitid/internal/repos/dependencies"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/sshconfig"
	"github.com/temirov/gitid/internal/utils"
)

const (
	testRepositoryConfigConstant = "[core]\n\tbare = false\n[remote \"origin\"]\n\turl = https://github.com/acme/proj.git\n"
)

type accountFixture struct {
	workspace        string
	keysDirectory    string
	sshConfigPath    string
	globalConfigPath string
	builder          *CommandGroupBuilder
	logs             *observer.ObservedLogs
}

func newAccountFixture(testInstance *testing.T) accountFixture {
	testInstance.Helper()
	workspace := testInstance.TempDir()
	sshConfigPath := filepath.Join(workspace, "ssh", "config")
	globalConfigPath := filepath.Join(workspace, ".gitconfig")
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	services := dependencies.Build(dependencies.Settings{
		AccountStorePath:    filepath.Join(workspace, "gitid", "accounts.toml"),
		SSHConfigPath:       sshConfigPath,
		GlobalGitConfigPath: globalConfigPath,
		Logger:              logger,
	})
	keysDirectory := filepath.Join(workspace, "keys")
	return accountFixture{
		workspace:        workspace,
		keysDirectory:    keysDirectory,
		sshConfigPath:    sshConfigPath,
		globalConfigPath: globalConfigPath,
		logs:             logs,
		builder: &CommandGroupBuilder{
			LoggerProvider: func() *zap.Logger { return logger },
			ServicesProvider: func() (dependencies.Services, error) {
				return services, nil
			},
			ConfigurationProvider: func() Configuration {
				return Configuration{KeysDirectory: keysDirectory, OperationTimeout: 5 * time.Second}
			},
		},
	}
}

func (fixture accountFixture) execute(testInstance *testing.T, mode shared.ApplyMode, arguments ...string) (string, error) {
	testInstance.Helper()
	command, buildError := fixture.builder.Build()
	require.NoError(testInstance, buildError)
	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs(arguments)
	executionContext := utils.NewCommandContextAccessor().WithApplyMode(context.Background(), mode)
	executionError := command.ExecuteContext(executionContext)
	return outputBuffer.String(), executionError
}

func (fixture accountFixture) addWork(testInstance *testing.T) {
	testInstance.Helper()
	_, addError := fixture.execute(testInstance, shared.ApplyModeApply, "add", "work", "--username", "acme", "--email", "dev@acme.example", "--generate-key")
	require.NoError(testInstance, addError)
}

func (fixture accountFixture) createRepository(testInstance *testing.T, configContent string) string {
	testInstance.Helper()
	repositoryPath := filepath.Join(fixture.workspace, "proj")
	configPath := filepath.Join(repositoryPath, ".git", "config")
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(configPath), 0o755))
	require.NoError(testInstance, os.WriteFile(configPath, []byte(configContent), 0o644))
	return repositoryPath
}

func TestAddGeneratesKeyAndHostBlock(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)

	output, addError := fixture.execute(testInstance, shared.ApplyModeApply, "add", "work", "--username", "acme", "--email", "dev@acme.example", "--generate-key")
	require.NoError(testInstance, addError)

	privateKeyPath := filepath.Join(fixture.keysDirectory, "id_ed25519_work")
	require.Contains(testInstance, output, "KEY-GENERATED: ssh-ed25519 SHA256:")
	require.Contains(testInstance, output, "ACCOUNT-ADDED: work alias=github.com-work host=github.com key="+privateKeyPath)
	privateKeyInfo, statError := os.Stat(privateKeyPath)
	require.NoError(testInstance, statError)
	require.Equal(testInstance, os.FileMode(0o600), privateKeyInfo.Mode().Perm())

	sshContent, readError := os.ReadFile(fixture.sshConfigPath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(sshContent), "# >>> gitid managed host: github.com-work >>>")

	entries := fixture.logs.FilterMessage(accountAddedLogMessageConstant).All()
	require.Len(testInstance, entries, 1)
	require.Equal(testInstance, "work", entries[0].ContextMap()[logFieldAccountConstant])
	require.Equal(testInstance, true, entries[0].ContextMap()[logFieldKeyGeneratedConstant])
}

func TestAddValidatesExistingKey(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)
	fixture.addWork(testInstance)
	existingKeyPath := filepath.Join(fixture.keysDirectory, "id_ed25519_work")

	output, addError := fixture.execute(testInstance, shared.ApplyModeApply, "add", "second", "--username", "acme2", "--email", "dev2@acme.example", "--key", existingKeyPath)
	require.NoError(testInstance, addError)
	require.Contains(testInstance, output, "KEY-VALIDATED: ssh-ed25519 SHA256:")

	_, missingKeyError := fixture.execute(testInstance, shared.ApplyModeApply, "add", "third", "--username", "acme3", "--email", "dev3@acme.example", "--key", filepath.Join(fixture.workspace, "absent"))
	require.Error(testInstance, missingKeyError)

	listOutput, listError := fixture.execute(testInstance, shared.ApplyModeApply, "list")
	require.NoError(testInstance, listError)
	require.Equal(testInstance, 2, strings.Count(listOutput, "ACCOUNT: "))
	require.NotContains(testInstance, listOutput, "third")
}

func TestAddRefusesAliasClaimedOutsideManagedBlocks(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)
	legacyContent := "Host github.com-work\n  IdentityFile ~/.ssh/old\n"
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(fixture.sshConfigPath), 0o700))
	require.NoError(testInstance, os.WriteFile(fixture.sshConfigPath, []byte(legacyContent), 0o600))

	_, addError := fixture.execute(testInstance, shared.ApplyModeApply, "add", "work", "--username", "acme", "--email", "dev@acme.example", "--generate-key")
	require.ErrorIs(testInstance, addError, sshconfig.ErrHostAliasConflict)

	_, keyStatError := os.Stat(filepath.Join(fixture.keysDirectory, "id_ed25519_work"))
	require.ErrorIs(testInstance, keyStatError, os.ErrNotExist)
	sshContent, readError := os.ReadFile(fixture.sshConfigPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, legacyContent, string(sshContent))

	_, providerAliasError := fixture.execute(testInstance, shared.ApplyModeApply, "add", "work", "--username", "acme", "--email", "dev@acme.example", "--host-alias", "github.com", "--generate-key")
	require.ErrorContains(testInstance, providerAliasError, "must differ from the provider host")

	listOutput, listError := fixture.execute(testInstance, shared.ApplyModeApply, "list")
	require.NoError(testInstance, listError)
	require.NotContains(testInstance, listOutput, "ACCOUNT: ")
}

func TestShowReportsHostBlockStatus(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)
	fixture.addWork(testInstance)

	currentOutput, currentError := fixture.execute(testInstance, shared.ApplyModeApply, "show", "acme")
	require.NoError(testInstance, currentError)
	require.Contains(testInstance, currentOutput, "Username: acme\n")
	require.Contains(testInstance, currentOutput, "SSH host block: current\n")

	sshContent, readError := os.ReadFile(fixture.sshConfigPath)
	require.NoError(testInstance, readError)
	staleContent := strings.Replace(string(sshContent), "IdentitiesOnly yes", "IdentitiesOnly no", 1)
	require.NoError(testInstance, os.WriteFile(fixture.sshConfigPath, []byte(staleContent), 0o600))

	outdatedOutput, outdatedError := fixture.execute(testInstance, shared.ApplyModeApply, "show", "work")
	require.NoError(testInstance, outdatedError)
	require.Contains(testInstance, outdatedOutput, "SSH host block: outdated\n")

	require.NoError(testInstance, os.Remove(fixture.sshConfigPath))
	missingOutput, missingError := fixture.execute(testInstance, shared.ApplyModeApply, "show", "work")
	require.NoError(testInstance, missingError)
	require.Contains(testInstance, missingOutput, "SSH host block: missing\n")
}

func TestApplyHonorsDryRun(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)
	fixture.addWork(testInstance)
	repositoryPath := filepath.Join(fixture.workspace, "proj")
	configPath := filepath.Join(repositoryPath, ".git", "config")
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(configPath), 0o755))
	require.NoError(testInstance, os.WriteFile(configPath, []byte(testRepositoryConfigConstant), 0o644))

	planOutput, planError := fixture.execute(testInstance, shared.ApplyModeDryRun, "apply", "work", repositoryPath)
	require.NoError(testInstance, planError)
	require.Contains(testInstance, planOutput, "PLAN: rewrite_remote origin: https://github.com/acme/proj.git -> git@github.com-work:acme/proj.git\n")
	unchangedContent, readError := os.ReadFile(configPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, testRepositoryConfigConstant, string(unchangedContent))

	applyOutput, applyError := fixture.execute(testInstance, shared.ApplyModeApply, "apply", "dev@acme.example", repositoryPath)
	require.NoError(testInstance, applyError)
	require.Equal(testInstance, 3, strings.Count(applyOutput, "DONE: "))

	repeatOutput, repeatError := fixture.execute(testInstance, shared.ApplyModeApply, "apply", "work", repositoryPath)
	require.NoError(testInstance, repeatError)
	require.Equal(testInstance, "UNCHANGED: "+repositoryPath+" already configured for account work\n", repeatOutput)
}

func TestRemoveUnknownAccountSuggestsNames(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)
	fixture.addWork(testInstance)

	_, removeError := fixture.execute(testInstance, shared.ApplyModeApply, "remove", "wrk")
	require.ErrorContains(testInstance, removeError, `did you mean "work"?`)

	removeOutput, removeError := fixture.execute(testInstance, shared.ApplyModeApply, "rm", "work")
	require.NoError(testInstance, removeError)
	require.Equal(testInstance, "ACCOUNT-REMOVED: work\nSSH-HOST-REMOVED: github.com-work\n", removeOutput)
}

func TestConfigurationSanitize(testInstance *testing.T) {
	sanitized := Configuration{}.sanitize()
	require.Equal(testInstance, DefaultConfiguration(), sanitized)
	require.Equal(testInstance, map[string]any{"ssh.keys_directory": "~/.ssh"}, DefaultConfigurationValues())
}

func TestShowReportsUnmanagedAliasConflict(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)
	fixture.addWork(testInstance)

	sshContent, readError := os.ReadFile(fixture.sshConfigPath)
	require.NoError(testInstance, readError)
	conflicting := "Host github.com-work\n  IdentityFile ~/.ssh/old\n\n" + string(sshContent)
	require.NoError(testInstance, os.WriteFile(fixture.sshConfigPath, []byte(conflicting), 0o600))

	output, showError := fixture.execute(testInstance, shared.ApplyModeApply, "show", "work")
	require.NoError(testInstance, showError)
	require.Contains(testInstance, output, "SSH host block: conflict (")
	require.Contains(testInstance, output, "line 1")
}

func TestUseGlobalSetsDefaultIdentity(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)
	fixture.addWork(testInstance)
	originalGlobal := "[user]\n\tname = Personal\n[init]\n\tdefaultBranch = main\n"
	require.NoError(testInstance, os.WriteFile(fixture.globalConfigPath, []byte(originalGlobal), 0o644))

	planOutput, planError := fixture.execute(testInstance, shared.ApplyModeDryRun, "use", "work", "--global")
	require.NoError(testInstance, planError)
	require.Equal(testInstance, "PLAN: set_global_user_name user.name: Personal -> acme\nPLAN: set_global_user_email user.email: (unset) -> dev@acme.example\n", planOutput)
	unchangedContent, readError := os.ReadFile(fixture.globalConfigPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, originalGlobal, string(unchangedContent))

	applyOutput, applyError := fixture.execute(testInstance, shared.ApplyModeApply, "use", "work", "--global")
	require.NoError(testInstance, applyError)
	require.Equal(testInstance, 2, strings.Count(applyOutput, "DONE: "))
	updatedContent, updatedError := os.ReadFile(fixture.globalConfigPath)
	require.NoError(testInstance, updatedError)
	require.Equal(testInstance, "[user]\n\tname = acme\n\temail = dev@acme.example\n[init]\n\tdefaultBranch = main\n", string(updatedContent))
	require.Equal(testInstance, 1, fixture.logs.FilterMessage(globalAppliedLogMessageConstant).Len())

	repeatOutput, repeatError := fixture.execute(testInstance, shared.ApplyModeApply, "apply", "work", "--global")
	require.NoError(testInstance, repeatError)
	require.Equal(testInstance, "UNCHANGED: global identity already set to account work\n", repeatOutput)

	_, conflictError := fixture.execute(testInstance, shared.ApplyModeApply, "use", "work", fixture.workspace, "--global")
	require.ErrorContains(testInstance, conflictError, "--global does not take a repository argument")
}

func TestWhoamiReportsIdentitiesAndMismatch(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)
	fixture.addWork(testInstance)
	_, addError := fixture.execute(testInstance, shared.ApplyModeApply, "add", "personal", "--username", "alice", "--email", "alice@example.com", "--generate-key")
	require.NoError(testInstance, addError)
	require.NoError(testInstance, os.WriteFile(fixture.globalConfigPath, []byte("[user]\n\tname = Alice\n\temail = alice@example.com\n"), 0o644))

	testCases := []struct {
		name             string
		repositoryConfig string
		expectedLines    []string
		absentLines      []string
	}{
		{
			name:             "local_identity_differs_from_origin",
			repositoryConfig: "[remote \"origin\"]\n\turl = git@github.com-work:acme/proj.git\n[user]\n\temail = alice@example.com\n",
			expectedLines: []string{
				"GLOBAL: Alice <alice@example.com> [account personal]\n",
				"LOCAL: (unset) <alice@example.com> [account personal]\n",
				"REMOTE: git@github.com-work:acme/proj.git\n",
				"SUGGESTED: work (confidence ",
				"MISMATCH: commits use account personal but origin suggests work\n",
			},
		},
		{
			name:             "local_identity_matches_origin",
			repositoryConfig: "[remote \"origin\"]\n\turl = git@github.com-work:acme/proj.git\n[user]\n\tname = acme\n\temail = dev@acme.example\n",
			expectedLines: []string{
				"LOCAL: acme <dev@acme.example> [account work]\n",
				"SUGGESTED: work (confidence ",
			},
			absentLines: []string{"MISMATCH"},
		},
		{
			name:             "global_identity_in_effect",
			repositoryConfig: "[remote \"origin\"]\n\turl = git@github.com-work:acme/proj.git\n",
			expectedLines: []string{
				"LOCAL: (unset)\n",
				"MISMATCH: commits use account personal but origin suggests work\n",
			},
		},
		{
			name:             "unknown_identity",
			repositoryConfig: "[remote \"origin\"]\n\turl = git@github.com-work:acme/proj.git\n[user]\n\temail = someone@else.example\n",
			expectedLines: []string{
				"LOCAL: (unset) <someone@else.example> [no matching account]\n",
				"MISMATCH: commits use someone@else.example which matches no account; origin suggests work\n",
			},
		},
		{
			name:             "no_remote",
			repositoryConfig: "[core]\n\tbare = false\n",
			expectedLines: []string{
				"REMOTE: (none)\n",
				"SUGGESTED: none (",
			},
			absentLines: []string{"MISMATCH"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repositoryPath := fixture.createRepository(testInstance, testCase.repositoryConfig)
			output, whoamiError := fixture.execute(testInstance, shared.ApplyModeApply, "whoami", repositoryPath)
			require.NoError(testInstance, whoamiError)
			for _, expectedLine := range testCase.expectedLines {
				require.Contains(testInstance, output, expectedLine)
			}
			for _, absentLine := range testCase.absentLines {
				require.NotContains(testInstance, output, absentLine)
			}
		})
	}
}

func TestWhoamiOutsideRepository(testInstance *testing.T) {
	fixture := newAccountFixture(testInstance)
	outsidePath := filepath.Join(fixture.workspace, "plain")
	require.NoError(testInstance, os.MkdirAll(outsidePath, 0o755))

	output, whoamiError := fixture.execute(testInstance, shared.ApplyModeApply, "whoami", outsidePath)
	require.NoError(testInstance, whoamiError)
	require.Equal(testInstance, "GLOBAL: (unset)\nREPOSITORY: "+outsidePath+" is not a git repository\n", output)
}
