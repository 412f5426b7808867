package accounts_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/repos/filesystem"
)

type fixedClock struct {
	moment time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.moment
}

var testMoment = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestStore() *accounts.Store {
	return accounts.NewStore(fixedClock{moment: testMoment})
}

func workAccount() accounts.Account {
	return accounts.Account{
		Name:           "Work Bot",
		GitUsername:    "acme-dev",
		GitEmail:       "dev@acme.example",
		PrivateKeyPath: "/home/dev/.ssh/id_ed25519_work",
	}
}

func TestAccountWithDefaults(testInstance *testing.T) {
	completed := workAccount().WithDefaults(testMoment)

	require.Equal(testInstance, "github.com", completed.ProviderHost)
	require.Equal(testInstance, "github.com-work_bot", completed.HostAlias)
	require.Equal(testInstance, "/home/dev/.ssh/id_ed25519_work.pub", completed.PublicKeyPath)
	require.Equal(testInstance, testMoment, completed.CreatedAt)

	explicit := workAccount()
	explicit.HostAlias = "gh-work"
	explicit.PublicKeyPath = "/keys/work.pub"
	explicit.ProviderHost = "GitLab.com"
	completedExplicit := explicit.WithDefaults(testMoment)
	require.Equal(testInstance, "gh-work", completedExplicit.HostAlias)
	require.Equal(testInstance, "/keys/work.pub", completedExplicit.PublicKeyPath)
	require.Equal(testInstance, "gitlab.com", completedExplicit.ProviderHost)
}

func TestInferProviderHost(testInstance *testing.T) {
	testCases := []struct {
		email    string
		expected string
	}{
		{email: "dev@github.com", expected: "github.com"},
		{email: "12345+dev@users.noreply.github.com", expected: "github.com"},
		{email: "dev@GitLab.com", expected: "gitlab.com"},
		{email: "dev@bitbucket.org", expected: "bitbucket.org"},
		{email: "dev@acme.example", expected: "github.com"},
		{email: "not-an-email", expected: "github.com"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.email, func(subtest *testing.T) {
			require.Equal(subtest, testCase.expected, accounts.InferProviderHost(testCase.email))
		})
	}
}

func TestAccountValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		mutate        func(*accounts.Account)
		expectedField string
	}{
		{name: "valid", mutate: func(*accounts.Account) {}},
		{name: "empty_name", mutate: func(account *accounts.Account) { account.Name = " " }, expectedField: "name"},
		{name: "long_name", mutate: func(account *accounts.Account) { account.Name = strings.Repeat("a", 51) }, expectedField: "name"},
		{name: "name_characters", mutate: func(account *accounts.Account) { account.Name = "work/bot" }, expectedField: "name"},
		{name: "empty_username", mutate: func(account *accounts.Account) { account.GitUsername = "" }, expectedField: "git_username"},
		{name: "long_username", mutate: func(account *accounts.Account) { account.GitUsername = strings.Repeat("u", 101) }, expectedField: "git_username"},
		{name: "invalid_email", mutate: func(account *accounts.Account) { account.GitEmail = "dev at acme" }, expectedField: "git_email"},
		{name: "display_name_email", mutate: func(account *accounts.Account) { account.GitEmail = "Dev <dev@acme.example>" }, expectedField: "git_email"},
		{name: "missing_key", mutate: func(account *accounts.Account) { account.PrivateKeyPath = "" }, expectedField: "private_key_path"},
		{name: "alias_whitespace", mutate: func(account *accounts.Account) { account.HostAlias = "git hub" }, expectedField: "host_alias"},
		{name: "alias_is_own_provider", mutate: func(account *accounts.Account) { account.HostAlias = "GitHub.com" }, expectedField: "host_alias"},
		{name: "alias_is_known_provider", mutate: func(account *accounts.Account) { account.HostAlias = "gitlab.com" }, expectedField: "host_alias"},
		{name: "alias_is_custom_provider", mutate: func(account *accounts.Account) {
			account.ProviderHost = "git.acme.example"
			account.HostAlias = "git.acme.example"
		}, expectedField: "host_alias"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			account := workAccount()
			testCase.mutate(&account)
			validationError := account.WithDefaults(testMoment).Validate()
			if len(testCase.expectedField) == 0 {
				require.NoError(subtest, validationError)
				return
			}
			var typedError accounts.ValidationError
			require.ErrorAs(subtest, validationError, &typedError)
			require.Equal(subtest, testCase.expectedField, typedError.Field)
		})
	}
}

func TestStoreRejectsDuplicates(testInstance *testing.T) {
	store := newTestStore()
	_, addError := store.Add(workAccount())
	require.NoError(testInstance, addError)

	_, duplicateNameError := store.Add(workAccount())
	require.ErrorAs(testInstance, duplicateNameError, &accounts.DuplicateAccountError{})

	aliasClash := workAccount()
	aliasClash.Name = "Other"
	aliasClash.HostAlias = "GitHub.com-Work_Bot"
	_, duplicateAliasError := store.Add(aliasClash)
	var typedError accounts.DuplicateAccountError
	require.ErrorAs(testInstance, duplicateAliasError, &typedError)
	require.Equal(testInstance, "Work Bot", typedError.ConflictingOwner)
	require.Equal(testInstance, 1, store.Len())
}

func TestStoreRejectsAliasesNamingProviderHosts(testInstance *testing.T) {
	store := newTestStore()
	selfHosted := workAccount()
	selfHosted.ProviderHost = "git.acme.example"
	_, addError := store.Add(selfHosted)
	require.NoError(testInstance, addError)

	capturing := workAccount()
	capturing.Name = "Personal"
	capturing.HostAlias = "git.acme.example"
	_, aliasError := store.Add(capturing)
	var typedError accounts.ValidationError
	require.ErrorAs(testInstance, aliasError, &typedError)
	require.Equal(testInstance, "host_alias", typedError.Field)

	shadowed := workAccount()
	shadowed.Name = "Shadow"
	shadowed.ProviderHost = "git.acme.example-work_bot"
	_, providerError := store.Add(shadowed)
	require.ErrorAs(testInstance, providerError, &typedError)
	require.Equal(testInstance, "provider_host", typedError.Field)
	require.Equal(testInstance, 1, store.Len())
}

func TestStoreLookups(testInstance *testing.T) {
	store := newTestStore()
	_, workError := store.Add(workAccount())
	require.NoError(testInstance, workError)
	_, personalError := store.Add(accounts.Account{
		Name:           "personal",
		GitUsername:    "jdoe",
		GitEmail:       "jdoe@gitlab.com",
		PrivateKeyPath: "/home/dev/.ssh/id_ed25519_personal",
	})
	require.NoError(testInstance, personalError)

	byName, foundByName := store.ByName("personal")
	require.True(testInstance, foundByName)
	require.Equal(testInstance, "gitlab.com-personal", byName.HostAlias)

	byUsername, foundByUsername := store.ByUsername("ACME-dev")
	require.True(testInstance, foundByUsername)
	require.Equal(testInstance, "Work Bot", byUsername.Name)

	_, foundMissing := store.ByUsername("personal")
	require.False(testInstance, foundMissing)

	found, findError := store.Find("jdoe@gitlab.com")
	require.NoError(testInstance, findError)
	require.Equal(testInstance, "personal", found.Name)

	_, missingError := store.Find("persnal")
	var notFound accounts.AccountNotFoundError
	require.ErrorAs(testInstance, missingError, &notFound)
	require.Equal(testInstance, []string{"personal"}, notFound.Suggestions)
	require.Contains(testInstance, missingError.Error(), `did you mean "personal"?`)

	names := make([]string, 0, store.Len())
	for _, account := range store.List() {
		names = append(names, account.Name)
	}
	require.Equal(testInstance, []string{"Work Bot", "personal"}, names)

	removed, removeError := store.Remove("Work Bot")
	require.NoError(testInstance, removeError)
	require.Equal(testInstance, "github.com-work_bot", removed.HostAlias)
	_, removeAgainError := store.Remove("Work Bot")
	require.ErrorAs(testInstance, removeAgainError, &accounts.AccountNotFoundError{})
}

func TestFileRepositoryRoundTrip(testInstance *testing.T) {
	storePath := filepath.Join(testInstance.TempDir(), "gitid", "accounts.toml")
	repository := accounts.NewFileRepository(filesystem.OSFileSystem{}, fixedClock{moment: testMoment}, storePath)

	emptyStore, loadError := repository.Load()
	require.NoError(testInstance, loadError)
	require.Zero(testInstance, emptyStore.Len())

	_, addError := emptyStore.Add(workAccount())
	require.NoError(testInstance, addError)
	require.NoError(testInstance, repository.Save(emptyStore))

	fileInfo, statError := os.Stat(storePath)
	require.NoError(testInstance, statError)
	require.Equal(testInstance, os.FileMode(0o600), fileInfo.Mode().Perm())

	content, readError := os.ReadFile(storePath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(content), `[accounts."Work Bot"]`)

	reloaded, reloadError := repository.Load()
	require.NoError(testInstance, reloadError)
	reloadedAccount, found := reloaded.ByName("Work Bot")
	require.True(testInstance, found)
	require.Equal(testInstance, workAccount().WithDefaults(testMoment), reloadedAccount)
}

func TestFileRepositoryRejectsInvalidDocuments(testInstance *testing.T) {
	storePath := filepath.Join(testInstance.TempDir(), "accounts.toml")
	require.NoError(testInstance, os.WriteFile(storePath, []byte("[accounts.bad]\ngit_username = \"x\"\ngit_email = \"nope\"\nprivate_key_path = \"/k\"\n"), 0o600))

	_, loadError := accounts.NewFileRepository(filesystem.OSFileSystem{}, nil, storePath).Load()
	require.ErrorAs(testInstance, loadError, &accounts.ValidationError{})

	require.NoError(testInstance, os.WriteFile(storePath, []byte("[accounts\n"), 0o600))
	_, parseError := accounts.NewFileRepository(filesystem.OSFileSystem{}, nil, storePath).Load()
	require.Error(testInstance, parseError)
}
