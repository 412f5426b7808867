package accounts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/temirov/gitid/internal/repos/shared"
)

const (
	maximumSuggestionsConstant         = 3
	accountNotFoundTemplateConstant    = "account %q not found"
	didYouMeanTemplateConstant         = "%s; did you mean %s?"
	suggestionSeparatorConstant        = ", "
	duplicateAccountTemplateConstant   = "account %q already exists"
	duplicateHostAliasTemplateConstant = "host alias %q is already used by account %q"
	quotedSuggestionTemplateConstant   = "%q"
)

// AccountNotFoundError reports a lookup that matched no account. Suggestions holds close account names.
type AccountNotFoundError struct {
	Query       string
	Suggestions []string
}

// Error describes the failed lookup.
func (notFoundError AccountNotFoundError) Error() string {
	message := fmt.Sprintf(accountNotFoundTemplateConstant, notFoundError.Query)
	if len(notFoundError.Suggestions) == 0 {
		return message
	}
	quotedSuggestions := make([]string, 0, len(notFoundError.Suggestions))
	for _, suggestion := range notFoundError.Suggestions {
		quotedSuggestions = append(quotedSuggestions, fmt.Sprintf(quotedSuggestionTemplateConstant, suggestion))
	}
	return fmt.Sprintf(didYouMeanTemplateConstant, message, strings.Join(quotedSuggestions, suggestionSeparatorConstant))
}

// DuplicateAccountError reports an account whose name or host alias collides with an existing one.
type DuplicateAccountError struct {
	Name             string
	HostAlias        string
	ConflictingOwner string
}

// Error describes the collision.
func (duplicateError DuplicateAccountError) Error() string {
	if len(duplicateError.HostAlias) > 0 {
		return fmt.Sprintf(duplicateHostAliasTemplateConstant, duplicateError.HostAlias, duplicateError.ConflictingOwner)
	}
	return fmt.Sprintf(duplicateAccountTemplateConstant, duplicateError.Name)
}

// Store is the in-memory account collection indexed by name. It is not safe for concurrent mutation;
// concurrent reads are safe.
type Store struct {
	clock    shared.Clock
	accounts map[string]Account
}

// NewStore constructs an empty Store.
func NewStore(clock shared.Clock) *Store {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Store{clock: clock, accounts: map[string]Account{}}
}

// Add validates account, fills derivable fields, and inserts it. Names and host aliases must be unique.
func (store *Store) Add(account Account) (Account, error) {
	completedAccount := account.WithDefaults(store.now())
	if validationError := completedAccount.Validate(); validationError != nil {
		return Account{}, validationError
	}
	if _, exists := store.accounts[completedAccount.Name]; exists {
		return Account{}, DuplicateAccountError{Name: completedAccount.Name}
	}
	for _, existingAccount := range store.accounts {
		if strings.EqualFold(existingAccount.HostAlias, completedAccount.HostAlias) {
			return Account{}, DuplicateAccountError{Name: completedAccount.Name, HostAlias: completedAccount.HostAlias, ConflictingOwner: existingAccount.Name}
		}
		if providerHost, isProvider := providerHostNamed(completedAccount.HostAlias, existingAccount.ProviderHost); isProvider {
			return Account{}, ValidationError{Field: hostAliasFieldConstant, Message: fmt.Sprintf(providerAliasMessageTemplateConstant, providerHost)}
		}
		if strings.EqualFold(completedAccount.ProviderHost, existingAccount.HostAlias) {
			return Account{}, ValidationError{Field: providerHostFieldConstant, Message: fmt.Sprintf(providerCollidesMessageTemplateConstant, existingAccount.HostAlias, existingAccount.Name)}
		}
	}
	store.accounts[completedAccount.Name] = completedAccount
	return completedAccount, nil
}

// Remove deletes the named account and returns it.
func (store *Store) Remove(name string) (Account, error) {
	account, found := store.ByName(name)
	if !found {
		return Account{}, store.notFound(name)
	}
	delete(store.accounts, account.Name)
	return account, nil
}

// ByName returns the account with exactly this name.
func (store *Store) ByName(name string) (Account, bool) {
	account, found := store.accounts[strings.TrimSpace(name)]
	return account, found
}

// ByUsername returns the first account, in name order, whose Git username matches case-insensitively.
func (store *Store) ByUsername(username string) (Account, bool) {
	return store.firstMatching(func(account Account) bool {
		return strings.EqualFold(account.GitUsername, strings.TrimSpace(username))
	})
}

// ByEmail returns the first account, in name order, whose Git email matches case-insensitively.
func (store *Store) ByEmail(email string) (Account, bool) {
	return store.firstMatching(func(account Account) bool {
		return strings.EqualFold(account.GitEmail, strings.TrimSpace(email))
	})
}

// Find resolves query as an account name, then as a Git username, then as an email.
func (store *Store) Find(query string) (Account, error) {
	if account, found := store.ByName(query); found {
		return account, nil
	}
	if account, found := store.ByUsername(query); found {
		return account, nil
	}
	if account, found := store.ByEmail(query); found {
		return account, nil
	}
	return Account{}, store.notFound(query)
}

// List returns every account sorted by name.
func (store *Store) List() []Account {
	accounts := make([]Account, 0, len(store.accounts))
	for _, account := range store.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(leftIndex int, rightIndex int) bool {
		return accounts[leftIndex].Name < accounts[rightIndex].Name
	})
	return accounts
}

// Len reports the number of accounts.
func (store *Store) Len() int {
	return len(store.accounts)
}

func (store *Store) firstMatching(predicate func(Account) bool) (Account, bool) {
	for _, account := range store.List() {
		if predicate(account) {
			return account, true
		}
	}
	return Account{}, false
}

func (store *Store) notFound(query string) AccountNotFoundError {
	accounts := store.List()
	names := make([]string, 0, len(accounts))
	for _, account := range accounts {
		names = append(names, account.Name)
	}
	var suggestions []string
	for _, match := range fuzzy.Find(strings.TrimSpace(query), names) {
		suggestions = append(suggestions, match.Str)
		if len(suggestions) == maximumSuggestionsConstant {
			break
		}
	}
	return AccountNotFoundError{Query: query, Suggestions: suggestions}
}

func (store *Store) now() time.Time {
	return store.clock.Now()
}
