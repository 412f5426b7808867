package accounts

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultProviderHostConstant is used when the provider cannot be inferred from the email domain.
	DefaultProviderHostConstant = "github.com"

	publicKeySuffixConstant                 = ".pub"
	hostAliasSeparatorConstant              = "-"
	slugSpaceReplacementConstant            = "_"
	emailDomainSeparatorConstant            = "@"
	maximumNameLengthConstant               = 50
	maximumUsernameLengthConstant           = 100
	nameFieldConstant                       = "name"
	usernameFieldConstant                   = "git_username"
	emailFieldConstant                      = "git_email"
	privateKeyFieldConstant                 = "private_key_path"
	hostAliasFieldConstant                  = "host_alias"
	providerHostFieldConstant               = "provider_host"
	requiredFieldMessageConstant            = "is required"
	nameCharactersMessageConstant           = "may contain only letters, digits, spaces, '-' and '_'"
	invalidEmailMessageConstant             = "is not a valid email address"
	whitespaceMessageConstant               = "must not contain whitespace"
	providerAliasMessageTemplateConstant    = "must differ from the provider host %s"
	providerCollidesMessageTemplateConstant = "must differ from host alias %s of account %s"
	lengthMessageTemplateConstant           = "must be at most %d characters"
	validationErrorTemplateConstant         = "invalid account %s: %s"
)

var (
	accountNamePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

	providerHostsByEmailDomain = map[string]string{
		"github.com":               "github.com",
		"users.noreply.github.com": "github.com",
		"gitlab.com":               "gitlab.com",
		"bitbucket.org":            "bitbucket.org",
	}
)

// Account is one Git identity: the commit author values plus the SSH key and host alias that route
// pushes through it.
type Account struct {
	Name           string    `toml:"-"`
	GitUsername    string    `toml:"git_username"`
	GitEmail       string    `toml:"git_email"`
	PrivateKeyPath string    `toml:"private_key_path"`
	PublicKeyPath  string    `toml:"public_key_path,omitempty"`
	HostAlias      string    `toml:"host_alias"`
	ProviderHost   string    `toml:"provider_host"`
	CreatedAt      time.Time `toml:"created_at"`
}

// ValidationError reports an account field that does not satisfy its constraints.
type ValidationError struct {
	Field   string
	Message string
}

// Error describes the invalid field.
func (validationError ValidationError) Error() string {
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.Field, validationError.Message)
}

// Slug lowercases name and replaces spaces with underscores.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", slugSpaceReplacementConstant)
}

// DeriveHostAlias builds the SSH host alias for an account on a provider host.
func DeriveHostAlias(providerHost string, name string) string {
	return strings.ToLower(strings.TrimSpace(providerHost)) + hostAliasSeparatorConstant + Slug(name)
}

// InferProviderHost maps well-known email domains to their Git hosting provider.
func InferProviderHost(email string) string {
	separatorIndex := strings.LastIndex(email, emailDomainSeparatorConstant)
	if separatorIndex < 0 {
		return DefaultProviderHostConstant
	}
	domain := strings.ToLower(strings.TrimSpace(email[separatorIndex+1:]))
	if providerHost, known := providerHostsByEmailDomain[domain]; known {
		return providerHost
	}
	return DefaultProviderHostConstant
}

// WithDefaults fills the derivable fields: provider host from the email domain, host alias from
// the provider host and name, public key path from the private key path, and the creation time.
func (account Account) WithDefaults(now time.Time) Account {
	account.Name = strings.TrimSpace(account.Name)
	account.GitUsername = strings.TrimSpace(account.GitUsername)
	account.GitEmail = strings.TrimSpace(account.GitEmail)
	if len(strings.TrimSpace(account.ProviderHost)) == 0 {
		account.ProviderHost = InferProviderHost(account.GitEmail)
	}
	account.ProviderHost = strings.ToLower(strings.TrimSpace(account.ProviderHost))
	if len(strings.TrimSpace(account.HostAlias)) == 0 {
		account.HostAlias = DeriveHostAlias(account.ProviderHost, account.Name)
	}
	if len(strings.TrimSpace(account.PublicKeyPath)) == 0 && len(account.PrivateKeyPath) > 0 {
		account.PublicKeyPath = account.PrivateKeyPath + publicKeySuffixConstant
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now.UTC()
	}
	return account
}

// Validate checks the account fields.
func (account Account) Validate() error {
	if len(account.Name) == 0 {
		return ValidationError{Field: nameFieldConstant, Message: requiredFieldMessageConstant}
	}
	if len(account.Name) > maximumNameLengthConstant {
		return ValidationError{Field: nameFieldConstant, Message: fmt.Sprintf(lengthMessageTemplateConstant, maximumNameLengthConstant)}
	}
	if !accountNamePattern.MatchString(account.Name) {
		return ValidationError{Field: nameFieldConstant, Message: nameCharactersMessageConstant}
	}
	if len(account.GitUsername) == 0 {
		return ValidationError{Field: usernameFieldConstant, Message: requiredFieldMessageConstant}
	}
	if len(account.GitUsername) > maximumUsernameLengthConstant {
		return ValidationError{Field: usernameFieldConstant, Message: fmt.Sprintf(lengthMessageTemplateConstant, maximumUsernameLengthConstant)}
	}
	if len(account.GitEmail) == 0 {
		return ValidationError{Field: emailFieldConstant, Message: requiredFieldMessageConstant}
	}
	if !isValidEmail(account.GitEmail) {
		return ValidationError{Field: emailFieldConstant, Message: invalidEmailMessageConstant}
	}
	if len(strings.TrimSpace(account.PrivateKeyPath)) == 0 {
		return ValidationError{Field: privateKeyFieldConstant, Message: requiredFieldMessageConstant}
	}
	if len(account.ProviderHost) == 0 {
		return ValidationError{Field: providerHostFieldConstant, Message: requiredFieldMessageConstant}
	}
	if len(account.HostAlias) == 0 {
		return ValidationError{Field: hostAliasFieldConstant, Message: requiredFieldMessageConstant}
	}
	if strings.ContainsAny(account.HostAlias, " \t\r\n") {
		return ValidationError{Field: hostAliasFieldConstant, Message: whitespaceMessageConstant}
	}
	if providerHost, isProvider := providerHostNamed(account.HostAlias, account.ProviderHost); isProvider {
		return ValidationError{Field: hostAliasFieldConstant, Message: fmt.Sprintf(providerAliasMessageTemplateConstant, providerHost)}
	}
	return nil
}

// providerHostNamed reports whether alias is one of the given or well-known provider hosts. A managed
// Host block under such a name would capture all SSH traffic to that provider.
func providerHostNamed(alias string, providerHosts ...string) (string, bool) {
	for _, providerHost := range providerHosts {
		if strings.EqualFold(alias, providerHost) {
			return providerHost, true
		}
	}
	for _, providerHost := range providerHostsByEmailDomain {
		if strings.EqualFold(alias, providerHost) {
			return providerHost, true
		}
	}
	return "", false
}

func isValidEmail(email string) bool {
	address, parseError := mail.ParseAddress(email)
	if parseError != nil {
		return false
	}
	return address.Address == email && strings.Contains(address.Address, emailDomainSeparatorConstant)
}
