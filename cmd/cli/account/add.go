package account

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/binding"
	"github.com/temirov/gitid/internal/repos/dependencies"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/sshkeys"
	"github.com/temirov/gitid/internal/utils"
	pathutils "github.com/temirov/gitid/internal/utils/path"
)

const (
	addUseConstant                     = "add <name>"
	addShortDescription                = "Register an account and its SSH host alias"
	addLongDescription                 = "add stores a Git identity, validates its SSH key (or generates an ed25519 pair with --generate-key) and writes the managed Host block that routes the account's host alias through that key."
	usernameFlagNameConstant           = "username"
	usernameFlagUsageConstant          = "Commit author name written to user.name"
	emailFlagNameConstant              = "email"
	emailFlagUsageConstant             = "Commit author email written to user.email"
	keyFlagNameConstant                = "key"
	keyFlagUsageConstant               = "Path to an existing SSH private key"
	generateKeyFlagNameConstant        = "generate-key"
	generateKeyFlagUsageConstant       = "Generate a new ed25519 key pair in ssh.keys_directory"
	providerHostFlagNameConstant       = "provider-host"
	providerHostFlagUsageConstant      = "Git hosting provider (inferred from the email domain when omitted)"
	hostAliasFlagNameConstant          = "host-alias"
	hostAliasFlagUsageConstant         = "SSH host alias (defaults to <provider-host>-<name>)"
	generatedKeyFilePrefixConstant     = "id_ed25519_"
	keysDirectoryPermissionsConstant   = fs.FileMode(0o700)
	missingKeyErrorMessageConstant     = "either --key or --generate-key is required"
	conflictingKeyErrorMessageConstant = "--key and --generate-key are mutually exclusive"
	accountAddedTemplateConstant       = "ACCOUNT-ADDED: %s alias=%s host=%s key=%s\n"
	keyGeneratedTemplateConstant       = "KEY-GENERATED: %s %s\n"
	keyValidatedTemplateConstant       = "KEY-VALIDATED: %s %s\n"
	publicKeyTemplateConstant          = "PUBLIC-KEY: %s\n"
	accountAddedLogMessageConstant     = "Account added"
	logFieldAccountConstant            = "account"
	logFieldHostAliasConstant          = "host_alias"
	logFieldFingerprintConstant        = "fingerprint"
	logFieldKeyGeneratedConstant       = "key_generated"
)

type addFlagValues struct {
	username     string
	email        string
	keyPath      string
	generateKey  bool
	providerHost string
	hostAlias    string
}

func (builder *CommandGroupBuilder) buildAddCommand() *cobra.Command {
	values := &addFlagValues{}
	command := &cobra.Command{
		Use:   addUseConstant,
		Short: addShortDescription,
		Long:  addLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runAdd(command, arguments[0], values)
		},
	}
	command.Flags().StringVar(&values.username, usernameFlagNameConstant, "", usernameFlagUsageConstant)
	command.Flags().StringVar(&values.email, emailFlagNameConstant, "", emailFlagUsageConstant)
	command.Flags().StringVar(&values.keyPath, keyFlagNameConstant, "", keyFlagUsageConstant)
	command.Flags().BoolVar(&values.generateKey, generateKeyFlagNameConstant, false, generateKeyFlagUsageConstant)
	command.Flags().StringVar(&values.providerHost, providerHostFlagNameConstant, "", providerHostFlagUsageConstant)
	command.Flags().StringVar(&values.hostAlias, hostAliasFlagNameConstant, "", hostAliasFlagUsageConstant)
	return command
}

// runAdd registers the account in memory first so validation and duplicate checks run before any key or
// SSH config file is touched. The store is saved last.
func (builder *CommandGroupBuilder) runAdd(command *cobra.Command, name string, values *addFlagValues) error {
	if values.generateKey && len(strings.TrimSpace(values.keyPath)) > 0 {
		return errors.New(conflictingKeyErrorMessageConstant)
	}
	if !values.generateKey && len(strings.TrimSpace(values.keyPath)) == 0 {
		return errors.New(missingKeyErrorMessageConstant)
	}

	services, servicesError := builder.services()
	if servicesError != nil {
		return servicesError
	}
	store, loadError := services.Accounts.Load()
	if loadError != nil {
		return loadError
	}

	homeExpander := pathutils.NewHomeExpander()
	privateKeyPath := homeExpander.Expand(strings.TrimSpace(values.keyPath))
	if values.generateKey {
		keysDirectory := homeExpander.Expand(builder.configuration().KeysDirectory)
		privateKeyPath = filepath.Join(keysDirectory, generatedKeyFilePrefixConstant+accounts.Slug(name))
	}

	registeredAccount, addError := store.Add(accounts.Account{
		Name:           name,
		GitUsername:    values.username,
		GitEmail:       values.email,
		PrivateKeyPath: privateKeyPath,
		ProviderHost:   values.providerHost,
		HostAlias:      values.hostAlias,
	})
	if addError != nil {
		return addError
	}

	if conflictError := services.Synchronizer.CheckAlias(registeredAccount.HostAlias); conflictError != nil {
		return conflictError
	}

	reporter := shared.NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout()))
	keyInfo, keyError := builder.prepareKey(services, registeredAccount, values.generateKey, reporter)
	if keyError != nil {
		return keyError
	}

	if _, upsertError := services.Synchronizer.UpsertHost(binding.HostBlockFor(registeredAccount)); upsertError != nil {
		return upsertError
	}
	if saveError := services.Accounts.Save(store); saveError != nil {
		return saveError
	}

	builder.logger().Info(accountAddedLogMessageConstant,
		zap.String(logFieldAccountConstant, registeredAccount.Name),
		zap.String(logFieldHostAliasConstant, registeredAccount.HostAlias),
		zap.String(logFieldFingerprintConstant, keyInfo.Fingerprint),
		zap.Bool(logFieldKeyGeneratedConstant, values.generateKey),
	)
	reporter.Printf(accountAddedTemplateConstant, registeredAccount.Name, registeredAccount.HostAlias, registeredAccount.ProviderHost, registeredAccount.PrivateKeyPath)
	return nil
}

func (builder *CommandGroupBuilder) prepareKey(services dependencies.Services, account accounts.Account, generate bool, reporter shared.Reporter) (sshkeys.KeyInfo, error) {
	if !generate {
		keyInfo, validationError := services.Keys.Validate(account.PrivateKeyPath, account.PublicKeyPath)
		if validationError != nil {
			return sshkeys.KeyInfo{}, validationError
		}
		reporter.Printf(keyValidatedTemplateConstant, keyInfo.Type, keyInfo.Fingerprint)
		return keyInfo, nil
	}

	if directoryError := services.FileSystem.MkdirAll(filepath.Dir(account.PrivateKeyPath), keysDirectoryPermissionsConstant); directoryError != nil {
		return sshkeys.KeyInfo{}, directoryError
	}
	keyInfo, generateError := services.Keys.Generate(account.PrivateKeyPath, account.PublicKeyPath, account.GitEmail)
	if generateError != nil {
		return sshkeys.KeyInfo{}, generateError
	}
	reporter.Printf(keyGeneratedTemplateConstant, keyInfo.Type, keyInfo.Fingerprint)
	if publicKey, readError := services.FileSystem.ReadFile(account.PublicKeyPath); readError == nil {
		reporter.Printf(publicKeyTemplateConstant, strings.TrimSpace(string(publicKey)))
	}
	return keyInfo, nil
}
