package gitrepo

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

const (
	pathSeparatorConstant               = "/"
	gitSuffixConstant                   = ".git"
	sshUserConstant                     = "git"
	aliasRemoteURLTemplateConstant      = "%s@%s:%s%s"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	requiredValueMessageConstant        = "value required"
	invalidRemoteURLMessageConstant     = "invalid remote url"
	missingHostMessageConstant          = "remote url has no host"
	missingOwnerPathMessageConstant     = "remote url has no owner path"
	fileProtocolConstant                = "file"
)

// RemoteURL represents a structured git remote URL.
type RemoteURL struct {
	Raw       string
	Protocol  string
	User      string
	Host      string
	Port      int
	OwnerPath string
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRemoteURL converts a textual remote URL into a structured representation. It accepts
// the scp-like shorthand user@host:owner/path.git and the URL form
// scheme://[user@]host[:port]/owner/path[.git]. Local paths are rejected.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	endpoint, endpointError := transport.NewEndpoint(trimmedRemote)
	if endpointError != nil {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	if endpoint.Protocol == fileProtocolConstant || len(strings.TrimSpace(endpoint.Host)) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: missingHostMessageConstant}
	}

	ownerPath := normalizeOwnerPath(endpoint.Path)
	if len(ownerPath) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: missingOwnerPathMessageConstant}
	}

	return RemoteURL{
		Raw:       trimmedRemote,
		Protocol:  endpoint.Protocol,
		User:      endpoint.User,
		Host:      endpoint.Host,
		Port:      endpoint.Port,
		OwnerPath: ownerPath,
	}, nil
}

// Owner returns the first path segment of the owner path.
func (remote RemoteURL) Owner() string {
	owner, _, _ := strings.Cut(remote.OwnerPath, pathSeparatorConstant)
	return owner
}

// FormatAliasRemoteURL builds the scp-like SSH remote that routes through an ssh config host alias.
func FormatAliasRemoteURL(hostAlias string, ownerPath string) (string, error) {
	trimmedAlias := strings.TrimSpace(hostAlias)
	if len(trimmedAlias) == 0 {
		return "", RemoteURLParseError{Input: hostAlias, Message: requiredValueMessageConstant}
	}
	normalizedOwnerPath := normalizeOwnerPath(ownerPath)
	if len(normalizedOwnerPath) == 0 {
		return "", RemoteURLParseError{Input: ownerPath, Message: missingOwnerPathMessageConstant}
	}
	return fmt.Sprintf(aliasRemoteURLTemplateConstant, sshUserConstant, trimmedAlias, normalizedOwnerPath, gitSuffixConstant), nil
}

func normalizeOwnerPath(path string) string {
	trimmed := strings.Trim(strings.TrimSpace(path), pathSeparatorConstant)
	trimmed = strings.TrimSuffix(trimmed, gitSuffixConstant)
	return strings.Trim(trimmed, pathSeparatorConstant)
}
