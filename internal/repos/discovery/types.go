package discovery

import (
	"errors"
	"fmt"
)

const (
	// DefaultMaxDepthConstant bounds traversal when no depth is configured.
	DefaultMaxDepthConstant = 5
	// DefaultWorkersConstant bounds concurrent repository inspection.
	DefaultWorkersConstant = 4

	scanIssueTemplateConstant = "%s at %s: %v"
)

// ErrScanRootUnreadable indicates the scan root does not exist, is not a directory, or cannot be listed.
var ErrScanRootUnreadable = errors.New("scan root unreadable")

// IssueKind classifies non-fatal problems observed during a scan.
type IssueKind string

const (
	// IssueRepositoryUnreadable marks a repository whose git metadata could not be read; it is skipped.
	IssueRepositoryUnreadable IssueKind = "repository_unreadable"
	// IssueDirectoryUnreadable marks a directory that could not be listed; its subtree is skipped.
	IssueDirectoryUnreadable IssueKind = "directory_unreadable"
	// IssueRemoteURLUnparsable marks a repository kept without remote fields.
	IssueRemoteURLUnparsable IssueKind = "remote_url_unparsable"
)

// ScanIssue describes a non-fatal scan problem.
type ScanIssue struct {
	Kind  IssueKind
	Path  string
	Cause error
}

// Error describes the issue.
func (issue ScanIssue) Error() string {
	return fmt.Sprintf(scanIssueTemplateConstant, issue.Kind, issue.Path, issue.Cause)
}

// Unwrap exposes the underlying cause.
func (issue ScanIssue) Unwrap() error {
	return issue.Cause
}

// IssueHandler receives non-fatal scan issues. It may be invoked from multiple goroutines during ScanAll
// but never concurrently.
type IssueHandler func(ScanIssue)

// Identity is the repository-local commit identity.
type Identity struct {
	Name  string
	Email string
}

// DiscoveredRepository describes one working tree found by a scan. Empty remote fields mean the
// repository has no usable origin remote.
type DiscoveredRepository struct {
	Path            string
	RemoteURL       string
	RemoteHost      string
	RemoteOwnerPath string
	LocalIdentity   *Identity
	Depth           int
}

// HasRemote reports whether a parsable origin remote was found.
func (repository DiscoveredRepository) HasRemote() bool {
	return len(repository.RemoteURL) > 0
}

// Options configures a scan.
type Options struct {
	MaxDepth                int
	IncludeHidden           bool
	DescendIntoRepositories bool
	Workers                 int
	IssueHandler            IssueHandler
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepthConstant, Workers: DefaultWorkersConstant}
}

func (options Options) normalized() Options {
	if options.MaxDepth < 0 {
		options.MaxDepth = 0
	}
	if options.Workers <= 0 {
		options.Workers = DefaultWorkersConstant
	}
	return options
}
