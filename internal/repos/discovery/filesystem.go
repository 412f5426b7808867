package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/gitid/internal/gitrepo"
	"github.com/temirov/gitid/internal/repos/shared"
)

const (
	gitMetadataDirectoryNameConstant     = ".git"
	hiddenDirectoryPrefixConstant        = "."
	scanRootErrorTemplateConstant        = "%s: %w"
	scanRootNotDirectoryTemplateConstant = "%s is not a directory: %w"
	issueLogMessageConstant              = "Skipping unreadable path during scan"
	remoteUnparsableLogMessageConstant   = "Origin remote URL could not be parsed"
	repositoryFoundLogMessageConstant    = "Discovered repository"
	logFieldPathConstant                 = "path"
	logFieldKindConstant                 = "kind"
	logFieldDepthConstant                = "depth"
	logFieldRemoteConstant               = "remote"
)

// RepositoryConfigReader loads the identity-related values of a repository's local configuration.
type RepositoryConfigReader interface {
	ReadRepositoryConfig(executionContext context.Context, repositoryPath string) (gitrepo.RepositoryConfig, error)
}

// Scanner locates git working trees beneath a root directory.
type Scanner struct {
	fileSystem   shared.FileSystem
	configReader RepositoryConfigReader
	logger       *zap.Logger
}

type workItem struct {
	path  string
	depth int
}

type repositoryCandidate struct {
	path  string
	depth int
}

// NewScanner constructs a Scanner.
func NewScanner(fileSystem shared.FileSystem, configReader RepositoryConfigReader, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{fileSystem: fileSystem, configReader: configReader, logger: logger}
}

// Scan validates root and returns a lazy sequence of repositories beneath it. Every range over the
// sequence walks the tree again; nothing is retained between iterations.
func (scanner *Scanner) Scan(root string, options Options) (iter.Seq[DiscoveredRepository], error) {
	rootPath, rootError := scanner.resolveRoot(root)
	if rootError != nil {
		return nil, rootError
	}
	normalizedOptions := options.normalized()

	return func(yield func(DiscoveredRepository) bool) {
		scanner.walk(rootPath, normalizedOptions, func(candidate repositoryCandidate) bool {
			repository, inspected := scanner.inspect(context.Background(), candidate, normalizedOptions.IssueHandler)
			if !inspected {
				return true
			}
			return yield(repository)
		})
	}, nil
}

// DiscoverRepositories returns the paths of repositories beneath root in traversal order.
func (scanner *Scanner) DiscoverRepositories(root string, options Options) ([]string, error) {
	rootPath, rootError := scanner.resolveRoot(root)
	if rootError != nil {
		return nil, rootError
	}
	var repositoryPaths []string
	scanner.walk(rootPath, options.normalized(), func(candidate repositoryCandidate) bool {
		repositoryPaths = append(repositoryPaths, candidate.path)
		return true
	})
	return repositoryPaths, nil
}

func (scanner *Scanner) resolveRoot(root string) (string, error) {
	absoluteRoot, absError := scanner.fileSystem.Abs(strings.TrimSpace(root))
	if absError != nil {
		return "", fmt.Errorf(scanRootErrorTemplateConstant, root, errors.Join(ErrScanRootUnreadable, absError))
	}
	rootInfo, statError := scanner.fileSystem.Stat(absoluteRoot)
	if statError != nil {
		return "", fmt.Errorf(scanRootErrorTemplateConstant, absoluteRoot, errors.Join(ErrScanRootUnreadable, statError))
	}
	if !rootInfo.IsDir() {
		return "", fmt.Errorf(scanRootNotDirectoryTemplateConstant, absoluteRoot, ErrScanRootUnreadable)
	}
	if _, readError := scanner.fileSystem.ReadDir(absoluteRoot); readError != nil {
		return "", fmt.Errorf(scanRootErrorTemplateConstant, absoluteRoot, errors.Join(ErrScanRootUnreadable, readError))
	}
	return filepath.Clean(absoluteRoot), nil
}

// walk performs an iterative depth-first traversal in lexical order and reports repository
// candidates until visit returns false.
func (scanner *Scanner) walk(rootPath string, options Options, visit func(repositoryCandidate) bool) {
	stack := []workItem{{path: rootPath, depth: 0}}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		isRepository := scanner.isRepository(current.path)
		if isRepository {
			scanner.logger.Debug(repositoryFoundLogMessageConstant, zap.String(logFieldPathConstant, current.path), zap.Int(logFieldDepthConstant, current.depth))
			if !visit(repositoryCandidate{path: current.path, depth: current.depth}) {
				return
			}
			if !options.DescendIntoRepositories {
				continue
			}
		}
		if current.depth >= options.MaxDepth {
			continue
		}

		entries, readError := scanner.fileSystem.ReadDir(current.path)
		if readError != nil {
			issueKind := IssueDirectoryUnreadable
			if isRepository {
				issueKind = IssueRepositoryUnreadable
			}
			scanner.report(options.IssueHandler, ScanIssue{Kind: issueKind, Path: current.path, Cause: readError})
			continue
		}

		for entryIndex := len(entries) - 1; entryIndex >= 0; entryIndex-- {
			entry := entries[entryIndex]
			if !scanner.shouldDescend(entry, options) {
				continue
			}
			stack = append(stack, workItem{path: filepath.Join(current.path, entry.Name()), depth: current.depth + 1})
		}
	}
}

func (scanner *Scanner) shouldDescend(entry fs.DirEntry, options Options) bool {
	if entry.Type()&fs.ModeSymlink != 0 || !entry.IsDir() {
		return false
	}
	name := entry.Name()
	if name == gitMetadataDirectoryNameConstant {
		return false
	}
	if strings.HasPrefix(name, hiddenDirectoryPrefixConstant) && !options.IncludeHidden {
		return false
	}
	return true
}

func (scanner *Scanner) isRepository(directoryPath string) bool {
	_, statError := scanner.fileSystem.Lstat(filepath.Join(directoryPath, gitMetadataDirectoryNameConstant))
	return statError == nil
}

// inspect reads the repository's local configuration. Repositories whose metadata cannot be read are
// reported and dropped.
func (scanner *Scanner) inspect(executionContext context.Context, candidate repositoryCandidate, issueHandler IssueHandler) (DiscoveredRepository, bool) {
	repository := DiscoveredRepository{Path: candidate.path, Depth: candidate.depth}

	repositoryConfig, readError := scanner.configReader.ReadRepositoryConfig(executionContext, candidate.path)
	if readError != nil {
		scanner.report(issueHandler, ScanIssue{Kind: IssueRepositoryUnreadable, Path: candidate.path, Cause: readError})
		return DiscoveredRepository{}, false
	}

	if len(repositoryConfig.UserName) > 0 || len(repositoryConfig.UserEmail) > 0 {
		repository.LocalIdentity = &Identity{Name: repositoryConfig.UserName, Email: repositoryConfig.UserEmail}
	}

	if len(repositoryConfig.OriginURL) == 0 {
		return repository, true
	}
	remote, parseError := gitrepo.ParseRemoteURL(repositoryConfig.OriginURL)
	if parseError != nil {
		scanner.logger.Warn(remoteUnparsableLogMessageConstant, zap.String(logFieldPathConstant, candidate.path), zap.String(logFieldRemoteConstant, repositoryConfig.OriginURL), zap.Error(parseError))
		if issueHandler != nil {
			issueHandler(ScanIssue{Kind: IssueRemoteURLUnparsable, Path: candidate.path, Cause: parseError})
		}
		return repository, true
	}

	repository.RemoteURL = remote.Raw
	repository.RemoteHost = remote.Host
	repository.RemoteOwnerPath = remote.OwnerPath
	return repository, true
}

func (scanner *Scanner) report(issueHandler IssueHandler, issue ScanIssue) {
	scanner.logger.Warn(issueLogMessageConstant, zap.String(logFieldKindConstant, string(issue.Kind)), zap.String(logFieldPathConstant, issue.Path), zap.Error(issue.Cause))
	if issueHandler != nil {
		issueHandler(issue)
	}
}

func serializedIssueHandler(issueHandler IssueHandler) IssueHandler {
	if issueHandler == nil {
		return nil
	}
	var handlerMutex sync.Mutex
	return func(issue ScanIssue) {
		handlerMutex.Lock()
		defer handlerMutex.Unlock()
		issueHandler(issue)
	}
}
