package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

const (
	temporaryCreateErrorTemplateConstant = "unable to prepare directory for %s: %w"
	replaceErrorTemplateConstant         = "unable to replace %s: %w"
	resolveLinkErrorTemplateConstant     = "unable to resolve symbolic link %s: %w"
	parentDirectoryPermissionsConstant   = fs.FileMode(0o700)
	maximumLinkHopsConstant              = 40
)

var errTooManyLinks = errors.New("too many levels of symbolic links")

// OSFileSystem implements FileSystem using the operating system primitives.
type OSFileSystem struct{}

// Stat retrieves file metadata.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Lstat retrieves file metadata without following symbolic links.
func (OSFileSystem) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// ReadDir lists directory entries sorted by name.
func (OSFileSystem) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// Abs resolves an absolute path.
func (OSFileSystem) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

// MkdirAll ensures a directory hierarchy exists with the provided permissions.
func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

// ReadFile reads file contents.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile replaces the file atomically.
func (OSFileSystem) WriteFile(path string, data []byte, permissions fs.FileMode) error {
	return WriteFileAtomically(path, data, permissions)
}

// WriteFileAtomically writes data to a temporary sibling of the target and renames it into
// place, so readers observe either the old or the new content and never a truncated file.
// A symbolic link at path is followed and the file it points to is replaced, leaving the link
// intact. Existing file permissions are kept; permissions applies to newly created files.
func WriteFileAtomically(path string, data []byte, permissions fs.FileMode) error {
	targetPath, resolveError := resolveLinkTarget(path)
	if resolveError != nil {
		return fmt.Errorf(resolveLinkErrorTemplateConstant, path, resolveError)
	}
	targetDirectory := filepath.Dir(targetPath)
	if mkdirError := os.MkdirAll(targetDirectory, parentDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(temporaryCreateErrorTemplateConstant, targetPath, mkdirError)
	}
	writeError := renameio.WriteFile(
		targetPath,
		data,
		permissions,
		renameio.WithTempDir(targetDirectory),
		renameio.WithPermissions(permissions),
		renameio.WithExistingPermissions(),
	)
	if writeError != nil {
		return fmt.Errorf(replaceErrorTemplateConstant, targetPath, writeError)
	}
	return nil
}

// resolveLinkTarget follows symbolic links at path, including links whose target does not exist
// yet, and returns the final regular path.
func resolveLinkTarget(path string) (string, error) {
	currentPath := path
	for hop := 0; hop < maximumLinkHopsConstant; hop++ {
		info, lstatError := os.Lstat(currentPath)
		if lstatError != nil {
			if errors.Is(lstatError, fs.ErrNotExist) {
				return currentPath, nil
			}
			return "", lstatError
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			return currentPath, nil
		}
		if resolvedPath, evalError := filepath.EvalSymlinks(currentPath); evalError == nil {
			return resolvedPath, nil
		}
		linkTarget, readLinkError := os.Readlink(currentPath)
		if readLinkError != nil {
			return "", readLinkError
		}
		if !filepath.IsAbs(linkTarget) {
			linkTarget = filepath.Join(filepath.Dir(currentPath), linkTarget)
		}
		currentPath = linkTarget
	}
	return "", errTooManyLinks
}
