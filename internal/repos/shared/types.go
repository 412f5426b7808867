package shared

import (
	"context"
	"io/fs"
	"time"
)

const (
	// OriginRemoteNameConstant identifies the remote inspected and rewritten for identity binding.
	OriginRemoteNameConstant = "origin"
	// GitUserNameKeyConstant is the git config key holding the commit author name.
	GitUserNameKeyConstant = "user.name"
	// GitUserEmailKeyConstant is the git config key holding the commit author email.
	GitUserEmailKeyConstant = "user.email"
)

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FileSystem exposes filesystem operations required by repository services.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Lstat(path string) (fs.FileInfo, error)
	ReadDir(path string) ([]fs.DirEntry, error)
	Abs(path string) (string, error)
	MkdirAll(path string, permissions fs.FileMode) error
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, permissions fs.FileMode) error
}

// GitConfigManager reads and writes repository-local git configuration.
type GitConfigManager interface {
	GetConfig(executionContext context.Context, repositoryPath string, key string) (string, error)
	SetConfig(executionContext context.Context, repositoryPath string, key string, value string) error
	GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
	SetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string) error
}
