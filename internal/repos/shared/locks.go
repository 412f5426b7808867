package shared

import (
	"path/filepath"
	"sync"
)

// PathLocks hands out one mutex per cleaned filesystem path.
type PathLocks struct {
	guard sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock blocks until the lock for path is held and returns its release function.
func (pathLocks *PathLocks) Lock(path string) func() {
	cleanedPath := filepath.Clean(path)
	pathLocks.guard.Lock()
	if pathLocks.locks == nil {
		pathLocks.locks = map[string]*sync.Mutex{}
	}
	pathLock, exists := pathLocks.locks[cleanedPath]
	if !exists {
		pathLock = &sync.Mutex{}
		pathLocks.locks[cleanedPath] = pathLock
	}
	pathLocks.guard.Unlock()

	pathLock.Lock()
	return pathLock.Unlock
}
