package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked means another run currently holds the store.
var ErrLocked = errors.New("store is locked by another run")

// Lock is an advisory cross-process lock guarding a store file against
// overlapping read-modify-write cycles.
type Lock struct {
	fl *flock.Flock
}

// LockPath returns the lock file used for a store at storePath.
func LockPath(storePath string) string {
	return storePath + ".lock"
}

// AcquireLock takes the lock without waiting.
func AcquireLock(storePath string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	fl := flock.New(LockPath(storePath))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("store: lock %q: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
