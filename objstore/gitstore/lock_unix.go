//go:build !windows
// +build !windows

package gitstore

import (
	"os"

	. "github.com/warpfork/go-errcat"
	"golang.org/x/sys/unix"

	"github.com/polydawn/pkgtree/api/pkgtree"
)

/*
	An exclusive flock on the repository's lock file, held for the life of
	a transaction so that two processes (or two handles in one process)
	never have transactions open on the same repository at once.
*/
type repoLock struct {
	f *os.File
}

func acquireLock(path string) (*repoLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, ErrorDetailed(pkgtree.ErrStoreUnavailable, "cannot open repository lock: "+err.Error(), map[string]string{"lock": path})
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrorDetailed(pkgtree.ErrTransactionConflict, "another transaction holds the repository lock", map[string]string{"lock": path})
		}
		return nil, ErrorDetailed(pkgtree.ErrStoreUnavailable, "cannot take repository lock: "+err.Error(), map[string]string{"lock": path})
	}
	return &repoLock{f}, nil
}

// release is safe to call on a nil lock.
func (l *repoLock) release() error {
	if l == nil {
		return nil
	}
	defer l.f.Close()
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		return Errorf(pkgtree.ErrIoFailure, "cannot release repository lock: %s", err)
	}
	return nil
}
