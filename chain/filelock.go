package chain

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock holds an exclusive, advisory lock on a sentinel file, the same
// x/sys/unix family mmapfile already uses for its mapping syscalls, so two
// processes never open the same data directory at once (per the db-lock
// sentinel in the on-disk layout).
type fileLock struct {
	fd *os.File
}

// acquireFileLock opens (creating if absent) the sentinel file at path and
// takes a non-blocking exclusive flock on it. It returns ErrLockHeld if
// another process already holds the lock.
func acquireFileLock(path string) (*fileLock, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("chain: open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(fd.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		fd.Close()
		if err == unix.EWOULDBLOCK {
			return nil, newError(ErrLockHeld, fmt.Errorf("chain: %s is locked by another process", path))
		}
		return nil, fmt.Errorf("chain: flock %s: %w", path, err)
	}
	return &fileLock{fd: fd}, nil
}

// release drops the lock and closes the sentinel file descriptor.
func (l *fileLock) release() error {
	if err := unix.Flock(int(l.fd.Fd()), unix.LOCK_UN); err != nil {
		l.fd.Close()
		return fmt.Errorf("chain: unlock: %w", err)
	}
	return l.fd.Close()
}
