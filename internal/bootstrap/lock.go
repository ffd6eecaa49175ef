// Package bootstrap brings a simulation database from any state to the
// initialized state the pipeline requires: seed tables loaded, foundation
// tables built, integrity verified. The sequence is guarded by an exclusive
// directory lock so concurrent navigator processes cannot both build it.
package bootstrap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

const lockFileName = "init.lock"

// lockHolder records who holds the initialization lock. It is written into
// the lock file so a blocked process can report the holder.
type lockHolder struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// DirLock is an exclusive advisory lock over a data directory. It uses
// flock(2) so the lock dies with the process; a crashed holder never leaves
// the directory locked.
type DirLock struct {
	path string
	file *os.File
}

// AcquireDirLock takes the initialization lock for the data directory.
// It does not block: a held lock returns an INIT_LOCKED error naming the
// holder when known.
func AcquireDirLock(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	lockPath := filepath.Join(dir, lockFileName)

	// Create lock file with 0600 permissions (owner read/write only)
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file %s: %w", lockPath, err)
	}

	// Attempt to acquire exclusive lock (non-blocking)
	// LOCK_EX = exclusive lock, LOCK_NB = non-blocking
	err = unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		holder := readHolder(lockPath)
		lockFile.Close()
		if err == unix.EWOULDBLOCK {
			msg := fmt.Sprintf("initialization already in progress for %s", dir)
			if holder != nil {
				msg = fmt.Sprintf("initialization already in progress for %s (held by pid %d on %s since %s)",
					dir, holder.PID, holder.Hostname, holder.AcquiredAt.Format(time.RFC3339))
			}
			return nil, types.NewError(types.INIT_LOCKED, msg)
		}
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", lockPath, err)
	}

	// Record the holder for diagnostics. The lock itself lives in the flock,
	// not in the file contents.
	hostname, _ := os.Hostname()
	holder := lockHolder{
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
	}
	if data, err := json.Marshal(holder); err == nil {
		lockFile.Truncate(0)
		lockFile.WriteAt(data, 0)
		lockFile.Sync()
	}

	return &DirLock{
		path: lockPath,
		file: lockFile,
	}, nil
}

// Release drops the lock. Closing the file descriptor releases the flock
// automatically. Safe to call more than once.
func (l *DirLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	file := l.file
	l.file = nil
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close lock file %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}

// readHolder reads the holder metadata from a lock file, returning nil when
// it cannot be read or parsed.
func readHolder(path string) *lockHolder {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil
	}

	var holder lockHolder
	if err := json.Unmarshal(data, &holder); err != nil {
		return nil
	}
	return &holder
}
