// Package lockfile keeps two Tech Safi servers from sharing one state directory.
//
// The lock is an flock on a file in the state directory, so the kernel drops it
// when the process exits, cleanly or not. The file records who holds it.
package lockfile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// FileName is the lock file created in the state directory.
const FileName = "techsafi.lock"

// Holder describes the process that owns the lock.
type Holder struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is an acquired state directory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the exclusive lock on stateDir, creating the directory if needed.
// addr is recorded so a second instance can report which server holds the lock.
func Acquire(stateDir, addr string) (*Lock, error) {
	path := filepath.Join(stateDir, FileName)
	slog.Debug("lockfile.Acquire: attempting", "path", path)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// Not O_TRUNC: the current holder's record must survive a failed attempt.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		lockErr := &LockError{Path: path, Cause: err}
		if holder, ok := readHolder(path); ok {
			lockErr.Holder = &holder
		}
		slog.Error("lockfile.Acquire: state directory in use", "path", path, "holder", lockErr.Holder)
		return nil, lockErr
	}

	holder := Holder{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()}
	if err := writeHolder(file, holder); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, err)
	}

	slog.Info("lockfile.Acquire: lock held", "path", path, "pid", holder.PID)
	return &Lock{file: file, path: path}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock and removes the file. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("lockfile.Release: unlock failed", "error", err, "path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Warn("lockfile.Release: close failed", "error", err, "path", l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("lockfile.Release: remove failed", "error", err, "path", l.path)
	}
	l.file = nil
	slog.Info("lockfile.Release: lock released", "path", l.path)
	return nil
}

// LockError reports that another process holds the lock.
type LockError struct {
	Path   string
	Holder *Holder
	Cause  error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("another techsafi server is using this state directory (lock file %s)", e.Path)
	if e.Holder != nil {
		status := "running"
		if !processAlive(e.Holder.PID) {
			status = "not running, lock may be stale"
		}
		msg += fmt.Sprintf(": pid %d (%s)", e.Holder.PID, status)
		if e.Holder.Addr != "" {
			msg += fmt.Sprintf(" serving %s", e.Holder.Addr)
		}
	}
	return msg
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

func writeHolder(file *os.File, holder Holder) error {
	data, err := json.Marshal(holder)
	if err != nil {
		return err
	}
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt(append(data, '\n'), 0); err != nil {
		return err
	}
	return file.Sync()
}

func readHolder(path string) (Holder, bool) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return Holder{}, false
	}
	var holder Holder
	if err := json.Unmarshal(data, &holder); err != nil || holder.PID <= 0 {
		return Holder{}, false
	}
	return holder, true
}

// processAlive sends signal 0, which checks for existence without delivering anything.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
