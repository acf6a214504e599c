// Package lockfile guards a state directory against two engine processes
// writing the same SQLite session store.
//
// The lock is an flock on a file inside the directory, so the kernel releases
// it when the holding process exits, cleanly or not.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory.
const LockFileName = "shiftengine.lock"

// Lock is a held state directory lock.
type Lock struct {
	file  *os.File
	path  string
	owner Owner
}

// Owner describes the process recorded in a lock file.
type Owner struct {
	PID     int
	Command string
	Since   time.Time
}

func (o Owner) String() string {
	if o.PID == 0 {
		return "unknown process"
	}
	state := "not running, stale lock"
	if processRunning(o.PID) {
		state = "running"
	}
	s := fmt.Sprintf("PID %d (%s)", o.PID, state)
	if o.Command != "" {
		s += " " + o.Command
	}
	if !o.Since.IsZero() {
		s += " since " + o.Since.Format(time.RFC3339)
	}
	return s
}

// Acquire takes an exclusive lock on stateDir for command, creating the
// directory if needed. It fails immediately with a *LockError when another
// process holds the lock.
func Acquire(stateDir, command string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("lockfile.Acquire: acquiring", "lock_path", lockPath, "command", command)

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	// O_TRUNC would wipe the holder's info before we know whether we win.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := ReadOwner(lockPath)
		slog.Error("lockfile.Acquire: state directory is locked", "lock_path", lockPath, "holder", holder.String())
		return nil, &LockError{LockPath: lockPath, Holder: holder, Cause: err}
	}

	owner := Owner{PID: os.Getpid(), Command: command, Since: time.Now().UTC().Truncate(time.Second)}
	if err := writeOwner(file, owner); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("lockfile.Acquire: state directory locked", "lock_path", lockPath, "pid", owner.PID)
	return &Lock{file: file, path: lockPath, owner: owner}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Owner returns the information recorded for this process.
func (l *Lock) Owner() Owner {
	return l.owner
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("lockfile.Lock.Release: unlock failed", "lock_path", l.path, "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Warn("lockfile.Lock.Release: close failed", "lock_path", l.path, "error", err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("lockfile.Lock.Release: remove failed", "lock_path", l.path, "error", err)
	}
	l.file = nil
	slog.Debug("lockfile.Lock.Release: released", "lock_path", l.path)
	return nil
}

// LockError reports that another process holds the state directory.
type LockError struct {
	LockPath string
	Holder   Owner
	Cause    error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("state directory is in use by another shiftengine process: %s (lock file %s; remove it only if that process is gone)",
		e.Holder, e.LockPath)
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

func writeOwner(f *os.File, o Owner) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	content := fmt.Sprintf("pid=%d\ncommand=%s\nsince=%s\n", o.PID, o.Command, o.Since.Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		return err
	}
	return f.Sync()
}

// ReadOwner parses the lock file at path. Missing or malformed fields are left
// zero.
func ReadOwner(path string) Owner {
	data, err := os.ReadFile(path)
	if err != nil {
		return Owner{}
	}
	return parseOwner(string(data))
}

func parseOwner(content string) Owner {
	var o Owner
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(value); err == nil && pid > 0 {
				o.PID = pid
			}
		case "command":
			o.Command = value
		case "since":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				o.Since = t
			}
		}
	}
	return o
}

// processRunning sends signal 0, which checks for existence without
// delivering anything.
func processRunning(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
