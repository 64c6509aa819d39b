// Package lockfile implements the single-process filesystem lock the
// engine acquires at startup: a PID file whose presence is verified
// against a live process, so a crashed process's stale lock is
// reclaimed automatically rather than requiring manual cleanup.
package lockfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/riverforge/combine-trader/internal/xerrors"
)

// Lock guards one path with the current process's PID.
type Lock struct {
	path string
}

// Acquire writes the current PID to path, refusing if another live
// process already holds it. A PID file referencing a process that no
// longer exists is reclaimed in place.
func Acquire(path string) (*Lock, error) {
	if pid, ok := readLivePID(path); ok {
		return nil, fmt.Errorf("%w: held by pid %d", xerrors.ErrLockContested, pid)
	}

	data := []byte(strconv.Itoa(os.Getpid()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("lockfile: write %s: %w", path, err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call once after Acquire
// succeeds; a missing file is not an error (idempotent on shutdown
// races).
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lockfile: remove %s: %w", l.path, err)
	}
	return nil
}

// readLivePID returns the PID recorded in path and true if that
// process is still alive. A missing or unparseable file, or a PID
// that signal(0) reports as gone, returns false — in either case the
// lock is free to reclaim.
func readLivePID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !processAlive(pid) {
		return pid, false
	}
	return pid, true
}

// processAlive sends signal 0, which performs the kernel's existence
// and permission checks without actually delivering a signal.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
