package lock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/loykin/hostprep/internal/metrics"
)

// ErrContention is returned when another live process owns the lock. It is a
// normal concurrent-invocation outcome, not a fault of the orchestrator.
var ErrContention = errors.New("already running")

// Manager serializes orchestrator invocations on one host through a single
// lock file containing the owner's pid as plain text.
type Manager struct {
	Path string
}

func New(path string) *Manager { return &Manager{Path: path} }

// Acquire creates the lock file with the caller's pid. When the file already
// exists and its recorded owner is still alive, ErrContention is returned
// without retrying. A stale file (dead owner) is reclaimed and acquisition is
// retried exactly once.
func (m *Manager) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o750); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		err := m.tryCreate()
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock %s: %w", m.Path, err)
		}
		owner, rerr := m.Owner()
		if rerr != nil {
			if os.IsNotExist(rerr) {
				// Owner released between our create attempt and read.
				continue
			}
			return rerr
		}
		if pidAlive(owner) {
			metrics.IncLockContention()
			return fmt.Errorf("%w (pid %d holds %s)", ErrContention, owner, m.Path)
		}
		// Liveness only: a recycled pid can masquerade as a live owner.
		slog.Warn("reclaiming stale lock", "path", m.Path, "pid", owner)
		metrics.IncStaleLockReclaimed()
		if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reclaim stale lock: %w", err)
		}
	}
	return ErrContention
}

func (m *Manager) tryCreate() error {
	f, err := os.OpenFile(m.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if werr != nil {
		_ = os.Remove(m.Path)
		return werr
	}
	if cerr != nil {
		_ = os.Remove(m.Path)
		return cerr
	}
	return nil
}

// Owner returns the pid recorded in the lock file.
func (m *Manager) Owner() (int, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", m.Path, err)
	}
	return pid, nil
}

// Release removes the lock file only when the recorded pid still matches the
// calling process; a lock reclaimed by a third party is left untouched. It is
// safe to call on every exit path, including after a failed Acquire.
func (m *Manager) Release() {
	owner, err := m.Owner()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("read lock during release", "path", m.Path, "error", err)
		}
		return
	}
	if owner != os.Getpid() {
		slog.Warn("lock owned by another process, leaving in place", "path", m.Path, "pid", owner)
		return
	}
	if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove lock", "path", m.Path, "error", err)
	}
}
