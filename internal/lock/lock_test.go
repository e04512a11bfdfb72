package lock

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

// startSleep starts a short-lived sleep process and returns *exec.Cmd already started
func startSleep(t *testing.T, dur string) *exec.Cmd {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unsupported on windows")
	}
	// #nosec G204
	cmd := exec.Command("/bin/sh", "-c", "sleep "+dur)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	return cmd
}

func TestAcquire_NoLockFile(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "run", "hostprep.lock"))

	if err := m.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer m.Release()

	owner, err := m.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != os.Getpid() {
		t.Fatalf("expected owner %d, got %d", os.Getpid(), owner)
	}
}

func TestAcquire_LiveOwnerContention(t *testing.T) {
	cmd := startSleep(t, "5")
	defer func() { _ = cmd.Process.Kill() }()

	dir := t.TempDir()
	path := filepath.Join(dir, "hostprep.lock")
	content := strconv.Itoa(cmd.Process.Pid) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	m := New(path)
	err := m.Acquire()
	if !errors.Is(err, ErrContention) {
		t.Fatalf("expected ErrContention, got %v", err)
	}
	// Lock file must be untouched.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock: %v", err)
	}
	if string(data) != content {
		t.Fatalf("lock file mutated under contention: %q", string(data))
	}
}

func TestAcquire_StaleLockReclaimed(t *testing.T) {
	cmd := startSleep(t, "0.05")
	pid := cmd.Process.Pid
	_ = cmd.Wait()
	// Give the kernel a moment to reap.
	time.Sleep(20 * time.Millisecond)

	dir := t.TempDir()
	path := filepath.Join(dir, "hostprep.lock")
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	m := New(path)
	if err := m.Acquire(); err != nil {
		t.Fatalf("expected reclaim + acquire, got %v", err)
	}
	defer m.Release()

	owner, err := m.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != os.Getpid() {
		t.Fatalf("expected owner %d after reclaim, got %d", os.Getpid(), owner)
	}
}

func TestRelease_OnlyRemovesOwnLock(t *testing.T) {
	cmd := startSleep(t, "5")
	defer func() { _ = cmd.Process.Kill() }()

	dir := t.TempDir()
	path := filepath.Join(dir, "hostprep.lock")
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", cmd.Process.Pid)), 0o600); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	m := New(path)
	m.Release()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("release removed a lock owned by another process: %v", err)
	}
}

func TestRelease_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "hostprep.lock"))
	if err := m.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.Release()
	m.Release() // no file left; must not panic or recreate

	if _, err := os.Stat(m.Path); !os.IsNotExist(err) {
		t.Fatalf("expected lock gone, stat err=%v", err)
	}
}

func TestOwner_InvalidContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostprep.lock")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := New(path)
	_, err := m.Owner()
	if err == nil || !strings.Contains(err.Error(), "invalid pid") {
		t.Fatalf("expected invalid pid error, got %v", err)
	}
}
