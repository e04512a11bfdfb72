package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/hostprep"
)

// writeTestConfig writes a minimal config rooted in a temp dir and returns
// its path plus the state dir.
func writeTestConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf("state_dir = %q\n%s", dir, extra)
	p := filepath.Join(dir, "hostprep.toml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p, dir
}

func TestWait_ReadyImmediately(t *testing.T) {
	cfg, _ := writeTestConfig(t, "")
	c := command{}
	if err := c.Wait(WaitFlags{ConfigPath: cfg, Timeout: 100 * time.Millisecond, Interval: 10 * time.Millisecond}); err != nil {
		t.Fatalf("wait on absent marker: %v", err)
	}
}

func TestWait_TimesOut(t *testing.T) {
	cfg, dir := writeTestConfig(t, "")
	if err := os.WriteFile(filepath.Join(dir, "provision.inprogress"), nil, 0o644); err != nil {
		t.Fatalf("create marker: %v", err)
	}
	c := command{}
	err := c.Wait(WaitFlags{ConfigPath: cfg, Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond})
	if !errors.Is(err, hostprep.ErrWaitTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if exitCode(err) != exitTimeout {
		t.Fatalf("timeout must map to exit code 2")
	}
}

func TestReset_RequiresForce(t *testing.T) {
	cfg, dir := writeTestConfig(t, "")
	marker := filepath.Join(dir, "phase")
	statusFile := filepath.Join(dir, "status.json")
	if err := os.WriteFile(marker, []byte("deploy\n"), 0o644); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	if err := os.WriteFile(statusFile, []byte(`{"phase":"deploy","status":"failed"}`), 0o644); err != nil {
		t.Fatalf("seed status: %v", err)
	}
	c := command{}
	err := c.Reset(ResetFlags{ConfigPath: cfg})
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected refusal without --force, got %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("marker must be untouched without --force: %v", err)
	}
	if _, err := os.Stat(statusFile); err != nil {
		t.Fatalf("status must be untouched without --force: %v", err)
	}

	if err := c.Reset(ResetFlags{ConfigPath: cfg, Force: true}); err != nil {
		t.Fatalf("forced reset: %v", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("marker not cleared by forced reset")
	}
	if _, err := os.Stat(statusFile); !os.IsNotExist(err) {
		t.Fatalf("stale status record not cleared by forced reset")
	}
}

func TestStatus_PrintsWithoutError(t *testing.T) {
	cfg, _ := writeTestConfig(t, "")
	c := command{}
	if err := c.Status(StatusFlags{ConfigPath: cfg}); err != nil {
		t.Fatalf("status: %v", err)
	}
}

func TestRunFamily_CleanupSucceeds(t *testing.T) {
	cfg, dir := writeTestConfig(t, "")
	c := command{}
	if err := c.RunFamily(hostprep.FamilyCleanup, RunFlags{ConfigPath: cfg}); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "status.json")); err != nil {
		t.Fatalf("status record not written: %v", err)
	}
}

func TestRunFamily_BadConfigPath(t *testing.T) {
	c := command{}
	if err := c.RunFamily(hostprep.FamilyCleanup, RunFlags{ConfigPath: "/does/not/exist.toml"}); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
