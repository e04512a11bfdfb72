package hostprep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	fc, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	fc.StateDir = dir
	fc.LockFile = filepath.Join(dir, "hostprep.lock")
	fc.MarkerFile = filepath.Join(dir, "phase")
	fc.StatusFile = filepath.Join(dir, "status.json")
	fc.ReadinessMarker = filepath.Join(dir, "provision.inprogress")
	fc.Gate.Timeout = 200 * time.Millisecond
	fc.Gate.PollInterval = 20 * time.Millisecond
	return fc
}

func TestNew_WithSQLiteHistory(t *testing.T) {
	fc := testConfig(t)
	fc.History.DSN = filepath.Join(fc.StateDir, "history.db")
	o, err := New(fc)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = o.Close() }()
	if o.hist == nil {
		t.Fatalf("history sink not opened")
	}
}

func TestRunCleanup_EndToEnd(t *testing.T) {
	fc := testConfig(t)
	o, err := New(fc)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// Cleanup is a single phase with no configured command, so it terminates
	// successfully without touching the system.
	if err := o.RunCleanup(context.Background()); err != nil {
		t.Fatalf("run cleanup: %v", err)
	}
	rec := o.Status()
	if rec.Phase != "cleanup" || rec.Status != "completed" {
		t.Fatalf("unexpected status: %+v", rec)
	}
	if !o.Ready() {
		t.Fatalf("host should be ready after a successful run")
	}
}

func TestRun_UnknownFamily(t *testing.T) {
	fc := testConfig(t)
	o, err := New(fc)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := o.Run(context.Background(), "teardown"); err == nil {
		t.Fatalf("expected error for unknown family")
	}
}

func TestReset_ClearsMarkerAndStatus(t *testing.T) {
	fc := testConfig(t)
	o, err := New(fc)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// A record from an earlier run must not survive the reset.
	if err := o.RunCleanup(context.Background()); err != nil {
		t.Fatalf("run cleanup: %v", err)
	}
	if rec := o.Status(); rec.Status != "completed" {
		t.Fatalf("precondition: expected completed record, got %+v", rec)
	}
	if err := os.WriteFile(fc.MarkerFile, []byte("deploy\n"), 0o644); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	if err := o.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := os.Stat(fc.MarkerFile); !os.IsNotExist(err) {
		t.Fatalf("marker not cleared")
	}
	if rec := o.Status(); rec.Status != "unknown" {
		t.Fatalf("expected unknown sentinel after reset, got %+v", rec)
	}
}

func TestWaitReady_TimesOutWhileMarkerPresent(t *testing.T) {
	fc := testConfig(t)
	o, err := New(fc)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := os.WriteFile(fc.ReadinessMarker, nil, 0o644); err != nil {
		t.Fatalf("create marker: %v", err)
	}
	if err := o.WaitReady(); !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if o.Ready() {
		t.Fatalf("Ready must be false while the marker exists")
	}
}

func TestWaitReady_ReturnsWhenMarkerRemoved(t *testing.T) {
	fc := testConfig(t)
	o, err := New(fc)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := os.WriteFile(fc.ReadinessMarker, nil, 0o644); err != nil {
		t.Fatalf("create marker: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.Remove(fc.ReadinessMarker)
	}()
	if err := o.WaitReady(); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
