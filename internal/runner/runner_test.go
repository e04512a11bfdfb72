//go:build !windows

package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/hostprep/internal/env"
	"github.com/loykin/hostprep/internal/logger"
)

func TestRun_Success(t *testing.T) {
	r := &ExecRunner{}
	if err := r.Run(context.Background(), "noop", "/bin/true"); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := &ExecRunner{}
	err := r.Run(context.Background(), "fail", "/bin/false")
	if err == nil {
		t.Fatalf("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "exited with code 1") {
		t.Fatalf("expected exit code in error, got %v", err)
	}
}

func TestRun_CapturesOutput(t *testing.T) {
	dir := t.TempDir()
	r := &ExecRunner{Log: logger.Config{Dir: dir}}
	if err := r.Run(context.Background(), "echo", "echo provisioning done"); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "echo.stdout.log"))
	if err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	if !strings.Contains(string(data), "provisioning done") {
		t.Fatalf("output not captured: %q", string(data))
	}
}

func TestRun_MergedEnvVisible(t *testing.T) {
	dir := t.TempDir()
	r := &ExecRunner{
		Env: &env.Env{Overrides: []string{"HOSTPREP_MARK=alpha"}},
		Log: logger.Config{Dir: dir},
	}
	if err := r.Run(context.Background(), "env-check", `sh -c 'echo mark=$HOSTPREP_MARK'`); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "env-check.stdout.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "mark=alpha") {
		t.Fatalf("env not applied: %q", string(data))
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r := &ExecRunner{}
	start := time.Now()
	err := r.Run(ctx, "sleeper", "sleep 10")
	if err == nil {
		t.Fatalf("expected error after context timeout")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancel did not interrupt command")
	}
}

func TestBuildCommand_ShellDetection(t *testing.T) {
	cases := []struct {
		in        string
		wantShell bool
	}{
		{"/bin/true", false},
		{"echo plain words", false},
		{"echo $HOME", true},
		{"apt-get install -y docker.io && systemctl enable docker", true},
		{`sh -c 'touch /tmp/x'`, true},
	}
	for _, tc := range cases {
		cmd := buildCommand(context.Background(), tc.in)
		isShell := strings.HasSuffix(cmd.Path, "/sh")
		if isShell != tc.wantShell {
			t.Fatalf("%q: shell=%v, want %v (path=%s)", tc.in, isShell, tc.wantShell, cmd.Path)
		}
	}
}

func TestParseExplicitShell_StripsQuotes(t *testing.T) {
	after, ok := parseExplicitShell(`sh -c 'echo hi > /tmp/out'`)
	if !ok {
		t.Fatalf("expected explicit shell detection")
	}
	if after != "echo hi > /tmp/out" {
		t.Fatalf("unexpected script: %q", after)
	}
}
