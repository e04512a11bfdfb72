package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/loykin/hostprep/internal/env"
	"github.com/loykin/hostprep/internal/logger"
)

// Runner executes an opaque collaborator command and reports its outcome via
// the returned error. The orchestrator core only interprets exit codes.
type Runner interface {
	Run(ctx context.Context, name, command string) error
}

// ExecRunner runs collaborator commands as child processes, with the merged
// environment and stdout/stderr captured into rotating log files.
type ExecRunner struct {
	Env     *env.Env
	Log     logger.Config
	WorkDir string
}

func (r *ExecRunner) Run(ctx context.Context, name, command string) error {
	cmd := buildCommand(ctx, command)
	if r.WorkDir != "" {
		cmd.Dir = r.WorkDir
	}
	if r.Env != nil {
		merged, err := r.Env.Merge()
		if err != nil {
			return fmt.Errorf("compose environment for %s: %w", name, err)
		}
		cmd.Env = merged
	}
	outW, errW, err := r.Log.Writers(name)
	if err != nil {
		return err
	}
	if outW != nil {
		defer func() { _ = outW.Close() }()
		cmd.Stdout = outW
	}
	if errW != nil {
		defer func() { _ = errW.Close() }()
		cmd.Stderr = errW
	}

	slog.Info("running collaborator", "name", name, "command", command)
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return fmt.Errorf("%s exited with code %d: %w", name, ee.ExitCode(), err)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// buildCommand constructs an *exec.Cmd for the given command string.
// It avoids invoking a shell when not necessary, and respects an explicit
// shell invocation already present in the command string (e.g. "sh -c '...'")
// to avoid double-wrapping.
func buildCommand(ctx context.Context, command string) *exec.Cmd {
	cmdStr := strings.TrimSpace(command)
	if cmdStr == "" {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/true")
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/sh", "-c", afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.CommandContext(ctx, name, args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>"
// at the beginning of cmdStr and returns the argument passed to -c, with one
// surrounding quote pair stripped so the shell sees the actual script.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}
