package continuation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/loykin/hostprep/internal/runner"
)

const (
	DefaultUnitDir  = "/etc/systemd/system"
	DefaultUnitName = "hostprep-resume.service"
)

// Systemd registers the resume hook as a one-shot systemd unit. The unit
// disables itself via ExecStartPre before the resume command runs, so it
// fires at most once even if the resume invocation crashes.
type Systemd struct {
	UnitDir  string
	UnitName string
	Runner   runner.Runner
}

func NewSystemd(r runner.Runner) *Systemd {
	return &Systemd{UnitDir: DefaultUnitDir, UnitName: DefaultUnitName, Runner: r}
}

func (s *Systemd) unitPath() string {
	dir := s.UnitDir
	if dir == "" {
		dir = DefaultUnitDir
	}
	return filepath.Join(dir, s.name())
}

func (s *Systemd) name() string {
	if s.UnitName == "" {
		return DefaultUnitName
	}
	return s.UnitName
}

func (s *Systemd) Install(ctx context.Context, resumeCommand string) error {
	if resumeCommand == "" {
		return fmt.Errorf("resume command must not be empty")
	}
	unit := renderUnit(s.name(), resumeCommand)
	if err := os.MkdirAll(filepath.Dir(s.unitPath()), 0o755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}
	if err := os.WriteFile(s.unitPath(), []byte(unit), 0o644); err != nil {
		return fmt.Errorf("write unit %s: %w", s.unitPath(), err)
	}
	if err := s.Runner.Run(ctx, "systemd-reload", "systemctl daemon-reload"); err != nil {
		return fmt.Errorf("reload systemd: %w", err)
	}
	if err := s.Runner.Run(ctx, "systemd-enable", "systemctl enable "+s.name()); err != nil {
		return fmt.Errorf("enable resume unit: %w", err)
	}
	slog.Info("continuation hook installed", "unit", s.name(), "resume", resumeCommand)
	return nil
}

func (s *Systemd) Uninstall(ctx context.Context) error {
	if _, err := os.Stat(s.unitPath()); os.IsNotExist(err) {
		// Nothing was installed; leave systemd alone.
		return nil
	}
	// The unit self-disables, but the file is still removed as cleanup.
	if err := s.Runner.Run(ctx, "systemd-disable", "systemctl disable "+s.name()); err != nil {
		slog.Warn("disable resume unit", "unit", s.name(), "error", err)
	}
	if err := os.Remove(s.unitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit %s: %w", s.unitPath(), err)
	}
	if err := s.Runner.Run(ctx, "systemd-reload", "systemctl daemon-reload"); err != nil {
		return fmt.Errorf("reload systemd: %w", err)
	}
	slog.Info("continuation hook removed", "unit", s.name())
	return nil
}

func renderUnit(name, resumeCommand string) string {
	return fmt.Sprintf(`[Unit]
Description=Resume host provisioning after reboot
After=network-online.target
Wants=network-online.target

[Service]
Type=oneshot
ExecStartPre=/usr/bin/systemctl disable %s
ExecStart=%s

[Install]
WantedBy=multi-user.target
`, name, resumeCommand)
}
