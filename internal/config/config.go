package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/hostprep/internal/env"
	"github.com/loykin/hostprep/internal/logger"
	"github.com/spf13/viper"
)

// Defaults applied when the TOML file leaves the corresponding key unset.
const (
	DefaultStateDir     = "/var/lib/hostprep"
	DefaultWaitTimeout  = 300 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// Environment variables that override the gate block.
const (
	EnvWaitTimeout  = "HOSTPREP_WAIT_TIMEOUT"
	EnvPollInterval = "HOSTPREP_POLL_INTERVAL"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	StateDir        string `toml:"state_dir" mapstructure:"state_dir"`
	LockFile        string `toml:"lock_file" mapstructure:"lock_file"`
	MarkerFile      string `toml:"marker_file" mapstructure:"marker_file"`
	StatusFile      string `toml:"status_file" mapstructure:"status_file"`
	ReadinessMarker string `toml:"readiness_marker" mapstructure:"readiness_marker"`
	ResumeCommand   string `toml:"resume_command" mapstructure:"resume_command"`

	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool     `toml:"use_os_env" mapstructure:"use_os_env"`

	Log     *logger.Config `toml:"log" mapstructure:"log"`
	Gate    GateConfig     `toml:"gate" mapstructure:"gate"`
	History HistoryConfig  `toml:"history" mapstructure:"history"`
	Metrics MetricsConfig  `toml:"metrics" mapstructure:"metrics"`
	Server  ServerConfig   `toml:"server" mapstructure:"server"`

	Provision FamilyConfig `toml:"provision" mapstructure:"provision"`
	Redeploy  FamilyConfig `toml:"redeploy" mapstructure:"redeploy"`
	Cleanup   FamilyConfig `toml:"cleanup" mapstructure:"cleanup"`
}

// FamilyConfig carries the per-family collaborator commands, keyed by phase
// id. The phase order itself is fixed by the family, not the config.
type FamilyConfig struct {
	WorkDir string            `toml:"workdir" mapstructure:"workdir"`
	Phases  map[string]string `toml:"phases" mapstructure:"phases"`
}

type GateConfig struct {
	Timeout      time.Duration `toml:"timeout" mapstructure:"timeout"`
	PollInterval time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Load parses the TOML config at path and applies defaults and environment
// overrides. A missing file is an error; an empty path yields pure defaults.
func Load(path string) (*FileConfig, error) {
	fc := &FileConfig{}
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := v.Unmarshal(fc); err != nil {
			return nil, err
		}
	}
	fc.applyDefaults()
	if err := fc.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *FileConfig) applyDefaults() {
	if fc.StateDir == "" {
		fc.StateDir = DefaultStateDir
	}
	if fc.LockFile == "" {
		fc.LockFile = filepath.Join(fc.StateDir, "hostprep.lock")
	}
	if fc.MarkerFile == "" {
		fc.MarkerFile = filepath.Join(fc.StateDir, "phase")
	}
	if fc.StatusFile == "" {
		fc.StatusFile = filepath.Join(fc.StateDir, "status.json")
	}
	if fc.ReadinessMarker == "" {
		fc.ReadinessMarker = filepath.Join(fc.StateDir, "provision.inprogress")
	}
	if fc.Gate.Timeout <= 0 {
		fc.Gate.Timeout = DefaultWaitTimeout
	}
	if fc.Gate.PollInterval <= 0 {
		fc.Gate.PollInterval = DefaultPollInterval
	}
}

// applyEnvOverrides lets CI pipelines tune wait behavior without editing the
// config file.
func (fc *FileConfig) applyEnvOverrides() error {
	if s := os.Getenv(EnvWaitTimeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvWaitTimeout, err)
		}
		fc.Gate.Timeout = d
	}
	if s := os.Getenv(EnvPollInterval); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvPollInterval, err)
		}
		fc.Gate.PollInterval = d
	}
	return nil
}

// GlobalEnv builds the environment composition for collaborator commands.
func (fc *FileConfig) GlobalEnv() env.Env {
	return env.Env{
		UseOS:     fc.UseOSEnv,
		Files:     fc.EnvFiles,
		Overrides: fc.Env,
	}
}

// LogConfig returns the log block, or a zero config when absent.
func (fc *FileConfig) LogConfig() logger.Config {
	if fc.Log == nil {
		return logger.Config{}
	}
	return *fc.Log
}

// Family returns the named family block. Unknown names return false.
func (fc *FileConfig) Family(name string) (FamilyConfig, bool) {
	switch name {
	case "provision":
		return fc.Provision, true
	case "redeploy":
		return fc.Redeploy, true
	case "cleanup":
		return fc.Cleanup, true
	default:
		return FamilyConfig{}, false
	}
}

// Command returns the collaborator command for a phase, or "" when the
// config leaves the phase without external work.
func (f FamilyConfig) Command(phase string) string {
	if f.Phases == nil {
		return ""
	}
	return f.Phases[phase]
}
