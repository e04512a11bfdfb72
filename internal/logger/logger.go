package logger

import (
	"fmt"
	"io"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for collaborator output logs.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where collaborator command output is captured.
// If StdoutPath/StderrPath are empty and Dir is set, files will be
// Dir/<name>.stdout.log and Dir/<name>.stderr.log.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string `mapstructure:"dir"`
	StdoutPath string `mapstructure:"stdout"`
	StderrPath string `mapstructure:"stderr"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Writers returns io.WriteClosers for stdout and stderr of the named
// collaborator. Either writer may be nil when no destination is configured.
func (c Config) Writers(name string) (io.WriteCloser, io.WriteCloser, error) {
	stdout := c.StdoutPath
	stderr := c.StderrPath
	if stdout == "" && c.Dir != "" {
		stdout = filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && c.Dir != "" {
		stderr = filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	var outW io.WriteCloser
	var errW io.WriteCloser
	if stdout != "" {
		outW = &lj.Logger{
			Filename:   stdout,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
	}
	if stderr != "" {
		errW = &lj.Logger{
			Filename:   stderr,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
	}
	return outW, errW, nil
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
