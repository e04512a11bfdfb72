package env

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Env composes the environment passed to collaborator commands.
// Precedence, lowest first: OS environment (when enabled), env files in
// order, explicit overrides.
type Env struct {
	UseOS     bool
	Files     []string
	Overrides []string // "K=V" entries
}

// Merge returns the composed environment in "K=V" form with ${VAR}
// expansion performed against the composed map (single pass, no recursion).
func (e *Env) Merge() ([]string, error) {
	m := make(map[string]string)
	if e.UseOS {
		for _, kv := range os.Environ() {
			if k, v, ok := splitKV(kv); ok {
				m[k] = v
			}
		}
	}
	for _, path := range e.Files {
		pairs, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		for _, kv := range pairs {
			if k, v, ok := splitKV(kv); ok {
				m[k] = v
			}
		}
	}
	for _, kv := range e.Overrides {
		if k, v, ok := splitKV(kv); ok {
			m[k] = v
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	return out, nil
}

func splitKV(kv string) (string, string, bool) {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return "", "", false
	}
	return kv[:i], kv[i+1:], true
}

func expand(v string, m map[string]string) string {
	return os.Expand(v, func(k string) string { return m[k] })
}

// loadFile reads a dotenv-style file: one K=V per line, '#' comments and
// blank lines ignored.
func loadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, _, ok := splitKV(line); !ok {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return out, nil
}
