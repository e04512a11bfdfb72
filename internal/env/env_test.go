package env

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func asMap(t *testing.T, kvs []string) map[string]string {
	t.Helper()
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			t.Fatalf("malformed entry %q", kv)
		}
		m[kv[:i]] = kv[i+1:]
	}
	return m
}

func TestMerge_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.env")
	content := "# comment\nAPP_PORT=9090\nAPP_ENV=staging\n\nbroken-line\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	e := &Env{
		UseOS:     false,
		Files:     []string{file},
		Overrides: []string{"APP_ENV=production"},
	}
	kvs, err := e.Merge()
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	m := asMap(t, kvs)
	if m["APP_PORT"] != "9090" {
		t.Fatalf("file var lost: %v", m)
	}
	if m["APP_ENV"] != "production" {
		t.Fatalf("override did not win: %v", m)
	}
}

func TestMerge_OSBase(t *testing.T) {
	t.Setenv("HOSTPREP_TEST_BASE", "from-os")
	e := &Env{UseOS: true}
	kvs, err := e.Merge()
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if asMap(t, kvs)["HOSTPREP_TEST_BASE"] != "from-os" {
		t.Fatalf("OS base missing")
	}
}

func TestMerge_Expansion(t *testing.T) {
	e := &Env{Overrides: []string{"DATA_DIR=/var/lib/app", "DUMP_DIR=${DATA_DIR}/dumps"}}
	kvs, err := e.Merge()
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if asMap(t, kvs)["DUMP_DIR"] != "/var/lib/app/dumps" {
		t.Fatalf("expansion failed: %v", kvs)
	}
}

func TestMerge_MissingFile(t *testing.T) {
	e := &Env{Files: []string{filepath.Join(t.TempDir(), "nope.env")}}
	if _, err := e.Merge(); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestMerge_Deterministic(t *testing.T) {
	e := &Env{Overrides: []string{"A=1", "B=2", "C=3"}}
	kvs, err := e.Merge()
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	sort.Strings(kvs)
	want := []string{"A=1", "B=2", "C=3"}
	for i, kv := range kvs {
		if kv != want[i] {
			t.Fatalf("unexpected entries: %v", kvs)
		}
	}
}
