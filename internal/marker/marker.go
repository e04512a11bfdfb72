package marker

import (
	"fmt"
	"os"
	"strings"

	"github.com/loykin/hostprep/internal/fsutil"
)

// Store persists the identifier of the next phase to execute. The marker file
// outlives the writing process and an OS reboot; absence means "start of
// sequence". Writes go through a temp file + rename so a crash mid-write
// cannot leave a partial marker for a concurrent reader.
type Store struct {
	Path string
}

func New(path string) *Store { return &Store{Path: path} }

// Read returns the persisted phase identifier. ok is false when no marker
// exists, which callers interpret as the first phase of the sequence.
func (s *Store) Read() (id string, ok bool, err error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	id = strings.TrimSpace(string(data))
	if id == "" {
		return "", false, fmt.Errorf("empty phase marker: %s", s.Path)
	}
	return id, true, nil
}

// Write persists id atomically.
func (s *Store) Write(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("refusing to write empty phase marker")
	}
	return fsutil.WriteFileAtomic(s.Path, []byte(id+"\n"), 0o600)
}

// Clear removes the marker. Used on reaching the terminal phase or by an
// explicit reset; removing an absent marker is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
