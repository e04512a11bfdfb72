package status

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/hostprep/internal/fsutil"
)

// State is the coarse progress state visible to external observers.
type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateUnknown    State = "unknown"
)

// Record is the single current snapshot of orchestration progress.
// Last write wins; there is no history at this level.
type Record struct {
	Phase     string    `json:"phase"`
	Status    State     `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	OwnerPID  int       `json:"owner_process_id"`
}

// Reporter writes and reads the status record. Writing is a side-channel for
// observers (CI, health probes) and fails soft: an unwritable filesystem is
// logged and never propagated into the orchestration flow.
type Reporter struct {
	Path string
}

func New(path string) *Reporter { return &Reporter{Path: path} }

// Record overwrites the status record atomically, stamping current UTC time
// and the calling process id.
func (r *Reporter) Record(phase string, state State, message string) {
	rec := Record{
		Phase:     phase,
		Status:    state,
		Message:   message,
		Timestamp: time.Now().UTC(),
		OwnerPID:  os.Getpid(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		slog.Warn("marshal status record", "error", err)
		return
	}
	if err := fsutil.WriteFileAtomic(r.Path, append(data, '\n'), 0o644); err != nil {
		slog.Warn("write status record", "path", r.Path, "error", err)
	}
}

// Clear removes the status record so readers see the unknown sentinel.
// Used by an explicit reset; removing an absent record is not an error.
func (r *Reporter) Clear() error {
	if err := os.Remove(r.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Read returns the latest status record, or the unknown sentinel when no
// record exists or it cannot be decoded. It never returns an error.
func (r *Reporter) Read() Record {
	unknown := Record{Status: StateUnknown}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return unknown
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("decode status record", "path", r.Path, "error", err)
		return unknown
	}
	if rec.Status == "" {
		rec.Status = StateUnknown
	}
	return rec
}
