package phase

import (
	"context"
	"fmt"
)

// ID names one phase of a sequence. The set of valid IDs is closed per
// family; an unknown marker value is rejected rather than guessed at.
type ID string

// Outcome is the transition a phase handler requests from the controller.
type Outcome int

const (
	// Advance proceeds to the next phase in the same process.
	Advance Outcome = iota
	// RebootAndResume persists the marker for the next phase, registers the
	// continuation hook and reboots the host; the process does not return.
	RebootAndResume
	// TerminateSuccess clears the marker and ends the sequence successfully.
	TerminateSuccess
	// TerminateFailure leaves the marker unchanged so a re-invocation
	// retries the same phase.
	TerminateFailure
)

func (o Outcome) String() string {
	switch o {
	case Advance:
		return "advance"
	case RebootAndResume:
		return "reboot_and_resume"
	case TerminateSuccess:
		return "terminate_success"
	case TerminateFailure:
		return "terminate_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Handler performs the opaque, possibly long-running work of one phase and
// requests a transition. Handlers must be safe to re-run from their own
// start: a crash before the marker advances re-executes the same phase.
type Handler func(ctx context.Context) (Outcome, error)

// Definition binds a phase ID to its handler.
type Definition struct {
	ID      ID
	Handler Handler
}

// Sequence is the ordered, closed set of phases for one family
// (e.g. provision or redeploy).
type Sequence struct {
	Family string
	Phases []Definition
}

// First returns the initial phase of the sequence.
func (s *Sequence) First() ID {
	return s.Phases[0].ID
}

// Lookup returns the definition for id.
func (s *Sequence) Lookup(id ID) (Definition, bool) {
	for _, d := range s.Phases {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Next returns the phase following id, or false when id is the last phase.
func (s *Sequence) Next(id ID) (ID, bool) {
	for i, d := range s.Phases {
		if d.ID == id {
			if i+1 < len(s.Phases) {
				return s.Phases[i+1].ID, true
			}
			return "", false
		}
	}
	return "", false
}

// Validate checks the sequence is well formed: non-empty, unique IDs, and a
// handler for every phase.
func (s *Sequence) Validate() error {
	if s.Family == "" {
		return fmt.Errorf("sequence family must be named")
	}
	if len(s.Phases) == 0 {
		return fmt.Errorf("sequence %s has no phases", s.Family)
	}
	seen := make(map[ID]bool, len(s.Phases))
	for _, d := range s.Phases {
		if d.ID == "" {
			return fmt.Errorf("sequence %s has a phase with empty id", s.Family)
		}
		if seen[d.ID] {
			return fmt.Errorf("sequence %s has duplicate phase %s", s.Family, d.ID)
		}
		seen[d.ID] = true
		if d.Handler == nil {
			return fmt.Errorf("phase %s has no handler", d.ID)
		}
	}
	return nil
}
