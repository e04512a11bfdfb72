package provision

import (
	"context"
	"fmt"

	"github.com/loykin/hostprep/internal/config"
	"github.com/loykin/hostprep/internal/phase"
	"github.com/loykin/hostprep/internal/runner"
)

// Family names. Each maps to a fixed phase order; config only supplies the
// collaborator command per phase.
const (
	FamilyProvision = "provision"
	FamilyRedeploy  = "redeploy"
	FamilyCleanup   = "cleanup"
)

// Phase ids per family.
const (
	PhaseInit            phase.ID = "init"
	PhaseBaseSetup       phase.ID = "base-setup"
	PhaseRebootPending   phase.ID = "reboot-pending"
	PhasePostRebootSetup phase.ID = "post-reboot-setup"

	PhaseStage   phase.ID = "stage"
	PhaseDeploy  phase.ID = "deploy"
	PhaseCleanup phase.ID = "cleanup"
)

// step describes one phase of a family: its id and the transition requested
// when the collaborator command succeeds. A failing command always yields
// terminate_failure regardless of onSuccess.
type step struct {
	id        phase.ID
	onSuccess phase.Outcome
}

var families = map[string][]step{
	FamilyProvision: {
		{PhaseInit, phase.Advance},
		{PhaseBaseSetup, phase.Advance},
		{PhaseRebootPending, phase.RebootAndResume},
		{PhasePostRebootSetup, phase.TerminateSuccess},
	},
	FamilyRedeploy: {
		{PhaseStage, phase.Advance},
		{PhaseDeploy, phase.Advance},
		{PhaseCleanup, phase.TerminateSuccess},
	},
	FamilyCleanup: {
		{PhaseCleanup, phase.TerminateSuccess},
	},
}

// Sequence builds the phase sequence for the named family, binding each
// phase to its configured collaborator command run through r. Phases with no
// configured command succeed without external work.
func Sequence(family string, fc config.FamilyConfig, r runner.Runner) (*phase.Sequence, error) {
	steps, ok := families[family]
	if !ok {
		return nil, fmt.Errorf("unknown family %q", family)
	}
	defs := make([]phase.Definition, 0, len(steps))
	for _, st := range steps {
		defs = append(defs, phase.Definition{
			ID:      st.id,
			Handler: commandHandler(st.id, fc.Command(string(st.id)), st.onSuccess, r),
		})
	}
	return &phase.Sequence{Family: family, Phases: defs}, nil
}

// Families returns the known family names.
func Families() []string {
	return []string{FamilyProvision, FamilyRedeploy, FamilyCleanup}
}

func commandHandler(id phase.ID, command string, onSuccess phase.Outcome, r runner.Runner) phase.Handler {
	return func(ctx context.Context) (phase.Outcome, error) {
		if command != "" {
			if err := r.Run(ctx, string(id), command); err != nil {
				return phase.TerminateFailure, err
			}
		}
		return onSuccess, nil
	}
}
