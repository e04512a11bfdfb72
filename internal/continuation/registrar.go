package continuation

import "context"

// Registrar installs and removes the one-shot hook that re-invokes the
// orchestrator after the next boot. Install must complete before a reboot is
// issued; without it a reboot would orphan the phase sequence.
type Registrar interface {
	Install(ctx context.Context, resumeCommand string) error
	Uninstall(ctx context.Context) error
}
