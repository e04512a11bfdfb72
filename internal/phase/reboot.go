package phase

import (
	"context"

	"github.com/loykin/hostprep/internal/runner"
)

// Rebooter issues the OS reboot that ends a reboot_and_resume transition.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// SystemdRebooter reboots through systemctl.
type SystemdRebooter struct {
	Runner runner.Runner
}

func (r *SystemdRebooter) Reboot(ctx context.Context) error {
	return r.Runner.Run(ctx, "reboot", "systemctl reboot")
}
