package phase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/hostprep/internal/continuation"
	"github.com/loykin/hostprep/internal/history"
	"github.com/loykin/hostprep/internal/lock"
	"github.com/loykin/hostprep/internal/marker"
	"github.com/loykin/hostprep/internal/metrics"
	"github.com/loykin/hostprep/internal/status"
)

// Controller drives a phase sequence: it serializes invocations through the
// lock, resumes from the persisted marker, dispatches to phase handlers and
// applies their requested transitions. All dependencies are injected
// explicitly; the controller holds no global state.
type Controller struct {
	Lock      *lock.Manager
	Marker    *marker.Store
	Status    *status.Reporter
	Registrar continuation.Registrar
	Rebooter  Rebooter

	// ReadinessMarker is created when a run starts and removed only on
	// terminal success; waiters poll its absence. It intentionally survives
	// a reboot_and_resume so dependents keep waiting through the reboot.
	ReadinessMarker string

	// ResumeCommand is registered with the continuation hook before a reboot.
	ResumeCommand string

	// History receives transition events, best-effort. May be nil.
	History history.Sink
}

// Run executes seq from the persisted marker (or its first phase) until a
// terminal transition. The lock is released on every return path.
func (c *Controller) Run(ctx context.Context, seq *Sequence) error {
	if err := seq.Validate(); err != nil {
		return err
	}
	if err := c.Lock.Acquire(); err != nil {
		return err
	}
	defer c.Lock.Release()

	if err := c.touchReadinessMarker(); err != nil {
		return err
	}

	cur, err := c.resumePhase(seq)
	if err != nil {
		return err
	}

	for {
		def, ok := seq.Lookup(cur)
		if !ok {
			return &UnknownMarkerError{Family: seq.Family, Marker: string(cur)}
		}

		slog.Info("phase starting", "family", seq.Family, "phase", cur)
		c.Status.Record(string(cur), status.StateInProgress, "phase started")
		c.emit(ctx, history.EventPhaseStart, seq.Family, cur, "")
		metrics.IncPhaseRun(seq.Family, string(cur))

		began := time.Now()
		outcome, herr := def.Handler(ctx)
		metrics.ObservePhaseDuration(seq.Family, string(cur), time.Since(began))

		if herr != nil {
			outcome = TerminateFailure
		}

		switch outcome {
		case Advance:
			next, hasNext := seq.Next(cur)
			if !hasNext {
				// Last phase advanced: the sequence is complete.
				return c.finish(ctx, seq, cur)
			}
			// Marker must be durable before any further step so a crash
			// here neither repeats the finished phase nor skips the next.
			if err := c.Marker.Write(string(next)); err != nil {
				return fmt.Errorf("persist marker for %s: %w", next, err)
			}
			c.Status.Record(string(cur), status.StateCompleted, "advancing to "+string(next))
			c.emit(ctx, history.EventPhaseAdvance, seq.Family, cur, "next: "+string(next))
			slog.Info("phase complete", "family", seq.Family, "phase", cur, "next", next)
			cur = next

		case RebootAndResume:
			next, hasNext := seq.Next(cur)
			if !hasNext {
				return fmt.Errorf("phase %s requested reboot but is the last phase of %s", cur, seq.Family)
			}
			if err := c.Marker.Write(string(next)); err != nil {
				return fmt.Errorf("persist marker for %s: %w", next, err)
			}
			if c.Registrar == nil {
				cerr := &ContinuationError{Err: fmt.Errorf("no continuation registrar configured")}
				c.Status.Record(string(cur), status.StateFailed, cerr.Error())
				return cerr
			}
			if err := c.Registrar.Install(ctx, c.ResumeCommand); err != nil {
				cerr := &ContinuationError{Err: err}
				c.Status.Record(string(cur), status.StateFailed, cerr.Error())
				c.emit(ctx, history.EventPhaseFailed, seq.Family, cur, cerr.Error())
				return cerr
			}
			metrics.IncRebootIssued()
			c.Status.Record(string(cur), status.StateCompleted, "rebooting, resuming at "+string(next))
			c.emit(ctx, history.EventReboot, seq.Family, cur, "resume at "+string(next))
			slog.Info("rebooting to continue", "family", seq.Family, "resume_at", next)
			if err := c.Rebooter.Reboot(ctx); err != nil {
				return fmt.Errorf("issue reboot: %w", err)
			}
			// The reboot is in flight; this process goes down with the host.
			return nil

		case TerminateSuccess:
			return c.finish(ctx, seq, cur)

		case TerminateFailure:
			ferr := &HandlerError{Phase: cur, Err: herr}
			// Marker stays put so a retry re-attempts this phase.
			c.Status.Record(string(cur), status.StateFailed, ferr.Error())
			c.emit(ctx, history.EventPhaseFailed, seq.Family, cur, ferr.Error())
			metrics.IncPhaseFailure(seq.Family, string(cur))
			slog.Error("phase failed", "family", seq.Family, "phase", cur, "error", ferr)
			return ferr

		default:
			return fmt.Errorf("phase %s returned invalid outcome %v", cur, outcome)
		}
	}
}

// resumePhase maps the persisted marker onto the sequence; no marker means
// the first phase.
func (c *Controller) resumePhase(seq *Sequence) (ID, error) {
	id, ok, err := c.Marker.Read()
	if err != nil {
		return "", fmt.Errorf("read phase marker: %w", err)
	}
	if !ok {
		return seq.First(), nil
	}
	if _, found := seq.Lookup(ID(id)); !found {
		return "", &UnknownMarkerError{Family: seq.Family, Marker: id}
	}
	slog.Info("resuming from marker", "family", seq.Family, "phase", id)
	return ID(id), nil
}

func (c *Controller) finish(ctx context.Context, seq *Sequence, last ID) error {
	if err := c.Marker.Clear(); err != nil {
		return fmt.Errorf("clear phase marker: %w", err)
	}
	c.Status.Record(string(last), status.StateCompleted, "sequence complete")
	c.emit(ctx, history.EventSequenceComplete, seq.Family, last, "")
	c.removeReadinessMarker()
	if c.Registrar != nil {
		if err := c.Registrar.Uninstall(ctx); err != nil {
			slog.Warn("remove continuation hook", "error", err)
		}
	}
	slog.Info("sequence complete", "family", seq.Family, "last_phase", last)
	return nil
}

func (c *Controller) touchReadinessMarker() error {
	if c.ReadinessMarker == "" {
		return nil
	}
	f, err := os.OpenFile(c.ReadinessMarker, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create readiness marker: %w", err)
	}
	return f.Close()
}

func (c *Controller) removeReadinessMarker() {
	if c.ReadinessMarker == "" {
		return
	}
	if err := os.Remove(c.ReadinessMarker); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove readiness marker", "path", c.ReadinessMarker, "error", err)
	}
}

// emit sends a history event, best-effort. Sink failures are logged and
// never affect the orchestration flow.
func (c *Controller) emit(ctx context.Context, typ history.EventType, family string, phase ID, msg string) {
	if c.History == nil {
		return
	}
	e := history.Event{
		Type:       typ,
		Family:     family,
		Phase:      string(phase),
		Message:    msg,
		OccurredAt: time.Now().UTC(),
		PID:        os.Getpid(),
	}
	if err := c.History.Send(ctx, e); err != nil {
		slog.Warn("history sink", "event", string(typ), "error", err)
	}
}
