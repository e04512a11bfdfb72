package phase

import "fmt"

// HandlerError reports that a phase's external work failed. The marker is
// left unchanged so a re-invocation retries the same phase.
type HandlerError struct {
	Phase ID
	Err   error
}

func (e *HandlerError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("phase %s failed", e.Phase)
	}
	return fmt.Sprintf("phase %s failed: %v", e.Phase, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// ContinuationError reports that the resume hook could not be registered.
// It is fatal for the phase: the controller refuses to reboot into a dead
// end and exits instead.
type ContinuationError struct {
	Err error
}

func (e *ContinuationError) Error() string {
	return fmt.Sprintf("continuation registration failed: %v", e.Err)
}

func (e *ContinuationError) Unwrap() error { return e.Err }

// UnknownMarkerError reports a persisted marker naming no phase of the
// sequence being run; the marker is left untouched for inspection.
type UnknownMarkerError struct {
	Family string
	Marker string
}

func (e *UnknownMarkerError) Error() string {
	return fmt.Sprintf("marker %q names no phase of sequence %s", e.Marker, e.Family)
}
