package gate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ErrTimeout is returned when the condition did not hold within the bound.
var ErrTimeout = errors.New("timed out waiting for condition")

// Predicate reports whether the awaited condition currently holds.
// A non-nil error aborts the wait immediately.
type Predicate func() (bool, error)

// WaitFor polls pred every interval until it holds or timeout elapses.
// It has no side effects beyond a progress log line per poll. The predicate
// is evaluated once immediately, so a condition that already holds returns
// without sleeping, and a timeout is reported no later than one interval
// past the deadline.
func WaitFor(what string, pred Predicate, timeout, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", interval)
	}
	deadline := time.Now().Add(timeout)
	for {
		ok, err := pred()
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", what, err)
		}
		if ok {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: %s (after %v)", ErrTimeout, what, timeout)
		}
		slog.Info("waiting", "for", what, "remaining", remaining.Round(time.Second))
		time.Sleep(interval)
	}
}

// FileAbsent returns a predicate that holds when path does not exist.
// This is the usual readiness condition: the in-progress marker is gone.
func FileAbsent(path string) Predicate {
	return func() (bool, error) {
		_, err := os.Stat(path)
		if err == nil {
			return false, nil
		}
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
}

// FileExists returns a predicate that holds once path exists, e.g. a side
// effect a previous phase promised to leave behind.
func FileExists(path string) Predicate {
	return func() (bool, error) {
		_, err := os.Stat(path)
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
}
