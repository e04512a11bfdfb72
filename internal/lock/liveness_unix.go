//go:build !windows

package lock

import (
	"errors"
	"syscall"
)

// pidAlive returns true if a process with given pid exists (or EPERM).
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
