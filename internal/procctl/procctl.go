//go:build !windows

// Package procctl terminates processes on behalf of the user.
package procctl

import (
	"golang.org/x/sys/unix"
)

// killFunc is swapped by tests.
var killFunc = unix.Kill

// Terminate sends SIGTERM and, if that is rejected, SIGKILL once. It
// reports whether the last signal was delivered. It never retries.
func Terminate(pid int) bool {
	if pid <= 0 {
		return false
	}
	if err := killFunc(pid, unix.SIGTERM); err == nil {
		return true
	}
	return killFunc(pid, unix.SIGKILL) == nil
}

// Alive probes pid with signal 0.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return killFunc(pid, 0) == nil
}
