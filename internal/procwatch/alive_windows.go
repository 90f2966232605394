//go:build windows

package procwatch

import "os"

// Alive reports whether pid refers to a live process. Windows has no
// zero-signal existence check; FindProcess succeeding is as close an
// analogue as the platform offers, since a genuinely dead PID can still
// be "found" until it's reaped, so callers should treat this as
// best-effort and corroborate with a port/health probe where possible.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil || proc == nil {
		return false
	}
	_ = proc.Release()
	return true
}
