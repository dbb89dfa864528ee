//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// Alive reports the recorded PID and whether that process still exists.
// A missing or malformed PID file counts as not running.
func (p *PIDFile) Alive() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	// FindProcess always succeeds on Windows; probe with a zero signal.
	return pid, proc.Signal(syscall.Signal(0)) == nil
}

func signalPID(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Signal(sig)
}

func sigTerm() syscall.Signal { return syscall.SIGTERM }

// Windows has no graceful TERM for arbitrary processes; KILL is os.Kill.
func sigKill() syscall.Signal { return syscall.Signal(9) }
