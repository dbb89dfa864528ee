//go:build !windows

package daemon

import "syscall"

// Alive reports the recorded PID and whether that process still exists.
// A missing or malformed PID file counts as not running.
func (p *PIDFile) Alive() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	// Signal 0 probes process existence without delivering anything.
	return pid, syscall.Kill(pid, 0) == nil
}

func signalPID(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

func sigTerm() syscall.Signal { return syscall.SIGTERM }
func sigKill() syscall.Signal { return syscall.SIGKILL }
