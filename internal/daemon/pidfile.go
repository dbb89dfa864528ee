// Package daemon tracks a background dev server process through a PID file.
package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// PIDFile records which process owns a background server instance.
type PIDFile struct {
	Path string
}

// NewPIDFile returns a PIDFile rooted at path. Nothing is written until Write.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process as the owner.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID records pid as the owner.
func (p *PIDFile) WritePID(pid int) error {
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read returns the recorded PID. A missing file returns the underlying
// os error so callers can distinguish "never started" from corruption.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed PID file %s: %w", p.Path, err)
	}
	return pid, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

// Stop signals the recorded process with TERM and waits up to timeout for it
// to exit, escalating to KILL if it is still alive. Returns the PID stopped.
func (p *PIDFile) Stop(timeout time.Duration) (int, error) {
	pid, running := p.Alive()
	if !running {
		return 0, fmt.Errorf("not running")
	}
	if err := p.Signal(sigTerm()); err != nil {
		return pid, err
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, alive := p.Alive(); !alive {
			return pid, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := p.Signal(sigKill()); err != nil {
		return pid, err
	}
	return pid, nil
}

// Signal delivers sig to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return signalPID(pid, sig)
}
