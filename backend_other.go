//go:build !windows

package main

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setDetachedProcess puts the backend in its own process group so terminal
// signals aimed at the shell do not reach it, and so the whole group
// (bundled backends fork a worker) can be killed at once.
func setDetachedProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// groupProcess kills the backend's process group with SIGKILL.
type groupProcess struct {
	p *os.Process
}

func newBackendProcess(p *os.Process) processKiller {
	return groupProcess{p: p}
}

func (g groupProcess) Kill() error {
	if err := g.KillGroup(); err == nil {
		return nil
	}
	// no such group (already reaped): let os.Process report ErrProcessDone
	return g.p.Kill()
}

// KillGroup sends SIGKILL to the group only; it fails with ESRCH once every
// member has exited.
func (g groupProcess) KillGroup() error {
	return unix.Kill(-g.p.Pid, unix.SIGKILL)
}
