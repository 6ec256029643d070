//go:build windows

package main

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// setDetachedProcess starts the backend in a new process group with no
// console window of its own.
// CREATE_NEW_PROCESS_GROUP: Ctrl+C sent to the shell does not reach it
// CREATE_NO_WINDOW: the bundled backend is a console program
func setDetachedProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_NO_WINDOW,
	}
}

// newBackendProcess uses TerminateProcess via os.Process.Kill.
func newBackendProcess(p *os.Process) processKiller {
	return p
}
