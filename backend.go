package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"sync/atomic"
)

// Platform identifies the OS family the shell is running on.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformDarwin  Platform = "darwin"
	PlatformLinux   Platform = "linux"
)

// currentPlatform maps runtime.GOOS onto a Platform.
func currentPlatform() Platform {
	return Platform(goruntime.GOOS)
}

const backendBaseName = "sonosano-backend"

// backendExecutableName returns the bundled backend file name for p.
func backendExecutableName(p Platform) string {
	if p == PlatformWindows {
		return backendBaseName + ".exe"
	}
	return backendBaseName
}

// backendPath returns <resourceRoot>/backend/<name>.
func backendPath(resourceRoot string, p Platform) string {
	return filepath.Join(resourceRoot, "backend", backendExecutableName(p))
}

// BuildMode decides whether the shell owns the backend process.
type BuildMode int

const (
	// BuildDebug: the backend is run by the developer, never spawned here.
	BuildDebug BuildMode = iota
	BuildRelease
)

func (m BuildMode) String() string {
	if m == BuildRelease {
		return "release"
	}
	return "debug"
}

// buildModeFromBuildType maps the Wails environment BuildType
// ("dev", "debug", "production") onto a BuildMode.
func buildModeFromBuildType(buildType string) BuildMode {
	if buildType == "production" {
		return BuildRelease
	}
	return BuildDebug
}

var errBackendNotFound = errors.New("backend executable not found")

// processKiller is the part of a child process the supervisor needs.
type processKiller interface {
	Kill() error
}

// groupKiller is implemented where the backend runs in its own process
// group, so workers it forked can be killed after the leader is gone.
type groupKiller interface {
	KillGroup() error
}

// BackendHandle is a spawned backend process. While recorded it is owned by
// the BackendSlot; other code may only observe it (Done, Exited), never kill it.
type BackendHandle struct {
	Path string
	Pid  int

	proc   processKiller
	done   chan struct{} // closed by the exit watcher, nil when not watched
	err    error
	killed atomic.Bool // set before the shell's own kill request
}

// Exited reports whether the child has already exited. Never blocks.
func (h *BackendHandle) Exited() bool {
	if h.done == nil {
		return false
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done is closed once the child has exited.
func (h *BackendHandle) Done() <-chan struct{} {
	return h.done
}

// ExitErr returns the wait error of an exited child (nil for a clean exit).
// Only meaningful after Done is closed.
func (h *BackendHandle) ExitErr() error {
	return h.err
}

// Killed reports whether the shell asked for this process to be killed, so
// an exit that follows is expected.
func (h *BackendHandle) Killed() bool {
	return h.killed.Load()
}

// Kill forcefully terminates the child. A child that has already exited
// counts as killed.
func (h *BackendHandle) Kill() error {
	err := h.proc.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// determineAndSpawn starts the bundled backend when the shell owns it.
// It returns nil when no backend was started; the reason is logged, never
// returned, since the shell runs without a backend in every failure case.
func determineAndSpawn(mode BuildMode, resourceRoot string) *BackendHandle {
	if mode == BuildDebug {
		Log.Info("dev mode: backend should be started separately")
		return nil
	}

	path := backendPath(resourceRoot, currentPlatform())
	h, err := spawnBackend(path)
	if err != nil {
		Log.Error("failed to start backend", "path", path, "error", err)
		return nil
	}
	Log.Info("backend started", "path", path, "pid", h.Pid)
	return h
}

// spawnBackend launches path with no arguments and inherited streams, and
// reaps it in the background. It does not wait for the child.
func spawnBackend(path string) (*BackendHandle, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errBackendNotFound, path)
		}
		return nil, fmt.Errorf("stat backend: %w", err)
	}

	cmd := exec.Command(path)
	setDetachedProcess(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start backend: %w", err)
	}

	h := &BackendHandle{
		Path: path,
		Pid:  cmd.Process.Pid,
		proc: newBackendProcess(cmd.Process),
		done: make(chan struct{}),
	}
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// BackendSlot holds at most one backend handle. The setup hook records into
// it and the close/shutdown hooks terminate it; those may run on different
// goroutines, so every access goes through mu.
type BackendSlot struct {
	mu     sync.Mutex
	handle *BackendHandle
	closed bool // set by the first TerminateOnShutdown, never reset
}

// NewBackendSlot returns an empty slot.
func NewBackendSlot() *BackendSlot {
	return &BackendSlot{}
}

// Record stores the result of determineAndSpawn. A nil handle records
// "no backend". A handle arriving after shutdown, or while another one is
// held, is killed instead of stored.
func (s *BackendSlot) Record(h *BackendHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h == nil {
		return
	}
	if s.closed {
		Log.Error("backend recorded after shutdown, killing it", "pid", h.Pid)
		killBackend(h)
		return
	}
	if s.handle != nil {
		Log.Error("backend already recorded, killing duplicate", "pid", h.Pid, "heldPid", s.handle.Pid)
		killBackend(h)
		return
	}
	s.handle = h
}

// TerminateOnShutdown kills the held backend, if any, and clears the slot.
// Safe to call any number of times from any goroutine; only the first call
// with a held handle issues a kill.
func (s *BackendSlot) TerminateOnShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	h := s.handle
	s.handle = nil
	if h == nil {
		return
	}
	killBackend(h)
}

// HeldPid returns the pid of the held backend.
func (s *BackendSlot) HeldPid() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0, false
	}
	return s.handle.Pid, true
}

// killBackend issues one kill request. Failures are logged; the app is
// exiting regardless.
func killBackend(h *BackendHandle) {
	defer func() {
		if r := recover(); r != nil {
			Log.Error("backend kill panicked", "pid", h.Pid, "panic", r)
		}
	}()

	h.killed.Store(true)
	if h.Exited() {
		Log.Info("backend already exited", "pid", h.Pid, "exit", h.ExitErr())
		killLeftoverWorkers(h)
		return
	}
	if err := h.Kill(); err != nil {
		Log.Error("failed to kill backend", "pid", h.Pid, "error", err)
		return
	}
	Log.Info("backend process killed", "pid", h.Pid)
}

// killLeftoverWorkers kills what remains of an exited backend's process
// group. The group id stays reserved while any member is alive, so this
// cannot hit an unrelated process; an empty group is the normal case.
func killLeftoverWorkers(h *BackendHandle) {
	gk, ok := h.proc.(groupKiller)
	if !ok {
		return
	}
	if err := gk.KillGroup(); err != nil {
		Log.Debug("no backend workers left", "pgid", h.Pid, "error", err)
		return
	}
	Log.Info("killed leftover backend workers", "pgid", h.Pid)
}
