package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	goruntime "runtime"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ShellApp is the Wails application binding struct.
// Methods on this struct are exposed to the frontend via window.go.main.ShellApp.
type ShellApp struct {
	ctx     context.Context
	cfg     *AppConfig
	mode    BuildMode
	backend *BackendSlot

	// cancels the readiness wait, exit watcher and signal watcher
	stopWatchers context.CancelFunc

	emit   func(name string, data ...interface{})
	notify func(title, body string)
	quit   func()
}

// WindowInfo is returned by WindowInit.
type WindowInfo struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Minimizable bool   `json:"minimizable"`
	Maximizable bool   `json:"maximizable"`
	IsMaximized bool   `json:"isMaximized"`
	Platform    string `json:"platform"`
}

// NewShellApp creates a new ShellApp with an empty backend slot.
func NewShellApp(cfg *AppConfig) *ShellApp {
	return &ShellApp{
		cfg:     cfg,
		backend: NewBackendSlot(),
		notify: func(title, body string) {
			if err := beeep.Notify(title, body, ""); err != nil {
				Log.Debug("notification failed", "error", err)
			}
		},
		quit: func() {},
	}
}

// startup is called when the Wails app starts, before the window is
// interactive. The backend is spawned and recorded here so it is in the
// slot before any close event can fire.
func (a *ShellApp) startup(ctx context.Context) {
	tStartup := time.Now()
	a.ctx = ctx
	beeep.AppName = appDisplayName

	a.emit = func(name string, data ...interface{}) {
		wailsRuntime.EventsEmit(ctx, name, data...)
	}
	a.quit = func() {
		wailsRuntime.Quit(ctx)
	}

	env := wailsRuntime.Environment(ctx)
	a.mode = buildModeFromBuildType(env.BuildType)
	if a.cfg.DevBackend {
		a.mode = BuildDebug
	}
	Log.Debug("Wails OnStartup", "buildType", env.BuildType, "mode", a.mode, "platform", env.Platform)

	a.setupBackend()
	Log.Debug("Wails OnStartup done", "elapsed", time.Since(tStartup))
}

// setupBackend spawns the backend (release only), records it and starts the
// background watchers. Nothing here blocks on the child.
func (a *ShellApp) setupBackend() {
	watchCtx, cancel := context.WithCancel(context.Background())
	a.stopWatchers = cancel
	go a.watchSignals(watchCtx)

	h := determineAndSpawn(a.mode, resolveResourceDir(a.cfg.ResourceDir))
	a.backend.Record(h)

	if h == nil {
		if a.mode == BuildRelease {
			a.emitEvent(EventBackendFailed)
			a.notify(appDisplayName, "The music backend could not be started. Check the logs for details.")
		}
		return
	}

	go a.watchBackendExit(watchCtx, h)
	go a.awaitBackendReady(watchCtx, h)
}

// watchBackendExit reports a backend that exits on its own. The handle stays
// in the slot; TerminateOnShutdown skips the kill for it. An exit caused by
// the shell's own kill is not reported.
func (a *ShellApp) watchBackendExit(ctx context.Context, h *BackendHandle) {
	select {
	case <-h.Done():
	case <-ctx.Done():
		return
	}
	if h.Killed() {
		Log.Info("backend stopped", "pid", h.Pid)
		return
	}
	Log.Error("backend exited unexpectedly", "pid", h.Pid, "error", h.ExitErr())
	a.emitEvent(EventBackendExited, h.Pid)
}

// awaitBackendReady waits for /health. It gives up silently once the child
// exits; watchBackendExit reports that.
func (a *ShellApp) awaitBackendReady(ctx context.Context, h *BackendHandle) {
	readyCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.Done():
			cancel()
		case <-readyCtx.Done():
		}
	}()

	check := backendHealthCheck(a.cfg.BackendURL, healthProbeTimeout)
	if err := waitBackendReady(readyCtx, check, a.cfg.BackendReadyTimeout()); err != nil {
		if readyCtx.Err() != nil {
			return
		}
		Log.Error("backend did not become healthy", "url", a.cfg.BackendURL, "error", err)
		a.emitEvent(EventBackendUnready)
		return
	}
	Log.Info("backend ready", "url", a.cfg.BackendURL)
	a.emitEvent(EventBackendReady)
}

// watchSignals kills the backend and quits when the shell itself is
// interrupted or terminated.
func (a *ShellApp) watchSignals(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	if ctx.Err() != nil {
		return
	}
	Log.Info("signal received, stopping backend")
	a.stopBackend()
	a.quit()
}

// onDomReady is called when the frontend DOM is fully loaded.
func (a *ShellApp) onDomReady(ctx context.Context) {
	Log.Debug("Wails OnDomReady: window is interactive")
}

// beforeClose is the window close hook. Returning false lets the close
// proceed.
func (a *ShellApp) beforeClose(ctx context.Context) bool {
	a.stopBackend()
	return false
}

// stopBackend stops the watchers, then kills the backend.
func (a *ShellApp) stopBackend() {
	if a.stopWatchers != nil {
		a.stopWatchers()
	}
	a.backend.TerminateOnShutdown()
}

// shutdown is called when the Wails app is closing. Quit paths that skip
// beforeClose still stop the backend here.
func (a *ShellApp) shutdown(ctx context.Context) {
	a.stopBackend()

	w, h := wailsRuntime.WindowGetSize(ctx)
	if w > 0 && h > 0 {
		a.cfg.WindowWidth = w
		a.cfg.WindowHeight = h
	}
	if err := SaveConfig(a.cfg); err != nil {
		Log.Error("failed to save config", "error", err)
	}
}

// resolveResourceDir returns override, or the bundled resource directory
// of the running executable.
func resolveResourceDir(override string) string {
	if override != "" {
		return override
	}
	exe, err := os.Executable()
	if err != nil {
		Log.Error("cannot locate executable", "error", err)
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return resourceDirFor(filepath.Dir(exe), currentPlatform())
}

// resourceDirFor maps the executable directory to the resource directory.
// macOS bundles keep resources in Contents/Resources next to Contents/MacOS.
func resourceDirFor(exeDir string, p Platform) string {
	if p == PlatformDarwin && filepath.Base(exeDir) == "MacOS" {
		return filepath.Join(filepath.Dir(exeDir), "Resources")
	}
	return exeDir
}

// WindowMinimize minimises the main window.
func (a *ShellApp) WindowMinimize() {
	wailsRuntime.WindowMinimise(a.ctx)
}

// WindowMaximize maximises the main window.
func (a *ShellApp) WindowMaximize() {
	wailsRuntime.WindowMaximise(a.ctx)
}

// WindowClose closes the main window, which quits the app.
func (a *ShellApp) WindowClose() {
	wailsRuntime.Quit(a.ctx)
}

// WindowMaximizeToggle restores a maximised window, maximises otherwise.
func (a *ShellApp) WindowMaximizeToggle() {
	if wailsRuntime.WindowIsMaximised(a.ctx) {
		wailsRuntime.WindowUnmaximise(a.ctx)
	} else {
		wailsRuntime.WindowMaximise(a.ctx)
	}
}

// WindowInit returns the initial window state for the custom title bar.
func (a *ShellApp) WindowInit() WindowInfo {
	w, h := wailsRuntime.WindowGetSize(a.ctx)
	return WindowInfo{
		Width:       w,
		Height:      h,
		Minimizable: true,
		Maximizable: true,
		IsMaximized: wailsRuntime.WindowIsMaximised(a.ctx),
		Platform:    goruntime.GOOS,
	}
}

// GetAppVersion returns the shell version.
func (a *ShellApp) GetAppVersion() string {
	return AppVersion
}

// GetBackendStatus reports whether the backend is managed, alive and healthy.
func (a *ShellApp) GetBackendStatus() BackendStatus {
	st := BackendStatus{Mode: a.mode.String(), URL: a.cfg.BackendURL}
	if pid, ok := a.backend.HeldPid(); ok {
		st.Managed = true
		st.Pid = pid
		st.Running = pidRunning(pid)
	}
	st.Healthy = backendHealthCheck(a.cfg.BackendURL, healthProbeTimeout)() == nil
	if st.Healthy && !st.Managed {
		// started by someone else (dev mode)
		st.Running = true
	}
	return st
}

// SetLogLevel changes the log level from the settings page.
func (a *ShellApp) SetLogLevel(level string) {
	SetLogLevel(level)
	a.cfg.LogLevel = GetLogLevel()
	if err := SaveConfig(a.cfg); err != nil {
		Log.Error("failed to save config", "error", err)
	}
}

// OpenLogDir opens the log directory in the system file explorer.
func (a *ShellApp) OpenLogDir() error {
	logDir := LogDir()
	os.MkdirAll(logDir, 0755)
	switch goruntime.GOOS {
	case "windows":
		return exec.Command("explorer", logDir).Start()
	case "darwin":
		return exec.Command("open", logDir).Start()
	case "linux":
		return exec.Command("xdg-open", logDir).Start()
	default:
		return fmt.Errorf("unsupported OS: %s", goruntime.GOOS)
	}
}
