package main

// Event name constants for Wails runtime events
const (
	EventBackendReady   = "backend-ready"
	EventBackendUnready = "backend-unready"
	EventBackendFailed  = "backend-failed"
	EventBackendExited  = "backend-exited"
)

// emitEvent pushes an event to the frontend once the runtime is up.
func (a *ShellApp) emitEvent(name string, data ...interface{}) {
	if a.emit != nil {
		a.emit(name, data...)
	}
}
