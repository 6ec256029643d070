//go:build windows

package main

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

var errAlreadyRunning = errors.New("sonosano is already running")

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procFindWindow  = user32.NewProc("FindWindowW")
	procSetFGWindow = user32.NewProc("SetForegroundWindow")
	procShowWindow  = user32.NewProc("ShowWindow")
)

// ensureSingleInstance checks that no other shell is running for this user.
// Returns a cleanup function to call on exit. When another instance holds the
// mutex its window is brought to the front.
func ensureSingleInstance() (func(), error) {
	name, err := windows.UTF16PtrFromString("Local\\Sonosano_SingleInstance")
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateMutex(nil, false, name)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		windows.CloseHandle(handle)
		bringExistingWindowToFront()
		return nil, errAlreadyRunning
	}
	if err != nil {
		return nil, err
	}

	return func() {
		windows.CloseHandle(handle)
	}, nil
}

func bringExistingWindowToFront() {
	title, _ := windows.UTF16PtrFromString(windowTitle)
	hwnd, _, _ := procFindWindow.Call(0, uintptr(unsafe.Pointer(title)))
	if hwnd != 0 {
		const SW_RESTORE = 9
		procShowWindow.Call(hwnd, SW_RESTORE)
		procSetFGWindow.Call(hwnd)
	}
}
