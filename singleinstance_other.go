//go:build !windows

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var errAlreadyRunning = errors.New("sonosano is already running")

// ensureSingleInstance checks that no other shell is running for this user.
// Returns a cleanup function to call on exit.
func ensureSingleInstance() (func(), error) {
	return acquireInstanceLock(filepath.Join(AppDataDir(), appName+".lock"))
}

// acquireInstanceLock claims lockPath for this process. A lock file naming a
// live pid means another shell owns it; a stale or unreadable one is taken over.
func acquireInstanceLock(lockPath string) (func(), error) {
	if data, err := os.ReadFile(lockPath); err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pid, err := strconv.Atoi(pidStr); err == nil && pidRunning(pid) {
			return nil, fmt.Errorf("%w (pid %d)", errAlreadyRunning, pid)
		}
	}

	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return func() {
		os.Remove(lockPath)
	}, nil
}
