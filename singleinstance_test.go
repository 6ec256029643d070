//go:build !windows

package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireInstanceLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "sonosano.lock")

	release, err := acquireInstanceLock(lockPath)
	require.NoError(t, err)

	_, err = acquireInstanceLock(lockPath)
	assert.ErrorIs(t, err, errAlreadyRunning)

	release()
	release, err = acquireInstanceLock(lockPath)
	require.NoError(t, err)
	release()
}

func TestAcquireInstanceLockTakesOverStaleLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "sonosano.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("not-a-pid"), 0644))

	release, err := acquireInstanceLock(lockPath)
	require.NoError(t, err)
	defer release()

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}
