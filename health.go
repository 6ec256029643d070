package main

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/heptiolabs/healthcheck"
	"github.com/shirou/gopsutil/v3/process"
)

// BackendStatus is reported to the frontend by GetBackendStatus.
type BackendStatus struct {
	Mode    string `json:"mode"`
	Managed bool   `json:"managed"` // the shell spawned and still holds the backend
	Pid     int    `json:"pid,omitempty"`
	Running bool   `json:"running"`
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
}

const healthProbeTimeout = 2 * time.Second

// backendHealthCheck probes GET <baseURL>/health.
func backendHealthCheck(baseURL string, timeout time.Duration) healthcheck.Check {
	return healthcheck.HTTPGetCheck(strings.TrimRight(baseURL, "/")+"/health", timeout)
}

// pidRunning reports whether a process with pid exists.
func pidRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// waitBackendReady retries check with exponential backoff until it passes,
// maxWait elapses, or ctx is cancelled.
func waitBackendReady(ctx context.Context, check healthcheck.Check, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxWait

	return backoff.Retry(func() error { return check() }, backoff.WithContext(b, ctx))
}
