package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AppConfig holds all persistent shell settings.
type AppConfig struct {
	LogLevel     string `json:"logLevel"`
	WindowWidth  int    `json:"windowWidth"`
	WindowHeight int    `json:"windowHeight"`
	BackendURL   string `json:"backendUrl"`
	ResourceDir  string `json:"resourceDir,omitempty"` // empty = next to the executable
	DevBackend   bool   `json:"devBackend"`            // never spawn, even in production builds

	BackendReadyTimeoutSec int `json:"backendReadyTimeoutSec"`
}

const (
	defaultBackendURL          = "http://127.0.0.1:8000"
	defaultWindowWidth         = 1280
	defaultWindowHeight        = 800
	defaultBackendReadyTimeout = 30
)

// BackendReadyTimeout is how long the shell waits for /health after spawning.
func (c *AppConfig) BackendReadyTimeout() time.Duration {
	return time.Duration(c.BackendReadyTimeoutSec) * time.Second
}

var (
	appDataDir     string
	appDataDirOnce sync.Once
)

// DefaultConfig returns config with default values.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		LogLevel:               "error",
		WindowWidth:            defaultWindowWidth,
		WindowHeight:           defaultWindowHeight,
		BackendURL:             defaultBackendURL,
		BackendReadyTimeoutSec: defaultBackendReadyTimeout,
	}
}

// AppDataDir returns the path to ~/.sonosano/, creating it if needed. When
// the home directory is unusable it falls back to a directory under the
// system temp dir.
func AppDataDir() string {
	appDataDirOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err == nil {
			appDataDir, err = appDataDirIn(home)
		}
		if err != nil {
			fallback := filepath.Join(os.TempDir(), appName)
			Log.Error("data dir unavailable, using temp dir", "error", err, "fallback", fallback)
			if err := os.MkdirAll(fallback, 0755); err != nil {
				Log.Error("cannot create fallback data dir", "error", err)
			}
			appDataDir = fallback
		}
	})
	return appDataDir
}

// appDataDirIn creates and returns <home>/.sonosano.
func appDataDirIn(home string) (string, error) {
	dir := filepath.Join(home, "."+appName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}

// DataPath returns the full path for a file inside the data directory.
func DataPath(elem ...string) string {
	parts := append([]string{AppDataDir()}, elem...)
	return filepath.Join(parts...)
}

func configPath() string {
	return DataPath("config.json")
}

// LoadConfig reads config from ~/.sonosano/config.json.
// Returns default config if file doesn't exist.
func LoadConfig() *AppConfig {
	return loadConfigFrom(configPath())
}

func loadConfigFrom(path string) *AppConfig {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config file unreadable, using defaults: %v\n", err)
		return DefaultConfig()
	}
	cfg.normalize()
	return cfg
}

// normalize replaces invalid values with defaults.
func (c *AppConfig) normalize() {
	if c.WindowWidth <= 0 {
		c.WindowWidth = defaultWindowWidth
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = defaultWindowHeight
	}
	if c.BackendURL == "" {
		c.BackendURL = defaultBackendURL
	}
	if c.BackendReadyTimeoutSec <= 0 {
		c.BackendReadyTimeoutSec = defaultBackendReadyTimeout
	}
}

// SaveConfig writes the config to ~/.sonosano/config.json.
func SaveConfig(cfg *AppConfig) error {
	return saveConfigTo(configPath(), cfg)
}

func saveConfigTo(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
