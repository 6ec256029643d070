package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

const windowTitle = appDisplayName

// launchOptions are one-run overrides of the config file.
type launchOptions struct {
	logLevel    string
	resourceDir string
	devBackend  bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts launchOptions

	rootCmd := &cobra.Command{
		Use:          "sonosano",
		Short:        "Sonosano desktop music client",
		Version:      AppVersion,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := LoadConfig()
			opts.apply(cmd, cfg)
			return runShell(cfg)
		},
	}
	opts.bind(rootCmd.Flags())

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sonosano %s (%s)\n", AppVersion, AppChannel())
		},
	})

	return rootCmd
}

func (o *launchOptions) bind(flags *pflag.FlagSet) {
	flags.StringVar(&o.logLevel, "log-level", "", "log level: error, info or debug")
	flags.StringVar(&o.resourceDir, "resource-dir", "", "directory holding backend/ and ui/ (default: next to the executable)")
	flags.BoolVar(&o.devBackend, "dev-backend", false, "do not spawn the bundled backend")
}

// apply copies the flags the user actually set onto cfg.
func (o *launchOptions) apply(cmd *cobra.Command, cfg *AppConfig) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("resource-dir") {
		cfg.ResourceDir = o.resourceDir
	}
	if flags.Changed("dev-backend") {
		cfg.DevBackend = o.devBackend
	}
}

func runShell(cfg *AppConfig) error {
	logFile, err := InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file unavailable, logging to stderr: %v\n", err)
	} else {
		defer logFile.Close()
	}

	release, err := ensureSingleInstance()
	if errors.Is(err, errAlreadyRunning) {
		fmt.Println(err)
		return nil
	}
	if err != nil {
		Log.Error("single instance check failed", "error", err)
	} else {
		defer release()
	}

	app := NewShellApp(cfg)
	Log.Info("starting shell", "version", AppVersion, "resourceDir", cfg.ResourceDir, "devBackend", cfg.DevBackend)

	err = wails.Run(&options.App{
		Title:     windowTitle,
		Width:     cfg.WindowWidth,
		Height:    cfg.WindowHeight,
		MinWidth:  900,
		MinHeight: 600,
		Frameless: true,
		AssetServer: &assetserver.Options{
			Assets: os.DirFS(filepath.Join(resolveResourceDir(cfg.ResourceDir), "ui")),
		},
		OnStartup:     app.startup,
		OnDomReady:    app.onDomReady,
		OnBeforeClose: app.beforeClose,
		OnShutdown:    app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	// backstop for a runtime that failed before running its own hooks
	app.backend.TerminateOnShutdown()
	if err != nil {
		Log.Error("wails run failed", "error", err)
		return fmt.Errorf("run shell: %w", err)
	}
	return nil
}
