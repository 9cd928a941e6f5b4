// Package main provides the CLI entrypoint for focusquest.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/sadopc/focusquest/internal/config"
	"github.com/sadopc/focusquest/internal/progress"
	"github.com/sadopc/focusquest/internal/store"
	"github.com/sadopc/focusquest/internal/tui"
)

var (
	configPath   string
	backend      string
	progressFile string
	dbPath       string
	logLevel     string
	logFile      string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logErrln(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "focusquest",
		Short:         "Pomodoro timer with levels, streaks and achievements",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runTUICmd,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", config.DefaultConfigPath(), "config file")
	flags.StringVar(&backend, "backend", config.BackendFile, "progress backend (file or sqlite)")
	flags.StringVar(&progressFile, "progress-file", config.DefaultProgressPath(), "progress JSON file (file backend)")
	flags.StringVar(&dbPath, "db", config.DefaultDBPath(), "sqlite database")
	flags.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")
	flags.StringVar(&logFile, "log-file", "", "append logs to this file")

	rootCmd.AddCommand(
		newRunCmd(),
		newStatsCmd(),
		newWeekCmd(),
		newBadgesCmd(),
		newCompleteCmd(),
		newExportCmd(),
		newConfigCmd(),
		newSettingsCmd(),
	)
	return rootCmd
}

func runTUICmd(cmd *cobra.Command, _ []string) error {
	// Logs would corrupt the alt screen, so they go to the log file or nowhere.
	env, err := openEnv(cmd, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	app := tui.NewApp(env.store, env.engine, tui.Options{Logger: env.logger.Named("tui")})
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

// env holds what every command needs: resolved config, the root logger,
// the sqlite store and a loaded progress engine.
type env struct {
	cfg    config.Config
	logger hclog.Logger
	store  *store.Store
	engine *progress.Engine

	logCloser io.Closer
}

func openEnv(cmd *cobra.Command, logOut io.Writer) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, closer, err := cfg.NewLogger(logOut)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Database)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	var storage progress.Storage
	switch cfg.Backend {
	case config.BackendSQLite:
		storage = st.ProgressBlob()
	default:
		storage = progress.NewFileStorage(cfg.ProgressFile)
	}
	engine := progress.NewEngine(storage, progress.WithLogger(logger.Named("progress")))
	engine.Load()

	logger.Debug("environment ready", "backend", cfg.Backend, "database", cfg.Database)
	return &env{cfg: cfg, logger: logger, store: st, engine: engine, logCloser: closer}, nil
}

func (e *env) Close() error {
	return errors.Join(e.store.Close(), e.logCloser.Close())
}

// loadConfig resolves the config file and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := fileCfg.Resolve()
	if err != nil {
		return config.Config{}, fmt.Errorf("%s: %w", configPath, err)
	}
	applyStringFlag(cmd, "backend", &cfg.Backend, backend)
	applyStringFlag(cmd, "progress-file", &cfg.ProgressFile, progressFile)
	applyStringFlag(cmd, "db", &cfg.Database, dbPath)
	applyStringFlag(cmd, "log-level", &cfg.LogLevel, logLevel)
	applyStringFlag(cmd, "log-file", &cfg.LogFile, logFile)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyStringFlag(cmd *cobra.Command, name string, target *string, value string) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func applyIntFlag(cmd *cobra.Command, name string, target *int, value int) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
