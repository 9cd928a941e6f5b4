package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// FileConfig represents the TOML configuration file. Unset keys stay nil so
// command-line flags and defaults can fill them.
type FileConfig struct {
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	Timer   TimerConfig   `toml:"timer"`
}

type StorageConfig struct {
	Backend      *string `toml:"backend"`
	ProgressFile *string `toml:"progress_file"`
	Database     *string `toml:"database"`
}

type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

type TimerConfig struct {
	Tick *string `toml:"tick"`
}

// Config is the resolved configuration.
type Config struct {
	Backend      string
	ProgressFile string
	Database     string
	LogLevel     string
	LogFile      string
	Tick         time.Duration
}

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	return Config{
		Backend:      BackendFile,
		ProgressFile: DefaultProgressPath(),
		Database:     DefaultDBPath(),
		LogLevel:     "warn",
		Tick:         time.Second,
	}
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Resolve layers the file values over Defaults and validates the result.
func (f FileConfig) Resolve() (Config, error) {
	cfg := Defaults()
	setString(&cfg.Backend, f.Storage.Backend)
	setString(&cfg.ProgressFile, f.Storage.ProgressFile)
	setString(&cfg.Database, f.Storage.Database)
	setString(&cfg.LogLevel, f.Log.Level)
	setString(&cfg.LogFile, f.Log.File)
	if f.Timer.Tick != nil {
		d, err := time.ParseDuration(*f.Timer.Tick)
		if err != nil {
			return Config{}, fmt.Errorf("invalid timer.tick: %w", err)
		}
		cfg.Tick = d
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Backend)
	}
	if c.Backend == BackendFile && c.ProgressFile == "" {
		return fmt.Errorf("storage.progress_file is empty")
	}
	if c.Database == "" {
		return fmt.Errorf("storage.database is empty")
	}
	if c.Tick < 10*time.Millisecond || c.Tick > time.Minute {
		return fmt.Errorf("timer.tick must be between 10ms and 1m, got %s", c.Tick)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// DefaultTemplate is written by `focusquest config` when no file exists.
func DefaultTemplate() string {
	return `# focusquest configuration

[storage]
# "file" keeps progress in a JSON file, "sqlite" keeps it in the database.
backend = "file"
# progress_file = "~/.local/share/focusquest/progress.json"
# database = "~/.local/share/focusquest/focusquest.db"

[log]
level = "warn"
# Empty logs to stderr. The TUI discards logs unless a file is set.
file = ""

[timer]
tick = "1s"
`
}
