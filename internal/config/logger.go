package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	hclog "github.com/hashicorp/go-hclog"
)

// ParseLevel maps a config level name to an hclog level. "off" maps to
// NoLevel and disables logging.
func ParseLevel(name string) (hclog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "off":
		return hclog.NoLevel, nil
	case "":
		return hclog.Warn, nil
	}
	lvl := hclog.LevelFromString(name)
	if lvl == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// NewLogger builds the root logger. Output goes to LogFile when set,
// otherwise to fallback; a nil fallback discards. The returned closer must
// be called on exit.
func (c Config) NewLogger(fallback io.Writer) (hclog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if lvl == hclog.NoLevel {
		return hclog.NewNullLogger(), nopCloser{}, nil
	}
	var out io.Writer = io.Discard
	var closer io.Closer = nopCloser{}
	switch {
	case c.LogFile != "":
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	case fallback != nil:
		out = fallback
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   appName,
		Level:  lvl,
		Output: out,
	})
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
