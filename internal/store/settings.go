package store

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrInvalidSetting is returned for unknown keys and out-of-range values.
var ErrInvalidSetting = errors.New("invalid setting")

const (
	KeyWorkMinutes      = "work_minutes"
	KeyBreakMinutes     = "break_minutes"
	KeyLongBreakMinutes = "long_break_minutes"
	KeyLongBreakEvery   = "long_break_every"
	KeyXPPerSession     = "xp_per_session"
	KeyTheme            = "theme"
	KeySoundStart       = "sound_start"
	KeySoundEnd         = "sound_end"
	KeySoundTick        = "sound_tick"
)

var (
	WorkMinuteOptions      = []int{15, 25, 35, 45}
	BreakMinuteOptions     = []int{5, 10, 15}
	LongBreakMinuteOptions = []int{15, 20, 30}
	ThemeOptions           = []string{"light", "dark", "focus"}
)

// ValidateSetting reports whether value is acceptable for key.
func ValidateSetting(key, value string) error {
	switch key {
	case KeyWorkMinutes:
		return oneOf(key, value, WorkMinuteOptions)
	case KeyBreakMinutes:
		return oneOf(key, value, BreakMinuteOptions)
	case KeyLongBreakMinutes:
		return oneOf(key, value, LongBreakMinuteOptions)
	case KeyLongBreakEvery:
		return inRange(key, value, 2, 8)
	case KeyXPPerSession:
		return inRange(key, value, 1, 1000)
	case KeyTheme:
		if !slices.Contains(ThemeOptions, value) {
			return fmt.Errorf("%w: %s must be one of %v, got %q", ErrInvalidSetting, key, ThemeOptions, value)
		}
		return nil
	case KeySoundStart, KeySoundEnd, KeySoundTick:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%w: %s must be true or false, got %q", ErrInvalidSetting, key, value)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
}

func oneOf(key, value string, options []int) error {
	n, err := strconv.Atoi(value)
	if err != nil || !slices.Contains(options, n) {
		return fmt.Errorf("%w: %s must be one of %v, got %q", ErrInvalidSetting, key, options, value)
	}
	return nil
}

func inRange(key, value string, lo, hi int) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < lo || n > hi {
		return fmt.Errorf("%w: %s must be between %d and %d, got %q", ErrInvalidSetting, key, lo, hi, value)
	}
	return nil
}

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	if err := ValidateSetting(key, value); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// Preferences is the typed view of the settings table.
type Preferences struct {
	WorkMinutes      int
	BreakMinutes     int
	LongBreakMinutes int
	LongBreakEvery   int
	XPPerSession     int
	Theme            string
	SoundStart       bool
	SoundEnd         bool
	SoundTick        bool
}

func DefaultPreferences() Preferences {
	return Preferences{
		WorkMinutes:      25,
		BreakMinutes:     5,
		LongBreakMinutes: 15,
		LongBreakEvery:   4,
		XPPerSession:     100,
		Theme:            "dark",
		SoundStart:       true,
		SoundEnd:         true,
	}
}

// Preferences reads every setting. Missing or invalid rows keep their default.
func (s *Store) Preferences() (Preferences, error) {
	p := DefaultPreferences()
	settings, err := s.GetAllSettings()
	if err != nil {
		return p, err
	}
	for _, kv := range settings {
		if ValidateSetting(kv.Key, kv.Value) != nil {
			continue
		}
		switch kv.Key {
		case KeyWorkMinutes:
			p.WorkMinutes, _ = strconv.Atoi(kv.Value)
		case KeyBreakMinutes:
			p.BreakMinutes, _ = strconv.Atoi(kv.Value)
		case KeyLongBreakMinutes:
			p.LongBreakMinutes, _ = strconv.Atoi(kv.Value)
		case KeyLongBreakEvery:
			p.LongBreakEvery, _ = strconv.Atoi(kv.Value)
		case KeyXPPerSession:
			p.XPPerSession, _ = strconv.Atoi(kv.Value)
		case KeyTheme:
			p.Theme = kv.Value
		case KeySoundStart:
			p.SoundStart, _ = strconv.ParseBool(kv.Value)
		case KeySoundEnd:
			p.SoundEnd, _ = strconv.ParseBool(kv.Value)
		case KeySoundTick:
			p.SoundTick, _ = strconv.ParseBool(kv.Value)
		}
	}
	return p, nil
}

func (p Preferences) values() [][2]string {
	return [][2]string{
		{KeyWorkMinutes, strconv.Itoa(p.WorkMinutes)},
		{KeyBreakMinutes, strconv.Itoa(p.BreakMinutes)},
		{KeyLongBreakMinutes, strconv.Itoa(p.LongBreakMinutes)},
		{KeyLongBreakEvery, strconv.Itoa(p.LongBreakEvery)},
		{KeyXPPerSession, strconv.Itoa(p.XPPerSession)},
		{KeyTheme, p.Theme},
		{KeySoundStart, strconv.FormatBool(p.SoundStart)},
		{KeySoundEnd, strconv.FormatBool(p.SoundEnd)},
		{KeySoundTick, strconv.FormatBool(p.SoundTick)},
	}
}

// SavePreferences validates every value first and writes them in one
// transaction, so an invalid value changes nothing.
func (s *Store) SavePreferences(p Preferences) error {
	kvs := p.values()
	for _, kv := range kvs {
		if err := ValidateSetting(kv[0], kv[1]); err != nil {
			return err
		}
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, kv := range kvs {
		if _, err := tx.Exec(
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			kv[0], kv[1],
		); err != nil {
			return fmt.Errorf("save setting %q: %w", kv[0], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsNotFound reports whether err comes from a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
