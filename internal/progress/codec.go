package progress

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed progress.schema.json
var schemaJSON []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile progress schema: %w", err)
	}
	return schema, nil
})

// stateFile is the on-disk shape. It also accepts the legacy keys
// total_completed, daily_completions and badges so old files import without
// a separate migration.
type stateFile struct {
	State
	LegacyTotal  *int           `json:"total_completed,omitempty"`
	LegacyDaily  map[string]int `json:"daily_completions,omitempty"`
	LegacyBadges []string       `json:"badges,omitempty"`
}

// Validate checks data against the embedded progress schema.
func Validate(data []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}

// Decode parses and validates a persisted state, back-filling defaults for
// missing keys and rebuilding the achievement catalog in its fixed order.
func Decode(data []byte) (State, error) {
	if err := Validate(data); err != nil {
		return State{}, err
	}
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return State{}, fmt.Errorf("decode progress: %w", err)
	}

	s := f.State
	s.SchemaVersion = schemaVersion
	if s.DailySessions == nil {
		s.DailySessions = make(map[string]int)
	}
	if len(s.DailySessions) == 0 && len(f.LegacyDaily) > 0 {
		for day, n := range f.LegacyDaily {
			s.DailySessions[day] = n
		}
	}
	if s.TotalCompletedSessions == 0 && f.LegacyTotal != nil {
		s.TotalCompletedSessions = *f.LegacyTotal
	}

	stored := make(map[string]Achievement, len(s.Achievements))
	for _, a := range s.Achievements {
		stored[a.ID] = a
	}
	for _, id := range f.LegacyBadges {
		if _, ok := stored[id]; !ok {
			stored[id] = Achievement{ID: id, Unlocked: true}
		}
	}
	s.Achievements = newCatalog()
	for i := range s.Achievements {
		if old, ok := stored[s.Achievements[i].ID]; ok && old.Unlocked {
			s.Achievements[i].Unlocked = true
			s.Achievements[i].UnlockDate = old.UnlockDate
		}
	}

	// Level is derived from experience; a stored level that disagrees is
	// recomputed.
	s.Experience = min(s.Experience, MaxExperience)
	s.Level = LevelFor(s.Experience)
	if s.LongestStreak < s.CurrentStreak {
		s.LongestStreak = s.CurrentStreak
	}
	return s, nil
}

// Encode renders s in the persisted form.
func Encode(s State) ([]byte, error) {
	s.SchemaVersion = schemaVersion
	if s.DailySessions == nil {
		s.DailySessions = make(map[string]int)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal progress: %w", err)
	}
	return data, nil
}
