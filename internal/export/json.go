package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/focusquest/internal/store"
)

type jsonExport struct {
	ExportedAt string        `json:"exported_at"`
	Count      int           `json:"count"`
	Sessions   []jsonSession `json:"sessions"`
}

type jsonSession struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at"`
	PlannedSec int64  `json:"planned_seconds"`
	ElapsedSec int64  `json:"elapsed_seconds"`
	Elapsed    string `json:"elapsed"`
	Completed  bool   `json:"completed"`
}

func SessionsToJSON(sessions []store.Session, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(sessions),
		Sessions:   []jsonSession{},
	}

	for _, s := range sessions {
		export.Sessions = append(export.Sessions, jsonSession{
			ID:         s.ID,
			Kind:       s.Kind,
			StartedAt:  s.StartedAt.Local().Format(time.RFC3339),
			EndedAt:    s.EndedAt.Local().Format(time.RFC3339),
			PlannedSec: s.PlannedSeconds,
			ElapsedSec: s.ElapsedSeconds,
			Elapsed:    formatDuration(s.ElapsedSeconds),
			Completed:  s.Completed,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
