package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/focusquest/internal/progress"
)

// ProgressBlob keeps the serialized progress record in the single-row
// progress table. It satisfies progress.Storage.
type ProgressBlob struct {
	s *Store
}

func (s *Store) ProgressBlob() *ProgressBlob {
	return &ProgressBlob{s: s}
}

func (b *ProgressBlob) Read() ([]byte, error) {
	var data string
	err := b.s.db.QueryRow(`SELECT data FROM progress WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, progress.ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}
	return []byte(data), nil
}

func (b *ProgressBlob) Write(data []byte) error {
	_, err := b.s.db.Exec(
		`INSERT INTO progress (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

var _ progress.Storage = (*ProgressBlob)(nil)
