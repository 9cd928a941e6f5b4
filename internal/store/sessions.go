package store

import (
	"fmt"
	"time"
)

// LogSession inserts a session row and returns it with its ID.
func (s *Store) LogSession(sess Session) (*Session, error) {
	if sess.Kind != KindWork && sess.Kind != KindBreak {
		return nil, fmt.Errorf("log session: unknown kind %q", sess.Kind)
	}
	if sess.EndedAt.IsZero() {
		sess.EndedAt = time.Now()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = sess.EndedAt.Add(-time.Duration(sess.ElapsedSeconds) * time.Second)
	}
	res, err := s.db.Exec(
		`INSERT INTO sessions (kind, planned_seconds, elapsed_seconds, completed, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.Kind, sess.PlannedSeconds, sess.ElapsedSeconds, sess.Completed,
		sess.StartedAt.UTC().Format(time.RFC3339), sess.EndedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("log session: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetSession(id)
}

func (s *Store) GetSession(id int64) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, kind, planned_seconds, elapsed_seconds, completed, started_at, ended_at
		 FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return sess, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(r scanner) (*Session, error) {
	sess := &Session{}
	var startedAt, endedAt string
	if err := r.Scan(&sess.ID, &sess.Kind, &sess.PlannedSeconds, &sess.ElapsedSeconds, &sess.Completed, &startedAt, &endedAt); err != nil {
		return nil, err
	}
	sess.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	sess.EndedAt, _ = time.Parse(time.RFC3339, endedAt)
	return sess, nil
}

// ListSessions returns matching sessions, newest first.
func (s *Store) ListSessions(f SessionFilter) ([]Session, error) {
	query := `SELECT id, kind, planned_seconds, elapsed_seconds, completed, started_at, ended_at FROM sessions WHERE 1=1`
	var args []any

	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.CompletedOnly {
		query += ` AND completed = 1`
	}
	if f.From != nil {
		query += ` AND started_at >= ?`
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		query += ` AND started_at < ?`
		args = append(args, f.To.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// DailyTotals aggregates completed work sessions per calendar day in
// [from, to). Days are counted in from's location.
func (s *Store) DailyTotals(from, to time.Time) ([]DailyTotal, error) {
	rows, err := s.db.Query(`
		SELECT started_at, elapsed_seconds
		FROM sessions
		WHERE kind = 'work' AND completed = 1
		  AND started_at >= ? AND started_at < ?
		ORDER BY started_at`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	loc := from.Location()
	var totals []DailyTotal
	for rows.Next() {
		var startedAt string
		var secs int64
		if err := rows.Scan(&startedAt, &secs); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("daily totals: %w", err)
		}
		day := t.In(loc).Format("2006-01-02")
		if n := len(totals); n == 0 || totals[n-1].Date != day {
			totals = append(totals, DailyTotal{Date: day})
		}
		totals[len(totals)-1].Sessions++
		totals[len(totals)-1].FocusSeconds += secs
	}
	return totals, rows.Err()
}

// SessionStats counts completed and abandoned work sessions in [from, to).
func (s *Store) SessionStats(from, to time.Time) (completed, abandoned int, focus int64, err error) {
	err = s.db.QueryRow(`
		SELECT COALESCE(SUM(completed), 0),
		       COALESCE(SUM(1 - completed), 0),
		       COALESCE(SUM(CASE WHEN completed = 1 THEN elapsed_seconds ELSE 0 END), 0)
		FROM sessions
		WHERE kind = 'work'
		  AND started_at >= ? AND started_at < ?`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	).Scan(&completed, &abandoned, &focus)
	if err != nil {
		err = fmt.Errorf("session stats: %w", err)
	}
	return
}
