package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/focusquest/internal/progress"
	"github.com/sadopc/focusquest/internal/store"
)

func SessionsToCSV(sessions []store.Session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"ID", "Kind", "Start", "End", "Planned (s)", "Elapsed (s)", "Elapsed", "Completed"}); err != nil {
		return err
	}

	for _, s := range sessions {
		row := []string{
			strconv.FormatInt(s.ID, 10),
			s.Kind,
			s.StartedAt.Local().Format(time.RFC3339),
			s.EndedAt.Local().Format(time.RFC3339),
			strconv.FormatInt(s.PlannedSeconds, 10),
			strconv.FormatInt(s.ElapsedSeconds, 10),
			formatDuration(s.ElapsedSeconds),
			strconv.FormatBool(s.Completed),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// HistoryToCSV writes one row per day, oldest first.
func HistoryToCSV(days []progress.DayCount, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Date", "Sessions"}); err != nil {
		return err
	}
	for _, d := range days {
		if err := w.Write([]string{string(d.Date), strconv.Itoa(d.Count)}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
