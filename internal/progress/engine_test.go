package progress

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var d0 = time.Date(2026, time.October, 12, 9, 30, 0, 0, time.UTC) // a Monday

func day(n int) time.Time { return d0.AddDate(0, 0, n) }

func newTestEngine(t *testing.T) (*Engine, *MemoryStorage) {
	t.Helper()
	st := &MemoryStorage{}
	e := NewEngine(st)
	e.Load()
	return e, st
}

func mustRecord(t *testing.T, e *Engine, xp int, at time.Time) CompletionResult {
	t.Helper()
	res, err := e.RecordCompletion(xp, at, 25*time.Minute)
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}
	return res
}

func unlockedIDs(as []Achievement) []string {
	var ids []string
	for _, a := range as {
		ids = append(ids, a.ID)
	}
	return ids
}

// ============================================================
// Load
// ============================================================

func TestLoadDefaults(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.State()

	if s.Level != 1 || s.Experience != 0 || s.TotalCompletedSessions != 0 {
		t.Fatalf("unexpected default state: %+v", s)
	}
	if len(s.Achievements) != len(catalog) {
		t.Fatalf("expected %d achievements, got %d", len(catalog), len(s.Achievements))
	}
	for _, a := range s.Achievements {
		if a.Unlocked {
			t.Fatalf("achievement %s unlocked by default", a.ID)
		}
	}
	if !s.LastCompletionDate.IsZero() {
		t.Fatalf("expected no last completion date, got %q", s.LastCompletionDate)
	}
}

func TestLoadCorruptFallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", "{not json"},
		{"negative sessions", `{"total_completed_sessions": -3}`},
		{"zero level", `{"level": 0}`},
		{"bad daily key", `{"daily_sessions": {"yesterday": 2}}`},
		{"wrong type", `{"experience": "lots"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &MemoryStorage{}
			if err := st.Write([]byte(tt.data)); err != nil {
				t.Fatal(err)
			}
			s := NewEngine(st).Load()
			if s.Level != 1 || s.TotalCompletedSessions != 0 || len(s.Achievements) != len(catalog) {
				t.Fatalf("expected default state, got %+v", s)
			}
		})
	}
}

func TestLoadBackfillsMissingKeys(t *testing.T) {
	st := &MemoryStorage{}
	st.Write([]byte(`{"experience": 750, "total_completed_sessions": 1, "daily_sessions": {"2026-10-12": 1}}`))

	s := NewEngine(st).Load()
	if s.Level != 3 {
		t.Fatalf("level = %d, want 3 for 750 XP", s.Level)
	}
	if len(s.Achievements) != len(catalog) {
		t.Fatalf("catalog not back-filled: %d entries", len(s.Achievements))
	}
	if s.SchemaVersion != schemaVersion {
		t.Fatalf("schema version = %d", s.SchemaVersion)
	}
}

func TestLoadLegacyFile(t *testing.T) {
	legacy := `{
  "level": 2,
  "experience": 300,
  "total_completed": 3,
  "current_streak": 2,
  "longest_streak": 2,
  "last_completion_date": "2026-10-13",
  "badges": ["first_completion"],
  "completion_history": [{"date": "2026-10-13", "count": 2}],
  "daily_completions": {"2026-10-12": 1, "2026-10-13": 2}
}`
	st := &MemoryStorage{}
	st.Write([]byte(legacy))
	s := NewEngine(st).Load()

	if s.TotalCompletedSessions != 3 {
		t.Fatalf("total = %d, want 3", s.TotalCompletedSessions)
	}
	if s.DailySessions["2026-10-13"] != 2 {
		t.Fatalf("daily sessions not imported: %v", s.DailySessions)
	}
	if !s.Achievements[0].Unlocked || s.Achievements[0].ID != "first_completion" {
		t.Fatalf("legacy badge not imported: %+v", s.Achievements[0])
	}
}

func TestLoadDropsUnknownAchievements(t *testing.T) {
	st := &MemoryStorage{}
	st.Write([]byte(`{"achievements": [{"id": "retired_badge", "unlocked": true}, {"id": "level_ten", "unlocked": true, "unlock_date": "2026-01-02"}]}`))
	s := NewEngine(st).Load()

	for _, a := range s.Achievements {
		if a.ID == "retired_badge" {
			t.Fatal("unknown achievement kept")
		}
		if a.ID == "level_ten" && (!a.Unlocked || a.UnlockDate != "2026-01-02") {
			t.Fatalf("level_ten unlock lost: %+v", a)
		}
	}
}

// ============================================================
// RecordCompletion
// ============================================================

func TestFirstCompletion(t *testing.T) {
	e, _ := newTestEngine(t)
	res := mustRecord(t, e, 100, d0)

	if res.DidLevelUp || res.PreviousLevel != 1 || res.NewLevel != 1 {
		t.Fatalf("unexpected level change: %+v", res)
	}
	if res.XPGained != 100 || res.Experience != 100 {
		t.Fatalf("xp = %d/%d, want 100/100", res.XPGained, res.Experience)
	}
	if res.CurrentStreak != 1 {
		t.Fatalf("streak = %d, want 1", res.CurrentStreak)
	}
	if got := unlockedIDs(res.NewlyUnlocked); !reflect.DeepEqual(got, []string{"first_completion"}) {
		t.Fatalf("newly unlocked = %v", got)
	}
	if res.NewlyUnlocked[0].UnlockDate != DateOf(d0) {
		t.Fatalf("unlock date = %q", res.NewlyUnlocked[0].UnlockDate)
	}

	res = mustRecord(t, e, 100, day(1))
	s := e.State()
	if res.CurrentStreak != 2 || s.TotalCompletedSessions != 2 {
		t.Fatalf("streak/total = %d/%d, want 2/2", res.CurrentStreak, s.TotalCompletedSessions)
	}
	if len(res.NewlyUnlocked) != 0 {
		t.Fatalf("first_completion unlocked twice: %v", unlockedIDs(res.NewlyUnlocked))
	}
	if !res.DidLevelUp || res.NewLevel != 2 {
		t.Fatalf("200 XP should reach level 2: %+v", res)
	}
}

func TestTotalsAndFocus(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.RecordCompletion(10, d0, 25*time.Minute+30*time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := e.RecordCompletion(10, d0, 45*time.Minute); err != nil {
		t.Fatal(err)
	}
	s := e.State()
	if s.TotalFocusSeconds != 1530+2700 {
		t.Fatalf("focus seconds = %d", s.TotalFocusSeconds)
	}
}

func TestConsecutiveDaysStreak(t *testing.T) {
	e, _ := newTestEngine(t)
	prevLongest := 0
	for i := 0; i < 10; i++ {
		res := mustRecord(t, e, 50, day(i))
		s := e.State()
		if res.CurrentStreak != i+1 || s.CurrentStreak != i+1 {
			t.Fatalf("day %d: streak = %d, want %d", i, res.CurrentStreak, i+1)
		}
		if s.LongestStreak < prevLongest || s.LongestStreak < s.CurrentStreak {
			t.Fatalf("day %d: longest streak %d invalid (prev %d, current %d)", i, s.LongestStreak, prevLongest, s.CurrentStreak)
		}
		prevLongest = s.LongestStreak
	}
}

func TestStreakGapResets(t *testing.T) {
	e, _ := newTestEngine(t)
	mustRecord(t, e, 10, day(0))
	mustRecord(t, e, 10, day(1))
	mustRecord(t, e, 10, day(2))

	res := mustRecord(t, e, 10, day(4))
	if res.CurrentStreak != 1 {
		t.Fatalf("streak after gap = %d, want 1", res.CurrentStreak)
	}
	if s := e.State(); s.LongestStreak != 3 {
		t.Fatalf("longest streak = %d, want 3", s.LongestStreak)
	}
}

func TestSameDayCompletions(t *testing.T) {
	e, _ := newTestEngine(t)
	mustRecord(t, e, 10, day(0))
	before := e.State()

	mustRecord(t, e, 10, day(0).Add(time.Hour))
	mustRecord(t, e, 10, day(0).Add(2*time.Hour))
	after := e.State()

	if after.CurrentStreak != before.CurrentStreak {
		t.Fatalf("streak changed on same day: %d -> %d", before.CurrentStreak, after.CurrentStreak)
	}
	key := string(DateOf(d0))
	if after.DailySessions[key]-before.DailySessions[key] != 2 {
		t.Fatalf("daily sessions = %d, want +2", after.DailySessions[key])
	}
	if after.TotalCompletedSessions-before.TotalCompletedSessions != 2 {
		t.Fatalf("total sessions = %d, want +2", after.TotalCompletedSessions)
	}
}

func TestOutOfOrderCompletionRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	mustRecord(t, e, 100, day(3))
	before := e.State()

	_, err := e.RecordCompletion(100, day(1), 25*time.Minute)
	if !errors.Is(err, ErrOutOfOrderCompletion) {
		t.Fatalf("expected ErrOutOfOrderCompletion, got %v", err)
	}
	if after := e.State(); !reflect.DeepEqual(before, after) {
		t.Fatalf("state mutated by rejected completion:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestInvalidCompletionRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.RecordCompletion(-1, d0, time.Minute); !errors.Is(err, ErrInvalidCompletion) {
		t.Fatalf("negative xp: got %v", err)
	}
	if _, err := e.RecordCompletion(1, d0, -time.Minute); !errors.Is(err, ErrInvalidCompletion) {
		t.Fatalf("negative focus: got %v", err)
	}
	if s := e.State(); s.TotalCompletedSessions != 0 {
		t.Fatal("invalid completion mutated state")
	}
}

func TestTotalMatchesDailySum(t *testing.T) {
	e, _ := newTestEngine(t)
	for _, offset := range []int{0, 0, 1, 3, 3, 3, 7, 20} {
		mustRecord(t, e, 25, day(offset))
	}
	s := e.State()
	sum := 0
	for _, n := range s.DailySessions {
		sum += n
	}
	if sum != s.TotalCompletedSessions {
		t.Fatalf("daily sum %d != total %d", sum, s.TotalCompletedSessions)
	}
}

func TestFiveDayExample(t *testing.T) {
	e, _ := newTestEngine(t)
	var unlocked []string
	for i := 0; i < 5; i++ {
		res := mustRecord(t, e, 100, day(i))
		ids := unlockedIDs(res.NewlyUnlocked)
		if i == 2 && !contains(ids, "three_day_streak") {
			t.Fatalf("three_day_streak should unlock on day 3, got %v", ids)
		}
		unlocked = append(unlocked, ids...)
	}
	for _, want := range []string{"first_completion", "five_completions", "three_day_streak"} {
		if !contains(unlocked, want) {
			t.Fatalf("%s not unlocked, got %v", want, unlocked)
		}
	}
	s := e.State()
	if s.Experience != 500 || s.Level != LevelFor(500) || s.Level != 3 {
		t.Fatalf("xp/level = %d/%d, want 500/3", s.Experience, s.Level)
	}
}

func TestAchievementsNeverRelock(t *testing.T) {
	e, _ := newTestEngine(t)
	for i := 0; i < 3; i++ {
		mustRecord(t, e, 10, day(i))
	}
	mustRecord(t, e, 10, day(10)) // streak broken, three_day_streak stays

	for _, a := range e.Achievements() {
		if a.ID == "three_day_streak" {
			if !a.Unlocked || a.UnlockDate != DateOf(day(2)) {
				t.Fatalf("three_day_streak = %+v", a)
			}
			return
		}
	}
	t.Fatal("three_day_streak missing from catalog")
}

func TestLevelAchievementsFromLargeGrant(t *testing.T) {
	e, _ := newTestEngine(t)
	res := mustRecord(t, e, LevelStart(10), d0)
	if res.NewLevel != 10 {
		t.Fatalf("level = %d, want 10", res.NewLevel)
	}
	ids := unlockedIDs(res.NewlyUnlocked)
	want := []string{"first_completion", "level_five", "level_ten"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("unlocked = %v, want %v (catalog order)", ids, want)
	}
}

func TestWriteFailureKeepsInMemoryUpdate(t *testing.T) {
	e, st := newTestEngine(t)
	st.WriteErr = errors.New("disk full")

	res, err := e.RecordCompletion(100, d0, 25*time.Minute)
	var serr *StorageError
	if !errors.As(err, &serr) || serr.Op != "write" {
		t.Fatalf("expected write StorageError, got %v", err)
	}
	if res.NewLevel != 1 || res.CurrentStreak != 1 {
		t.Fatalf("result should still be populated: %+v", res)
	}
	if s := e.State(); s.TotalCompletedSessions != 1 {
		t.Fatal("in-memory update lost after write failure")
	}

	st.WriteErr = nil
	mustRecord(t, e, 100, d0)
	reloaded := NewEngine(st).Load()
	if reloaded.TotalCompletedSessions != 2 {
		t.Fatalf("retry did not persist full state: total = %d", reloaded.TotalCompletedSessions)
	}
}

// ============================================================
// Persistence
// ============================================================

func TestRoundTripFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "progress.json")
	e := NewEngine(NewFileStorage(path))
	e.Load()
	for _, offset := range []int{0, 1, 2, 2, 5} {
		mustRecord(t, e, 150, day(offset))
	}
	want := e.State()

	got := NewEngine(NewFileStorage(path)).Load()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestFileStorageMissing(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "none.json"))
	if _, err := fs.Read(); !errors.Is(err, ErrNoState) {
		t.Fatalf("expected ErrNoState, got %v", err)
	}
}

func TestPersistedFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	e := NewEngine(NewFileStorage(path))
	mustRecord(t, e, 100, d0)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{
		`"total_completed_sessions": 1`,
		`"last_completion_date": "2026-10-12"`,
		`"daily_sessions"`,
		`"achievements"`,
		`"unlock_date": null`,
	} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("persisted file missing %s:\n%s", key, raw)
		}
	}
	if err := Validate(raw); err != nil {
		t.Fatalf("persisted file fails its own schema: %v", err)
	}
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := writeFileAtomic(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := writeFileAtomic(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "two" {
		t.Fatalf("content = %q", raw)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// ============================================================
// Experience cap
// ============================================================

func TestOversizedGrantRejected(t *testing.T) {
	e, st := newTestEngine(t)
	mustRecord(t, e, 100, d0)
	before := e.State()
	stored, _ := st.Read()

	for _, xp := range []int{math.MaxInt, MaxExperience} {
		_, err := e.RecordCompletion(xp, d0, 25*time.Minute)
		if !errors.Is(err, ErrInvalidCompletion) {
			t.Fatalf("xp %d: expected ErrInvalidCompletion, got %v", xp, err)
		}
		if !reflect.DeepEqual(e.State(), before) {
			t.Fatalf("xp %d: state changed by rejected grant", xp)
		}
	}
	if after, _ := st.Read(); string(after) != string(stored) {
		t.Fatal("rejected grant rewrote storage")
	}
	if got := NewEngine(st).Load(); !reflect.DeepEqual(got, before) {
		t.Fatalf("reload after rejected grant:\nwant %+v\ngot  %+v", before, got)
	}
}

func TestGrantUpToCapRoundTrips(t *testing.T) {
	e, st := newTestEngine(t)
	mustRecord(t, e, 100, d0)

	res := mustRecord(t, e, MaxExperience-100, day(1))
	if res.Experience != MaxExperience || res.NewLevel != LevelFor(MaxExperience) {
		t.Fatalf("unexpected result at cap: %+v", res)
	}
	if _, err := e.RecordCompletion(1, day(1), time.Minute); !errors.Is(err, ErrInvalidCompletion) {
		t.Fatalf("grant past the cap: expected ErrInvalidCompletion, got %v", err)
	}
	if _, err := e.RecordCompletion(0, day(1), time.Minute); err != nil {
		t.Fatalf("zero grant at the cap should still count the session: %v", err)
	}

	want := e.State()
	got := NewEngine(st).Load()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("reload at cap:\nwant %+v\ngot  %+v", want, got)
	}
	if got.TotalCompletedSessions != 3 {
		t.Fatalf("total = %d, want 3", got.TotalCompletedSessions)
	}
}

func TestLoadNormalizesLevelAndExperience(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantXP    int
		wantLevel int
	}{
		{"level above experience", `{"level": 5, "experience": 0}`, 0, 1},
		{"level below experience", `{"level": 1, "experience": 1500}`, 1500, 4},
		{"experience past cap", `{"experience": 9223372036854775807}`, MaxExperience, LevelFor(MaxExperience)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &MemoryStorage{}
			st.Write([]byte(tt.data))
			e := NewEngine(st)
			s := e.Load()
			if s.Experience != tt.wantXP || s.Level != tt.wantLevel {
				t.Fatalf("xp/level = %d/%d, want %d/%d", s.Experience, s.Level, tt.wantXP, tt.wantLevel)
			}
			sum := e.Summary(d0)
			if sum.XPIntoLevel < 0 || sum.XPToNextLevel > sum.LevelRequirement {
				t.Fatalf("inconsistent summary: %+v", sum)
			}
		})
	}
}
