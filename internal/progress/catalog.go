package progress

// rule pairs a catalog entry with its unlock predicate.
type rule struct {
	id          string
	name        string
	description string
	met         func(*State) bool
}

func sessionsAtLeast(n int) func(*State) bool {
	return func(s *State) bool { return s.TotalCompletedSessions >= n }
}

func streakAtLeast(n int) func(*State) bool {
	return func(s *State) bool { return s.CurrentStreak >= n }
}

func levelAtLeast(n int) func(*State) bool {
	return func(s *State) bool { return s.Level >= n }
}

// catalog is evaluated in this order. IDs are persisted; keep them stable.
var catalog = []rule{
	{"first_completion", "First Focus", "Complete your first pomodoro", sessionsAtLeast(1)},
	{"five_completions", "Warming Up", "Complete 5 pomodoros", sessionsAtLeast(5)},
	{"ten_completions", "Getting Serious", "Complete 10 pomodoros", sessionsAtLeast(10)},
	{"twenty_five_completions", "Quarter Century", "Complete 25 pomodoros", sessionsAtLeast(25)},
	{"fifty_completions", "Half Hundred", "Complete 50 pomodoros", sessionsAtLeast(50)},
	{"hundred_completions", "Centurion", "Complete 100 pomodoros", sessionsAtLeast(100)},
	{"three_day_streak", "Three in a Row", "Complete a pomodoro 3 days in a row", streakAtLeast(3)},
	{"week_streak", "Full Week", "Complete a pomodoro 7 days in a row", streakAtLeast(7)},
	{"two_week_streak", "Fortnight", "Complete a pomodoro 14 days in a row", streakAtLeast(14)},
	{"month_streak", "Unbroken Month", "Complete a pomodoro 30 days in a row", streakAtLeast(30)},
	{"level_five", "Level 5", "Reach level 5", levelAtLeast(5)},
	{"level_ten", "Level 10", "Reach level 10", levelAtLeast(10)},
	{"level_twenty", "Level 20", "Reach level 20", levelAtLeast(20)},
}

var ruleByID = func() map[string]rule {
	m := make(map[string]rule, len(catalog))
	for _, r := range catalog {
		m[r.id] = r
	}
	return m
}()

func newCatalog() []Achievement {
	out := make([]Achievement, len(catalog))
	for i, r := range catalog {
		out[i] = Achievement{ID: r.id, Name: r.name, Description: r.description}
	}
	return out
}
