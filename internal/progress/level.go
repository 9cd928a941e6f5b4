package progress

import "math"

// Experience is cumulative and never resets on level-up. Advancing from level L
// to L+1 takes LevelRequirement(L) more XP, so level 2 starts at 200 XP,
// level 3 at 700, level 4 at 1500.
const (
	levelBaseXP = 200
	levelStepXP = 300
)

// MaxExperience caps cumulative experience. Grants that would pass it are
// rejected; stored values above it are clamped on load.
const MaxExperience = math.MaxInt32

// maxLevelSpan keeps LevelStart's closed form inside int64.
const maxLevelSpan = 200_000_000

// LevelRequirement returns the XP needed to go from level to level+1. It
// saturates at math.MaxInt.
func LevelRequirement(level int) int {
	if level < 1 {
		level = 1
	}
	if level-1 > (math.MaxInt-levelBaseXP)/levelStepXP {
		return math.MaxInt
	}
	return levelBaseXP + (level-1)*levelStepXP
}

// LevelStart returns the cumulative XP at which level begins. It saturates
// at math.MaxInt.
func LevelStart(level int) int {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	if n > maxLevelSpan {
		return math.MaxInt
	}
	total := n*levelBaseXP + levelStepXP*n*(n-1)/2
	if total > int64(math.MaxInt) {
		return math.MaxInt
	}
	return int(total)
}

// LevelFor returns the level reached with xp cumulative experience.
func LevelFor(xp int) int {
	s := State{Level: 1, Experience: xp}
	s.applyLevels()
	return s.Level
}
