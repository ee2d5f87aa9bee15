// Copyright (c) 2026 MangaTrack. All rights reserved.

package progress

// # Achievements

// Snapshot is the counter state an achievement condition is evaluated
// against, taken after the current call's grants are applied.
type Snapshot struct {
	ChaptersRead    int
	Level           int
	StreakDays      int
	SeasonXP        int64
	SeriesCompleted bool
}

// Achievement is a code-defined unlockable. Unlocks are idempotent: the
// store inserts with ON CONFLICT DO NOTHING and XP is granted only for
// rows actually inserted. Seasonal achievements key on (user,
// achievement, season) and re-unlock each quarter.
type Achievement struct {
	ID       string
	Name     string
	XPReward int
	Seasonal bool
	Unlocked func(s Snapshot) bool
}

// Catalog is the closed achievement set, evaluated inside the progress
// transaction.
var Catalog = []Achievement{
	{
		ID: "first-chapter", Name: "First Steps", XPReward: 10,
		Unlocked: func(s Snapshot) bool { return s.ChaptersRead >= 1 },
	},
	{
		ID: "chapters-100", Name: "Century Reader", XPReward: 25,
		Unlocked: func(s Snapshot) bool { return s.ChaptersRead >= 100 },
	},
	{
		ID: "chapters-1000", Name: "Archivist", XPReward: 100,
		Unlocked: func(s Snapshot) bool { return s.ChaptersRead >= 1000 },
	},
	{
		ID: "streak-7", Name: "One Week Strong", XPReward: 20,
		Unlocked: func(s Snapshot) bool { return s.StreakDays >= 7 },
	},
	{
		ID: "streak-30", Name: "Daily Ritual", XPReward: 75,
		Unlocked: func(s Snapshot) bool { return s.StreakDays >= 30 },
	},
	{
		ID: "first-completion", Name: "Finisher", XPReward: 25,
		Unlocked: func(s Snapshot) bool { return s.SeriesCompleted },
	},
	{
		ID: "level-10", Name: "Double Digits", XPReward: 50,
		Unlocked: func(s Snapshot) bool { return s.Level >= 10 },
	},
	{
		ID: "season-500", Name: "Season Sprinter", XPReward: 30, Seasonal: true,
		Unlocked: func(s Snapshot) bool { return s.SeasonXP >= 500 },
	},
}

// EligibleAchievements filters the catalog down to conditions satisfied
// by s. The store decides which of these are new unlocks.
func EligibleAchievements(s Snapshot) []Achievement {
	var eligible []Achievement
	for _, a := range Catalog {
		if a.Unlocked(s) {
			eligible = append(eligible, a)
		}
	}
	return eligible
}
