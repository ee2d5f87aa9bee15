package schema

// LibraryUserAchievementTable represents the 'library.userachievement' table.
// Lifetime unlocks leave SeasonID null; seasonal unlocks carry the quarter
// string so the same achievement can re-unlock each season.
type LibraryUserAchievementTable struct {
	Table         string
	UserID        string
	AchievementID string
	SeasonID      string
	UnlockedAt    string
}

// LibraryUserAchievement is the schema definition for library.userachievement
var LibraryUserAchievement = LibraryUserAchievementTable{
	Table:         "library.userachievement",
	UserID:        "userid",
	AchievementID: "achievementid",
	SeasonID:      "seasonid",
	UnlockedAt:    "unlockedat",
}

func (t LibraryUserAchievementTable) Columns() []string {
	return []string{t.UserID, t.AchievementID, t.SeasonID, t.UnlockedAt}
}
