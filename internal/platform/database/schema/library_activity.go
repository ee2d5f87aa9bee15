package schema

// LibraryActivityTable represents the 'library.activity' table
type LibraryActivityTable struct {
	Table     string
	ID        string
	UserID    string
	SeriesID  string
	ChapterID string
	Action    string
	Metadata  string
	CreatedAt string
}

// LibraryActivity is the schema definition for library.activity
var LibraryActivity = LibraryActivityTable{
	Table:     "library.activity",
	ID:        "id",
	UserID:    "userid",
	SeriesID:  "seriesid",
	ChapterID: "chapterid",
	Action:    "action",
	Metadata:  "metadata",
	CreatedAt: "createdat",
}

func (t LibraryActivityTable) Columns() []string {
	return []string{t.ID, t.UserID, t.SeriesID, t.ChapterID, t.Action, t.Metadata, t.CreatedAt}
}
