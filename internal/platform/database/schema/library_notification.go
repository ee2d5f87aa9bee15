package schema

// LibraryNotificationTable represents the 'library.notification' table
type LibraryNotificationTable struct {
	Table     string
	ID        string
	UserID    string
	SeriesID  string
	ChapterID string
	IsRead    string
	CreatedAt string
}

// LibraryNotification is the schema definition for library.notification
var LibraryNotification = LibraryNotificationTable{
	Table:     "library.notification",
	ID:        "id",
	UserID:    "userid",
	SeriesID:  "seriesid",
	ChapterID: "chapterid",
	IsRead:    "isread",
	CreatedAt: "createdat",
}

func (t LibraryNotificationTable) Columns() []string {
	return []string{t.ID, t.UserID, t.SeriesID, t.ChapterID, t.IsRead, t.CreatedAt}
}
