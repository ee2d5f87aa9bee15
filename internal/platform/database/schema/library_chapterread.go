package schema

// LibraryChapterReadTable represents the 'library.chapterread' table.
// It is the authoritative (v2) read-state ledger; rows are LWW by UpdatedAt.
type LibraryChapterReadTable struct {
	Table     string
	UserID    string
	ChapterID string
	IsRead    string
	UpdatedAt string
}

// LibraryChapterRead is the schema definition for library.chapterread
var LibraryChapterRead = LibraryChapterReadTable{
	Table:     "library.chapterread",
	UserID:    "userid",
	ChapterID: "chapterid",
	IsRead:    "isread",
	UpdatedAt: "updatedat",
}

func (t LibraryChapterReadTable) Columns() []string {
	return []string{t.UserID, t.ChapterID, t.IsRead, t.UpdatedAt}
}
