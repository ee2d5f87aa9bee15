package schema

// LibraryEntryTable represents the 'library.entry' table
type LibraryEntryTable struct {
	Table                 string
	ID                    string
	UserID                string
	SeriesID              string
	Title                 string
	SourceURL             string
	SourceName            string
	PreferredSourceID     string
	Status                string
	LastReadChapter       string
	MetadataStatus        string
	MetadataSource        string
	LastMetadataAttemptAt string
	SyncStatus            string
	SyncPriority          string
	CreatedAt             string
	UpdatedAt             string
	DeletedAt             string
}

// LibraryEntry is the schema definition for library.entry
var LibraryEntry = LibraryEntryTable{
	Table:                 "library.entry",
	ID:                    "id",
	UserID:                "userid",
	SeriesID:              "seriesid",
	Title:                 "title",
	SourceURL:             "sourceurl",
	SourceName:            "sourcename",
	PreferredSourceID:     "preferredsourceid",
	Status:                "status",
	LastReadChapter:       "lastreadchapter",
	MetadataStatus:        "metadatastatus",
	MetadataSource:        "metadatasource",
	LastMetadataAttemptAt: "lastmetadataattemptat",
	SyncStatus:            "syncstatus",
	SyncPriority:          "syncpriority",
	CreatedAt:             "createdat",
	UpdatedAt:             "updatedat",
	DeletedAt:             "deletedat",
}

func (t LibraryEntryTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.SeriesID, t.Title, t.SourceURL, t.SourceName,
		t.PreferredSourceID, t.Status, t.LastReadChapter, t.MetadataStatus,
		t.MetadataSource, t.LastMetadataAttemptAt, t.SyncStatus,
		t.SyncPriority, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	}
}
