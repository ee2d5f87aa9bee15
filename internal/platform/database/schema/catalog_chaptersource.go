package schema

// CatalogChapterSourceTable represents the 'catalog.chaptersource' table
type CatalogChapterSourceTable struct {
	Table           string
	ID              string
	SeriesSourceID  string
	ChapterID       string
	SourceChapterID string
	ChapterURL      string
	IsAvailable     string
	DetectedAt      string
	CreatedAt       string
}

// CatalogChapterSource is the schema definition for catalog.chaptersource
var CatalogChapterSource = CatalogChapterSourceTable{
	Table:           "catalog.chaptersource",
	ID:              "id",
	SeriesSourceID:  "seriessourceid",
	ChapterID:       "chapterid",
	SourceChapterID: "sourcechapterid",
	ChapterURL:      "chapterurl",
	IsAvailable:     "isavailable",
	DetectedAt:      "detectedat",
	CreatedAt:       "createdat",
}

func (t CatalogChapterSourceTable) Columns() []string {
	return []string{
		t.ID, t.SeriesSourceID, t.ChapterID, t.SourceChapterID,
		t.ChapterURL, t.IsAvailable, t.DetectedAt, t.CreatedAt,
	}
}
