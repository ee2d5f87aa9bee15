package schema

// CatalogChapterTable represents the 'catalog.chapter' table
type CatalogChapterTable struct {
	Table     string
	ID        string
	SeriesID  string
	Number    string
	Title     string
	CreatedAt string
	UpdatedAt string
}

// CatalogChapter is the schema definition for catalog.chapter
var CatalogChapter = CatalogChapterTable{
	Table:     "catalog.chapter",
	ID:        "id",
	SeriesID:  "seriesid",
	Number:    "number",
	Title:     "title",
	CreatedAt: "createdat",
	UpdatedAt: "updatedat",
}

func (t CatalogChapterTable) Columns() []string {
	return []string{t.ID, t.SeriesID, t.Number, t.Title, t.CreatedAt, t.UpdatedAt}
}
