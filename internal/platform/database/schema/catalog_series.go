package schema

// CatalogSeriesTable represents the 'catalog.series' table
type CatalogSeriesTable struct {
	Table          string
	ID             string
	Title          string
	Type           string
	Status         string
	ContentRating  string
	Tier           string
	TotalFollows   string
	TotalViews     string
	AverageRating  string
	LastChapterAt  string
	LastActivityAt string
	CreatedAt      string
	UpdatedAt      string
	DeletedAt      string
}

// CatalogSeries is the schema definition for catalog.series
var CatalogSeries = CatalogSeriesTable{
	Table:          "catalog.series",
	ID:             "id",
	Title:          "title",
	Type:           "type",
	Status:         "status",
	ContentRating:  "contentrating",
	Tier:           "tier",
	TotalFollows:   "totalfollows",
	TotalViews:     "totalviews",
	AverageRating:  "averagerating",
	LastChapterAt:  "lastchapterat",
	LastActivityAt: "lastactivityat",
	CreatedAt:      "createdat",
	UpdatedAt:      "updatedat",
	DeletedAt:      "deletedat",
}

func (t CatalogSeriesTable) Columns() []string {
	return []string{
		t.ID, t.Title, t.Type, t.Status, t.ContentRating, t.Tier,
		t.TotalFollows, t.TotalViews, t.AverageRating, t.LastChapterAt,
		t.LastActivityAt, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	}
}
