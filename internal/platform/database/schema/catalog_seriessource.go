package schema

// CatalogSeriesSourceTable represents the 'catalog.seriessource' table
type CatalogSeriesSourceTable struct {
	Table               string
	ID                  string
	SeriesID            string
	SourceName          string
	ExternalID          string
	SourceURL           string
	SourceStatus        string
	IsPrimaryCover      string
	LastSuccessAt       string
	NextCheckAt         string
	ConsecutiveFailures string
	CreatedAt           string
	UpdatedAt           string
}

// CatalogSeriesSource is the schema definition for catalog.seriessource
var CatalogSeriesSource = CatalogSeriesSourceTable{
	Table:               "catalog.seriessource",
	ID:                  "id",
	SeriesID:            "seriesid",
	SourceName:          "sourcename",
	ExternalID:          "externalid",
	SourceURL:           "sourceurl",
	SourceStatus:        "sourcestatus",
	IsPrimaryCover:      "isprimarycover",
	LastSuccessAt:       "lastsuccessat",
	NextCheckAt:         "nextcheckat",
	ConsecutiveFailures: "consecutivefailures",
	CreatedAt:           "createdat",
	UpdatedAt:           "updatedat",
}

func (t CatalogSeriesSourceTable) Columns() []string {
	return []string{
		t.ID, t.SeriesID, t.SourceName, t.ExternalID, t.SourceURL,
		t.SourceStatus, t.IsPrimaryCover, t.LastSuccessAt, t.NextCheckAt,
		t.ConsecutiveFailures, t.CreatedAt, t.UpdatedAt,
	}
}
