package schema

// LibraryImportJobTable represents the 'library.importjob' table
type LibraryImportJobTable struct {
	Table        string
	ID           string
	UserID       string
	Status       string
	Payload      string
	TotalEntries string
	Imported     string
	Skipped      string
	Failed       string
	Error        string
	CreatedAt    string
	UpdatedAt    string
}

// LibraryImportJob is the schema definition for library.importjob
var LibraryImportJob = LibraryImportJobTable{
	Table:        "library.importjob",
	ID:           "id",
	UserID:       "userid",
	Status:       "status",
	Payload:      "payload",
	TotalEntries: "totalentries",
	Imported:     "imported",
	Skipped:      "skipped",
	Failed:       "failed",
	Error:        "error",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
}

func (t LibraryImportJobTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.Status, t.Payload, t.TotalEntries,
		t.Imported, t.Skipped, t.Failed, t.Error, t.CreatedAt, t.UpdatedAt,
	}
}
