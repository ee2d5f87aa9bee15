package schema

// LibraryTrustViolationTable represents the 'library.trustviolation' table
type LibraryTrustViolationTable struct {
	Table         string
	ID            string
	UserID        string
	ViolationType string
	Delta         string
	CreatedAt     string
}

// LibraryTrustViolation is the schema definition for library.trustviolation
var LibraryTrustViolation = LibraryTrustViolationTable{
	Table:         "library.trustviolation",
	ID:            "id",
	UserID:        "userid",
	ViolationType: "violationtype",
	Delta:         "delta",
	CreatedAt:     "createdat",
}

func (t LibraryTrustViolationTable) Columns() []string {
	return []string{t.ID, t.UserID, t.ViolationType, t.Delta, t.CreatedAt}
}
