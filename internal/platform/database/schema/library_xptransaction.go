package schema

// LibraryXPTransactionTable represents the 'library.xptransaction' table
type LibraryXPTransactionTable struct {
	Table     string
	ID        string
	UserID    string
	Amount    string
	Source    string
	Metadata  string
	CreatedAt string
}

// LibraryXPTransaction is the schema definition for library.xptransaction
var LibraryXPTransaction = LibraryXPTransactionTable{
	Table:     "library.xptransaction",
	ID:        "id",
	UserID:    "userid",
	Amount:    "amount",
	Source:    "source",
	Metadata:  "metadata",
	CreatedAt: "createdat",
}

func (t LibraryXPTransactionTable) Columns() []string {
	return []string{t.ID, t.UserID, t.Amount, t.Source, t.Metadata, t.CreatedAt}
}
