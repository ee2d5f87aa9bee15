package schema

// SystemAuditLogTable represents the 'system.auditlog' table
type SystemAuditLogTable struct {
	Table     string
	ID        string
	Event     string
	Status    string
	UserID    string
	IP        string
	UserAgent string
	Metadata  string
	CreatedAt string
}

var SystemAuditLog = SystemAuditLogTable{
	Table:     "system.auditlog",
	ID:        "id",
	Event:     "event",
	Status:    "status",
	UserID:    "userid",
	IP:        "ip",
	UserAgent: "useragent",
	Metadata:  "metadata",
	CreatedAt: "createdat",
}

func (t SystemAuditLogTable) Columns() []string {
	return []string{t.ID, t.Event, t.Status, t.UserID, t.IP, t.UserAgent, t.Metadata, t.CreatedAt}
}
