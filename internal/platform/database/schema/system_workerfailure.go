package schema

// SystemWorkerFailureTable represents the 'system.workerfailure' table.
// Rows are append-only and written on terminal job failure only.
type SystemWorkerFailureTable struct {
	Table        string
	ID           string
	QueueName    string
	JobID        string
	ErrorMessage string
	AttemptsMade string
	Payload      string
	FailedAt     string
}

// SystemWorkerFailure is the schema definition for system.workerfailure
var SystemWorkerFailure = SystemWorkerFailureTable{
	Table:        "system.workerfailure",
	ID:           "id",
	QueueName:    "queuename",
	JobID:        "jobid",
	ErrorMessage: "errormessage",
	AttemptsMade: "attemptsmade",
	Payload:      "payload",
	FailedAt:     "failedat",
}

func (t SystemWorkerFailureTable) Columns() []string {
	return []string{
		t.ID, t.QueueName, t.JobID, t.ErrorMessage,
		t.AttemptsMade, t.Payload, t.FailedAt,
	}
}
