package schema

// UserLoginAttemptTable represents the 'users.loginattempt' table
type UserLoginAttemptTable struct {
	Table       string
	ID          string
	Email       string
	IP          string
	Success     string
	AttemptedAt string
}

// UserLoginAttempt is the schema definition for users.loginattempt
var UserLoginAttempt = UserLoginAttemptTable{
	Table:       "users.loginattempt",
	ID:          "id",
	Email:       "email",
	IP:          "ip",
	Success:     "success",
	AttemptedAt: "attemptedat",
}

func (t UserLoginAttemptTable) Columns() []string {
	return []string{t.ID, t.Email, t.IP, t.Success, t.AttemptedAt}
}
