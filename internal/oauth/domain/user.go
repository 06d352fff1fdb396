package domain

import "time"

// User is the minimal resource-owner record backing the password grant and
// the default login collaborator. Hosts with their own identity layer never
// touch this table.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
