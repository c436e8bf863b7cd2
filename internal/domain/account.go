package domain

import "time"

// Account is the credential record for anyone who can sign in: the team
// leader and every roster editor.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
