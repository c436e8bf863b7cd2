package domain

import (
	"strings"
	"time"
)

// Role enumerates access roles for the workflow.
type Role string

const (
	RoleTeamLeader Role = "team-leader"
	RoleEditor     Role = "editor"
)

// Editor is a roster entry: one worker identified primarily by email. The
// roster is static configuration; changes require a redeploy.
type Editor struct {
	Email string
	Name  string
}

// Identity carries the signed-in user as delivered by the identity provider.
type Identity struct {
	Email string
}

// DisplayNameFromEmail derives a legacy display name from the local part of an
// email address ("tarun@mm.com" -> "Tarun"). Kept only for matching records
// created before assignee emails were recorded reliably.
func DisplayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return ""
	}
	return strings.ToUpper(local[:1]) + local[1:]
}

// SessionRole is the cached resolution of an identity to a role.
type SessionRole struct {
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	CachedAt time.Time `json:"cached_at"`
}
