package domain

import "github.com/google/uuid"

// Role is a staff member's role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleCrew      Role = "crew"
)

// Valid reports whether r is one of the known staff roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleCrew:
		return true
	}
	return false
}

// Staff is the authenticated caller of every staff-facing operation.
type Staff struct {
	UserID     uuid.UUID
	Role       Role
	Username   string
	FullName   *string // Nullable
	TelegramID *int64  // Nullable, set when linked to the crew bot
}
