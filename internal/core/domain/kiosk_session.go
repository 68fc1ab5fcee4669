package domain

import (
	"time"

	"github.com/google/uuid"
)

// KioskSessionTTL is how long a kiosk session stays valid after issuance.
const KioskSessionTTL = 12 * time.Hour

// KioskSession never holds the token itself, only its hash.
type KioskSession struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	CrewUserID uuid.UUID
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time // Nullable
}

// ActiveAt reports whether the session is neither revoked nor expired at t.
func (s *KioskSession) ActiveAt(t time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(t)
}
