package domain

import (
	"time"

	"github.com/google/uuid"
)

// Guest is the global directory entry of a person. Phone is the uniqueness key.
type Guest struct {
	ID         uuid.UUID
	Phone      string
	FirstName  *string // Nullable
	LastName   *string // Nullable
	SmUsername *string // Nullable
	Email      *string // Nullable, encrypted at rest when a key is configured
	Location   *string // Nullable, encrypted at rest when a key is configured
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PhoneChangeVia records which surface changed a guest's phone.
type PhoneChangeVia string

const (
	PhoneChangeViaKiosk PhoneChangeVia = "kiosk"
	PhoneChangeViaAdmin PhoneChangeVia = "admin"
)

// GuestPhoneHistory is append-only.
type GuestPhoneHistory struct {
	ID         uuid.UUID
	GuestID    uuid.UUID
	OldPhone   string
	NewPhone   string
	ChangedAt  time.Time
	ChangedVia PhoneChangeVia
}

// EventGuestStatus is the per-event pipeline status of a guest.
type EventGuestStatus string

const (
	StatusInvited                   EventGuestStatus = "invited"
	StatusSignedPendingVerification EventGuestStatus = "signed_pending_verification"
	StatusVerified                  EventGuestStatus = "verified"
)

// EventGuest is one guest-list entry, unique per (event, username).
type EventGuest struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	SmUsername string
	FirstName  *string // Nullable
	LastName   *string // Nullable
	Phone      *string // Nullable
	Email      *string // Nullable
	GuestType  *string // Nullable, category tag
	Status     EventGuestStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
