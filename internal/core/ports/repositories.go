package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
)

// Lookups return (nil, nil) when nothing matches.

// GuestDetails are the mutable personal fields of a guest.
type GuestDetails struct {
	FirstName  *string
	LastName   *string
	SmUsername *string
	Email      *string
	Location   *string
}

// GuestRepository is the global guest directory, keyed by phone.
type GuestRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Guest, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Guest, error)

	// UpsertByPhone creates the guest or updates its details in place when
	// the phone is already known. It returns the stored guest.
	UpsertByPhone(ctx context.Context, phone string, details GuestDetails) (*domain.Guest, error)

	// ChangePhone moves a guest from oldPhone to newPhone and updates its
	// details. The write only applies while the guest still holds oldPhone.
	// It returns domain.ErrPhoneCollision when newPhone belongs to someone else.
	ChangePhone(ctx context.Context, guestID uuid.UUID, oldPhone, newPhone string, details GuestDetails) error

	AddPhoneHistory(ctx context.Context, h *domain.GuestPhoneHistory) error
	ListPhoneHistory(ctx context.Context, guestID uuid.UUID) ([]*domain.GuestPhoneHistory, error)
}

// EventGuestRepository holds the per-event guest lists.
type EventGuestRepository interface {
	GetByUsername(ctx context.Context, eventID uuid.UUID, username string) (*domain.EventGuest, error)
	GetByUsernameAndPhone(ctx context.Context, eventID uuid.UUID, username, phone string) (*domain.EventGuest, error)

	// FindOtherWithPhone returns an entry of the event that carries phone
	// under a username other than excludeUsername.
	FindOtherWithPhone(ctx context.Context, eventID uuid.UUID, phone, excludeUsername string) (*domain.EventGuest, error)

	UpdatePhone(ctx context.Context, id uuid.UUID, phone string) error

	// MarkSignedPending moves an entry from invited to
	// signed_pending_verification and reports whether it did.
	MarkSignedPending(ctx context.Context, id uuid.UUID) (bool, error)

	// SetStatusByUsername sets the status of the entry matched by event and
	// username. It reports how many rows changed.
	SetStatusByUsername(ctx context.Context, eventID uuid.UUID, username string, status domain.EventGuestStatus) (int64, error)

	// SetStatusByPhone is the same, matched by the phone stored on the entry.
	SetStatusByPhone(ctx context.Context, eventID uuid.UUID, phone string, status domain.EventGuestStatus) (int64, error)
}

// EventRepository is read-only access to the event directory.
type EventRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListIDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
}

// EventAccessRepository is read-only access to crew grants.
type EventAccessRepository interface {
	HasCrewAccess(ctx context.Context, crewUserID, eventID uuid.UUID) (bool, error)
	ListCrewEventIDs(ctx context.Context, crewUserID uuid.UUID) ([]uuid.UUID, error)
}

// KioskSessionRepository stores kiosk sessions. Sessions are immutable apart
// from revocation.
type KioskSessionRepository interface {
	Create(ctx context.Context, s *domain.KioskSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.KioskSession, error)

	// GetActive matches token hash and event, and requires the session to be
	// unrevoked and unexpired at now.
	GetActive(ctx context.Context, tokenHash string, eventID uuid.UUID, now time.Time) (*domain.KioskSession, error)

	// Revoke sets revoked_at if it is still null and reports whether it did.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	ListActiveByEvent(ctx context.Context, eventID uuid.UUID, now time.Time) ([]*domain.KioskSession, error)
}

// SignatureRepository stores NDA signatures.
type SignatureRepository interface {
	// Create returns domain.ErrDuplicateSignature when (event, guest) already
	// has a signature.
	Create(ctx context.Context, sig *domain.NdaSignature) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.NdaSignature, error)
	GetListItem(ctx context.Context, id uuid.UUID) (*domain.SignatureListItem, error)
	ExistsForEventGuest(ctx context.Context, eventID, guestID uuid.UUID) (bool, error)

	// MarkVerified sets verified_at/verified_by only where verified_at is
	// null, and returns the number of rows it changed.
	MarkVerified(ctx context.Context, id, verifiedBy uuid.UUID, at time.Time) (int64, error)

	// SetPDF records the rendered PDF only if none is recorded yet.
	SetPDF(ctx context.Context, id uuid.UUID, path, sha256 string) (int64, error)

	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// ListPending returns unverified signatures, oldest first. A nil eventIDs
	// means every event.
	ListPending(ctx context.Context, eventIDs []uuid.UUID) ([]*domain.SignatureListItem, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.SignatureListItem, error)
}

// AuditSink is append-only.
type AuditSink interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}

// PrivacyTextProvider returns the current platform privacy notice.
type PrivacyTextProvider interface {
	Current(ctx context.Context) (*domain.PrivacyText, error)
}

// TxManager runs fn atomically. Repositories called with the ctx passed to fn
// take part in the transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories bundles one backend's implementations of the persistence ports.
type Repositories struct {
	Guests        GuestRepository
	EventGuests   EventGuestRepository
	Events        EventRepository
	EventAccess   EventAccessRepository
	KioskSessions KioskSessionRepository
	Signatures    SignatureRepository
	Audit         AuditSink
	Privacy       PrivacyTextProvider
	Tx            TxManager
	Identity      StaffIdentityProvider
}
