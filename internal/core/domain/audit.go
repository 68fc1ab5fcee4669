package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions emitted by the pipeline.
const (
	AuditKioskSessionStarted = "kiosk_session_started"
	AuditKioskSessionRevoked = "kiosk_session_revoked"
	AuditNdaSigned           = "nda_signed"
	AuditGuestPhoneChanged   = "guest_phone_changed"
	AuditNdaVerified         = "nda_verified"
	AuditNdaSignatureDeleted = "nda_signature_deleted"
	AuditPDFGenerated        = "nda_pdf_generated"
)

// AuditEntry is write-only from the pipeline's point of view.
type AuditEntry struct {
	ID          uuid.UUID
	ActorUserID *uuid.UUID // Nullable, kiosk actions have no staff actor
	Action      string
	EntityType  string
	EntityID    *uuid.UUID // Nullable
	Meta        map[string]any
	CreatedAt   time.Time
}
