package domain

import (
	"time"

	"github.com/google/uuid"
)

// NdaSignature is at most one per (event, guest).
type NdaSignature struct {
	ID                   uuid.UUID
	EventID              uuid.UUID
	GuestID              uuid.UUID
	Language             Language
	NDATextSnapshot      string
	ReadConfirmed        bool
	PrivacyAccepted      bool
	PrivacyTextSnapshot  string
	PrivacyVersion       int
	SignedAt             time.Time
	SignatureStoragePath string
	PDFStoragePath       *string    // Nullable, set on first PDF generation
	PDFSHA256            *string    // Nullable
	VerifiedAt           *time.Time // Nullable, set exactly once
	VerifiedBy           *uuid.UUID // Nullable
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Verified reports whether the signature has been attested.
func (s *NdaSignature) Verified() bool {
	return s.VerifiedAt != nil
}

// SignatureListItem is a signature joined with the guest and event fields the
// staff screens show.
type SignatureListItem struct {
	Signature      NdaSignature
	EventName      string
	GuestFirstName string
	GuestLastName  string
	GuestUsername  string
	GuestPhone     string
}

// SignaturesBucket and PDFBucket are the blob buckets the pipeline uses.
const (
	SignaturesBucket = "signatures"
	PDFBucket        = "pdfs"
)
