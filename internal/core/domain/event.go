package domain

import (
	"time"

	"github.com/google/uuid"
)

// Language is the language an NDA is displayed and signed in.
type Language string

const (
	LanguageNo Language = "no"
	LanguageEn Language = "en"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguageNo || l == LanguageEn
}

// Event is read-only from the pipeline's point of view.
type Event struct {
	ID        uuid.UUID
	Name      string
	EventDate time.Time
	EndDate   time.Time
	NDATextNo string
	NDATextEn string
	CreatedBy *uuid.UUID // Nullable, owning organizer
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NDAText returns the NDA text in the given language. Anything other than
// Norwegian gets the English text.
func (e *Event) NDAText(lang Language) string {
	if lang == LanguageNo {
		return e.NDATextNo
	}
	return e.NDATextEn
}

// OwnedBy reports whether the event was created by userID.
func (e *Event) OwnedBy(userID uuid.UUID) bool {
	return e.CreatedBy != nil && *e.CreatedBy == userID
}

// PrivacyText is the platform privacy notice as of one version.
type PrivacyText struct {
	TextNo  string
	TextEn  string
	Version int
}

// Text returns the privacy text in the given language.
func (p *PrivacyText) Text(lang Language) string {
	if lang == LanguageNo {
		return p.TextNo
	}
	return p.TextEn
}
