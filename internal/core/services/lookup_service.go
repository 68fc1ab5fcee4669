package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/core/validation"
)

// Lookup steps as they travel on the wire.
const (
	StepVerifyUsername = "verify_username"
	StepLookupPhone    = "lookup_phone"
)

// LookupRequest is one of VerifyUsernameRequest or LookupPhoneRequest.
type LookupRequest interface {
	Step() string
}

// VerifyUsernameRequest asks only whether a username is on the guest list.
type VerifyUsernameRequest struct {
	Username string
}

func (VerifyUsernameRequest) Step() string { return StepVerifyUsername }

// LookupPhoneRequest correlates a confirmed username with a phone.
type LookupPhoneRequest struct {
	Username string
	Phone    string
}

func (LookupPhoneRequest) Step() string { return StepLookupPhone }

// VerifyUsernameResult discloses list membership and nothing else.
type VerifyUsernameResult struct {
	OnGuestList bool
	Username    string
}

// PrefillSource tells where autofilled fields came from.
type PrefillSource string

const (
	SourcePreviousRegistration PrefillSource = "previous_registration"
	SourceGuestList            PrefillSource = "guestlist"
	SourceNone                 PrefillSource = "none"
)

// Prefill is the phone-gated autofill for the signing form. Personal fields
// are empty unless the phone matched a stored record.
type Prefill struct {
	Username       string
	UsernameLocked bool
	Phone          string
	FirstName      string
	LastName       string
	Email          string
	Location       string
	GuestType      *string
	GuestExists    bool
	Source         PrefillSource
}

// LookupResult holds exactly one of its fields, matching the request step.
type LookupResult struct {
	Verify  *VerifyUsernameResult
	Prefill *Prefill
}

// LookupService is the two-phase guest disclosure protocol. Callers pass a
// session already validated against the event.
type LookupService struct {
	log         zerolog.Logger
	guests      ports.GuestRepository
	eventGuests ports.EventGuestRepository
}

// NewLookupService creates the service.
func NewLookupService(
	guests ports.GuestRepository,
	eventGuests ports.EventGuestRepository,
	baseLogger *zerolog.Logger,
) *LookupService {
	return &LookupService{
		log:         baseLogger.With().Str("component", "lookup_service").Logger(),
		guests:      guests,
		eventGuests: eventGuests,
	}
}

// Lookup dispatches on the request variant.
func (s *LookupService) Lookup(ctx context.Context, session *domain.KioskSession, req LookupRequest) (*LookupResult, error) {
	switch r := req.(type) {
	case VerifyUsernameRequest:
		res, err := s.VerifyUsername(ctx, session, r)
		if err != nil {
			return nil, err
		}
		return &LookupResult{Verify: res}, nil
	case LookupPhoneRequest:
		res, err := s.LookupPhone(ctx, session, r)
		if err != nil {
			return nil, err
		}
		return &LookupResult{Prefill: res}, nil
	default:
		return nil, domain.NewValidationError("step", "unknown lookup step")
	}
}

// VerifyUsername confirms guest-list membership.
func (s *LookupService) VerifyUsername(ctx context.Context, session *domain.KioskSession, req VerifyUsernameRequest) (*VerifyUsernameResult, error) {
	if session == nil {
		return nil, domain.ErrInvalidKioskSession
	}
	if v := validation.ValidateUsername(req.Username); !v.Valid {
		return nil, domain.NewValidationError("sm_username", v.Error)
	}
	username := validation.NormalizeUsername(req.Username)

	entry, err := s.eventGuests.GetByUsername(ctx, session.EventID, username)
	if err != nil {
		return nil, fmt.Errorf("get guest-list entry: %w", err)
	}
	if entry == nil {
		s.log.Debug().Str("event_id", session.EventID.String()).Msg("Username not on guest list")
		return nil, domain.ErrNotOnGuestList
	}

	return &VerifyUsernameResult{OnGuestList: true, Username: username}, nil
}

// LookupPhone returns the autofill for username and phone.
func (s *LookupService) LookupPhone(ctx context.Context, session *domain.KioskSession, req LookupPhoneRequest) (*Prefill, error) {
	if session == nil {
		return nil, domain.ErrInvalidKioskSession
	}
	if req.Username == "" || req.Phone == "" {
		return nil, domain.ErrMissingFields
	}
	if v := validation.ValidateUsername(req.Username); !v.Valid {
		return nil, domain.NewValidationError("sm_username", v.Error)
	}
	pv := validation.ValidatePhone(req.Phone)
	if !pv.Valid {
		return nil, domain.NewValidationError("phone", pv.Error)
	}
	username := validation.NormalizeUsername(req.Username)
	phone := pv.Normalized

	log := s.log.With().
		Str("event_id", session.EventID.String()).
		Str("phone", validation.MaskPhone(phone)).
		Logger()

	other, err := s.eventGuests.FindOtherWithPhone(ctx, session.EventID, phone, username)
	if err != nil {
		return nil, fmt.Errorf("check phone on event: %w", err)
	}
	if other != nil {
		log.Debug().Msg("Phone already on another guest-list entry")
		return nil, domain.ErrPhoneAlreadyUsed
	}

	guest, err := s.guests.GetByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("get guest by phone: %w", err)
	}
	entry, err := s.eventGuests.GetByUsernameAndPhone(ctx, session.EventID, username, phone)
	if err != nil {
		return nil, fmt.Errorf("get guest-list entry by phone: %w", err)
	}

	out := &Prefill{
		Username:       username,
		UsernameLocked: true,
		Phone:          phone,
		GuestExists:    guest != nil,
		Source:         SourceNone,
	}

	switch {
	case guest != nil:
		out.Source = SourcePreviousRegistration
	case entry != nil:
		out.Source = SourceGuestList
	default:
		log.Debug().Msg("Phone matched no record, returning empty prefill")
		return out, nil
	}

	// Guest fields win; the entry fills gaps. Location is only kept on the
	// global guest.
	var fromGuest, fromEntry struct{ first, last, email, location *string }
	if guest != nil {
		fromGuest.first, fromGuest.last, fromGuest.email, fromGuest.location = guest.FirstName, guest.LastName, guest.Email, guest.Location
	}
	if entry != nil {
		fromEntry.first, fromEntry.last, fromEntry.email = entry.FirstName, entry.LastName, entry.Email
		out.GuestType = entry.GuestType
	}
	out.FirstName = firstNonEmpty(fromGuest.first, fromEntry.first)
	out.LastName = firstNonEmpty(fromGuest.last, fromEntry.last)
	out.Email = firstNonEmpty(fromGuest.email, fromEntry.email)
	out.Location = firstNonEmpty(fromGuest.location)

	log.Debug().Str("source", string(out.Source)).Msg("Prefill resolved")
	return out, nil
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}
