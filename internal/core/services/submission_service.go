package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/core/validation"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// SubmitRequest is what the kiosk sends after the guest signed.
type SubmitRequest struct {
	Username        string
	Phone           string
	FirstName       string
	LastName        string
	Email           string
	Location        string
	Language        domain.Language
	ReadConfirmed   bool
	PrivacyAccepted bool
	SignaturePNG    []byte
}

// SubmitResult reports the stored signature.
type SubmitResult struct {
	SignatureID  uuid.UUID
	GuestID      uuid.UUID
	Status       domain.EventGuestStatus
	PhoneChanged bool
	Message      string
}

var submitMessages = map[domain.Language]string{
	domain.LanguageNo: "Signert, venter på ID-kontroll",
	domain.LanguageEn: "Signed, awaiting ID check",
}

// SubmissionService records a signed NDA with its guest records.
type SubmissionService struct {
	log         zerolog.Logger
	tx          ports.TxManager
	guests      ports.GuestRepository
	eventGuests ports.EventGuestRepository
	events      ports.EventRepository
	signatures  ports.SignatureRepository
	privacy     ports.PrivacyTextProvider
	blobs       ports.BlobStorage
	audit       ports.AuditSink
	bus         ports.EventBus
	now         clock
}

// SubmissionDeps groups the collaborators of SubmissionService.
type SubmissionDeps struct {
	Tx          ports.TxManager
	Guests      ports.GuestRepository
	EventGuests ports.EventGuestRepository
	Events      ports.EventRepository
	Signatures  ports.SignatureRepository
	Privacy     ports.PrivacyTextProvider
	Blobs       ports.BlobStorage
	Audit       ports.AuditSink
	Bus         ports.EventBus
}

// NewSubmissionService creates the service.
func NewSubmissionService(deps SubmissionDeps, baseLogger *zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		log:         baseLogger.With().Str("component", "submission_service").Logger(),
		tx:          deps.Tx,
		guests:      deps.Guests,
		eventGuests: deps.EventGuests,
		events:      deps.Events,
		signatures:  deps.Signatures,
		privacy:     deps.Privacy,
		blobs:       deps.Blobs,
		audit:       deps.Audit,
		bus:         deps.Bus,
		now:         systemClock,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// validate checks the request before anything is read or written and
// returns the normalized username and phone.
func (req *SubmitRequest) validate() (string, string, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Phone) == "" ||
		strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" ||
		len(req.SignaturePNG) == 0 {
		return "", "", domain.ErrMissingFields
	}
	if !req.ReadConfirmed || !req.PrivacyAccepted {
		return "", "", domain.ErrConsentRequired
	}
	if !req.Language.Valid() {
		return "", "", domain.NewValidationError("language", "language must be no or en")
	}

	lang := validation.LangNo
	if req.Language == domain.LanguageEn {
		lang = validation.LangEn
	}
	if v := validation.ValidateUsernameLang(req.Username, lang); !v.Valid {
		return "", "", domain.NewValidationError("sm_username", v.Error)
	}
	pv := validation.ValidatePhoneLang(req.Phone, lang)
	if !pv.Valid {
		return "", "", domain.NewValidationError("phone", pv.Error)
	}
	if !bytes.HasPrefix(req.SignaturePNG, pngMagic) {
		return "", "", domain.NewValidationError("signature_png_base64", "signature must be a PNG image")
	}
	return validation.NormalizeUsername(req.Username), pv.Normalized, nil
}

// Submit records the signature for the session's event. Either everything
// is stored or nothing is.
func (s *SubmissionService) Submit(ctx context.Context, session *domain.KioskSession, req SubmitRequest) (*SubmitResult, error) {
	if session == nil {
		return nil, domain.ErrInvalidKioskSession
	}
	username, phone, err := req.validate()
	if err != nil {
		return nil, err
	}

	eventID := session.EventID
	log := s.log.With().
		Str("event_id", eventID.String()).
		Str("kiosk_session_id", session.ID.String()).
		Logger()

	entry, err := s.eventGuests.GetByUsername(ctx, eventID, username)
	if err != nil {
		return nil, fmt.Errorf("get guest-list entry: %w", err)
	}
	if entry == nil {
		return nil, domain.ErrNotOnGuestList
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}

	privacy, err := s.privacy.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("get privacy text: %w", err)
	}

	details := ports.GuestDetails{
		FirstName:  optional(req.FirstName),
		LastName:   optional(req.LastName),
		SmUsername: &username,
		Email:      optional(req.Email),
		Location:   optional(req.Location),
	}

	var (
		result       *SubmitResult
		uploadedPath string
		sig          *domain.NdaSignature
	)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		guest, phoneChanged, err := s.resolveGuest(ctx, entry, phone, details)
		if err != nil {
			return err
		}

		exists, err := s.signatures.ExistsForEventGuest(ctx, eventID, guest.ID)
		if err != nil {
			return fmt.Errorf("check existing signature: %w", err)
		}
		if exists {
			return domain.ErrDuplicateSignature
		}

		signedAt := s.now()
		path := fmt.Sprintf("%s/%s_%d.png", eventID, guest.ID, signedAt.UnixMilli())
		if err := s.blobs.Put(ctx, domain.SignaturesBucket, path, req.SignaturePNG, "image/png"); err != nil {
			return fmt.Errorf("store signature image: %w", err)
		}
		uploadedPath = path

		sig = &domain.NdaSignature{
			ID:                   uuid.New(),
			EventID:              eventID,
			GuestID:              guest.ID,
			Language:             req.Language,
			NDATextSnapshot:      event.NDAText(req.Language),
			ReadConfirmed:        true,
			PrivacyAccepted:      true,
			PrivacyTextSnapshot:  privacy.Text(req.Language),
			PrivacyVersion:       privacy.Version,
			SignedAt:             signedAt,
			SignatureStoragePath: path,
		}
		if err := s.signatures.Create(ctx, sig); err != nil {
			return fmt.Errorf("insert signature: %w", err)
		}

		advanced, err := s.eventGuests.MarkSignedPending(ctx, entry.ID)
		if err != nil {
			return fmt.Errorf("advance guest-list status: %w", err)
		}
		if !advanced {
			// The entry was already signed under a different phone.
			return domain.ErrDuplicateSignature
		}

		if err := s.audit.Record(ctx, &domain.AuditEntry{
			Action:     domain.AuditNdaSigned,
			EntityType: "nda_signature",
			EntityID:   &sig.ID,
			Meta: map[string]any{
				"event_id": eventID.String(),
				"guest_id": guest.ID.String(),
				"language": string(req.Language),
			},
		}); err != nil {
			return fmt.Errorf("record audit entry: %w", err)
		}

		result = &SubmitResult{
			SignatureID:  sig.ID,
			GuestID:      guest.ID,
			Status:       domain.StatusSignedPendingVerification,
			PhoneChanged: phoneChanged,
			Message:      submitMessages[req.Language],
		}
		return nil
	})
	if err != nil {
		if uploadedPath != "" {
			if delErr := s.blobs.Delete(context.WithoutCancel(ctx), domain.SignaturesBucket, uploadedPath); delErr != nil {
				log.Warn().Err(delErr).Str("path", uploadedPath).Msg("Failed to remove orphaned signature image")
			}
		}
		if errors.Is(err, domain.ErrDuplicateSignature) {
			log.Info().Msg("Rejected duplicate signature")
		} else if !domain.IsValidation(err) && !domain.IsConflict(err) {
			log.Error().Err(err).Msg("Signature submission failed")
		}
		return nil, err
	}

	log.Info().Str("signature_id", result.SignatureID.String()).Bool("phone_changed", result.PhoneChanged).Msg("NDA signed")

	if err := s.bus.Publish(ctx, ports.TopicSignaturePending, ports.SignaturePendingEvent{
		SignatureID: sig.ID,
		EventID:     eventID,
		EventName:   event.Name,
		GuestName:   strings.TrimSpace(req.FirstName + " " + req.LastName),
		Username:    username,
		GuestType:   entry.GuestType,
		SignedAt:    sig.SignedAt,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to publish signature:pending event")
	}

	return result, nil
}

// resolveGuest applies the phone-change branch or the plain upsert and
// returns the guest the signature belongs to.
func (s *SubmissionService) resolveGuest(ctx context.Context, entry *domain.EventGuest, phone string, details ports.GuestDetails) (*domain.Guest, bool, error) {
	onFile := ""
	if entry.Phone != nil {
		onFile = *entry.Phone
	}

	if onFile == "" || onFile == phone {
		guest, err := s.guests.UpsertByPhone(ctx, phone, details)
		if err != nil {
			return nil, false, fmt.Errorf("upsert guest: %w", err)
		}
		if onFile == "" {
			if err := s.eventGuests.UpdatePhone(ctx, entry.ID, phone); err != nil {
				return nil, false, fmt.Errorf("fill guest-list phone: %w", err)
			}
		}
		return guest, false, nil
	}

	holder, err := s.guests.GetByPhone(ctx, phone)
	if err != nil {
		return nil, false, fmt.Errorf("get guest by new phone: %w", err)
	}
	if holder != nil {
		return nil, false, domain.ErrPhoneCollision
	}

	previous, err := s.guests.GetByPhone(ctx, onFile)
	if err != nil {
		return nil, false, fmt.Errorf("get guest by old phone: %w", err)
	}

	var guest *domain.Guest
	if previous == nil {
		// Nobody registered under the old number yet.
		guest, err = s.guests.UpsertByPhone(ctx, phone, details)
		if err != nil {
			return nil, false, fmt.Errorf("create guest: %w", err)
		}
	} else {
		if err := s.guests.ChangePhone(ctx, previous.ID, onFile, phone, details); err != nil {
			return nil, false, fmt.Errorf("change guest phone: %w", err)
		}
		if err := s.guests.AddPhoneHistory(ctx, &domain.GuestPhoneHistory{
			ID:         uuid.New(),
			GuestID:    previous.ID,
			OldPhone:   onFile,
			NewPhone:   phone,
			ChangedAt:  s.now(),
			ChangedVia: domain.PhoneChangeViaKiosk,
		}); err != nil {
			return nil, false, fmt.Errorf("record phone history: %w", err)
		}
		if err := s.audit.Record(ctx, &domain.AuditEntry{
			Action:     domain.AuditGuestPhoneChanged,
			EntityType: "guest",
			EntityID:   &previous.ID,
			Meta: map[string]any{
				"event_id":  entry.EventID.String(),
				"old_phone": validation.MaskPhone(onFile),
				"new_phone": validation.MaskPhone(phone),
				"via":       string(domain.PhoneChangeViaKiosk),
			},
		}); err != nil {
			return nil, false, fmt.Errorf("record audit entry: %w", err)
		}
		guest, err = s.guests.GetByID(ctx, previous.ID)
		if err != nil {
			return nil, false, fmt.Errorf("reload guest: %w", err)
		}
		if guest == nil {
			return nil, false, fmt.Errorf("guest %s vanished during phone change", previous.ID)
		}
	}

	if err := s.eventGuests.UpdatePhone(ctx, entry.ID, phone); err != nil {
		return nil, false, fmt.Errorf("update guest-list phone: %w", err)
	}
	return guest, true, nil
}
