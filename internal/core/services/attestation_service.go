package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// VerifyResult describes a won attestation.
type VerifyResult struct {
	SignatureID uuid.UUID
	EventID     uuid.UUID
	VerifiedAt  time.Time
	VerifiedBy  uuid.UUID
	// StatusPropagated is false when the guest-list status could not be
	// moved to verified. The attestation itself still stands.
	StatusPropagated bool
}

// AttestationService is the crew-side claim-and-verify state machine.
type AttestationService struct {
	log         zerolog.Logger
	auth        *Authorizer
	tx          ports.TxManager
	signatures  ports.SignatureRepository
	eventGuests ports.EventGuestRepository
	blobs       ports.BlobStorage
	audit       ports.AuditSink
	bus         ports.EventBus
	now         clock
}

// AttestationDeps groups the collaborators of AttestationService.
type AttestationDeps struct {
	Auth        *Authorizer
	Tx          ports.TxManager
	Signatures  ports.SignatureRepository
	EventGuests ports.EventGuestRepository
	Blobs       ports.BlobStorage
	Audit       ports.AuditSink
	Bus         ports.EventBus
}

// NewAttestationService creates the service.
func NewAttestationService(deps AttestationDeps, baseLogger *zerolog.Logger) *AttestationService {
	return &AttestationService{
		log:         baseLogger.With().Str("component", "attestation_service").Logger(),
		auth:        deps.Auth,
		tx:          deps.Tx,
		signatures:  deps.Signatures,
		eventGuests: deps.EventGuests,
		blobs:       deps.Blobs,
		audit:       deps.Audit,
		bus:         deps.Bus,
		now:         systemClock,
	}
}

func (s *AttestationService) loadItem(ctx context.Context, signatureID uuid.UUID) (*domain.SignatureListItem, error) {
	item, err := s.signatures.GetListItem(ctx, signatureID)
	if err != nil {
		return nil, fmt.Errorf("get signature: %w", err)
	}
	if item == nil {
		return nil, domain.ErrSignatureNotFound
	}
	return item, nil
}

// Verify claims the ID check of a pending signature. Exactly one of any
// number of concurrent callers wins; the rest get domain.ErrAlreadyVerified.
func (s *AttestationService) Verify(ctx context.Context, caller *domain.Staff, signatureID uuid.UUID) (*VerifyResult, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	item, err := s.loadItem(ctx, signatureID)
	if err != nil {
		return nil, err
	}
	eventID := item.Signature.EventID
	if _, err := s.auth.AuthorizeEvent(ctx, caller, eventID); err != nil {
		return nil, err
	}

	log := s.log.With().
		Str("signature_id", signatureID.String()).
		Str("event_id", eventID.String()).
		Str("verified_by", caller.UserID.String()).
		Logger()

	at := s.now()
	changed, err := s.signatures.MarkVerified(ctx, signatureID, caller.UserID, at)
	if err != nil {
		return nil, fmt.Errorf("mark signature verified: %w", err)
	}
	if changed == 0 {
		log.Info().Msg("Signature was already verified")
		return nil, domain.ErrAlreadyVerified
	}

	result := &VerifyResult{
		SignatureID: signatureID,
		EventID:     eventID,
		VerifiedAt:  at,
		VerifiedBy:  caller.UserID,
	}

	// The conditional write above is the commit point. Everything below is
	// a side effect that must not undo it.
	rows, err := s.setEntryStatus(ctx, item, domain.StatusVerified)
	switch {
	case err != nil:
		log.Error().Err(err).Str("alert", "status_propagation_failed").Msg("Failed to mark guest-list entry verified")
	case rows == 0:
		log.Error().Str("alert", "status_propagation_failed").Msg("No guest-list entry matched the verified signature")
	default:
		result.StatusPropagated = true
	}

	if err := s.audit.Record(ctx, &domain.AuditEntry{
		ActorUserID: actorID(caller),
		Action:      domain.AuditNdaVerified,
		EntityType:  "nda_signature",
		EntityID:    &result.SignatureID,
		Meta:        map[string]any{"event_id": eventID.String(), "sm_username": item.GuestUsername},
	}); err != nil {
		log.Error().Err(err).Msg("Failed to record verify audit entry")
	}

	if err := s.bus.Publish(ctx, ports.TopicSignatureVerified, ports.SignatureVerifiedEvent{
		SignatureID: signatureID,
		EventID:     eventID,
		Username:    item.GuestUsername,
		VerifiedBy:  caller.UserID,
		VerifiedAt:  at,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to publish signature:verified event")
	}

	log.Info().Msg("Signature verified")
	return result, nil
}

// setEntryStatus updates the guest-list entry behind item. The guest's
// username is global and follows their latest signing, so an entry that no
// longer matches it is found by the phone stored at signing.
func (s *AttestationService) setEntryStatus(ctx context.Context, item *domain.SignatureListItem, status domain.EventGuestStatus) (int64, error) {
	eventID := item.Signature.EventID
	rows, err := s.eventGuests.SetStatusByUsername(ctx, eventID, item.GuestUsername, status)
	if err != nil || rows > 0 || item.GuestPhone == "" {
		return rows, err
	}
	return s.eventGuests.SetStatusByPhone(ctx, eventID, item.GuestPhone, status)
}

// ListPending returns unverified signatures on the events caller may see,
// oldest first.
func (s *AttestationService) ListPending(ctx context.Context, caller *domain.Staff) ([]*domain.SignatureListItem, error) {
	eventIDs, err := s.auth.VisibleEventIDs(ctx, caller)
	if err != nil {
		return nil, err
	}
	if eventIDs != nil && len(eventIDs) == 0 {
		return []*domain.SignatureListItem{}, nil
	}
	items, err := s.signatures.ListPending(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("list pending signatures: %w", err)
	}
	return items, nil
}

// DeleteSignature removes a signature and puts the guest back to invited so
// they can sign again. Only admins and the owning organizer may do this.
func (s *AttestationService) DeleteSignature(ctx context.Context, caller *domain.Staff, signatureID uuid.UUID) error {
	if err := checkCaller(caller); err != nil {
		return err
	}
	item, err := s.loadItem(ctx, signatureID)
	if err != nil {
		return err
	}
	eventID := item.Signature.EventID
	if _, err := s.auth.AuthorizeEventOwner(ctx, caller, eventID); err != nil {
		return err
	}

	log := s.log.With().
		Str("signature_id", signatureID.String()).
		Str("event_id", eventID.String()).
		Str("deleted_by", caller.UserID.String()).
		Logger()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		deleted, err := s.signatures.Delete(ctx, signatureID)
		if err != nil {
			return fmt.Errorf("delete signature: %w", err)
		}
		if !deleted {
			return domain.ErrSignatureNotFound
		}
		if _, err := s.setEntryStatus(ctx, item, domain.StatusInvited); err != nil {
			return fmt.Errorf("reset guest-list status: %w", err)
		}
		return s.audit.Record(ctx, &domain.AuditEntry{
			ActorUserID: actorID(caller),
			Action:      domain.AuditNdaSignatureDeleted,
			EntityType:  "nda_signature",
			EntityID:    &signatureID,
			Meta: map[string]any{
				"event_id":     eventID.String(),
				"sm_username":  item.GuestUsername,
				"was_verified": item.Signature.Verified(),
			},
		})
	})
	if err != nil {
		return err
	}

	bg := context.WithoutCancel(ctx)
	if err := s.blobs.Delete(bg, domain.SignaturesBucket, item.Signature.SignatureStoragePath); err != nil {
		log.Warn().Err(err).Msg("Failed to delete signature image")
	}
	if item.Signature.PDFStoragePath != nil {
		if err := s.blobs.Delete(bg, domain.PDFBucket, *item.Signature.PDFStoragePath); err != nil {
			log.Warn().Err(err).Msg("Failed to delete signature PDF")
		}
	}

	log.Info().Msg("Signature deleted, guest reset to invited")
	return nil
}
