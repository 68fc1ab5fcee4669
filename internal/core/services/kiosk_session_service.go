package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/shared/token"
)

// IssuedKioskSession carries the plaintext token. It is returned once and
// cannot be recovered afterwards.
type IssuedKioskSession struct {
	SessionID uuid.UUID
	EventID   uuid.UUID
	EventName string
	Token     string
	ExpiresAt time.Time
}

// KioskSessionService turns a staff login into a bearer credential scoped to
// one event.
type KioskSessionService struct {
	log      zerolog.Logger
	auth     *Authorizer
	sessions ports.KioskSessionRepository
	audit    ports.AuditSink
	ttl      time.Duration
	now      clock
}

// NewKioskSessionService creates the service. A non-positive ttl falls back
// to domain.KioskSessionTTL.
func NewKioskSessionService(
	auth *Authorizer,
	sessions ports.KioskSessionRepository,
	audit ports.AuditSink,
	ttl time.Duration,
	baseLogger *zerolog.Logger,
) *KioskSessionService {
	if ttl <= 0 {
		ttl = domain.KioskSessionTTL
	}
	return &KioskSessionService{
		log:      baseLogger.With().Str("component", "kiosk_session_service").Logger(),
		auth:     auth,
		sessions: sessions,
		audit:    audit,
		ttl:      ttl,
		now:      systemClock,
	}
}

// Issue mints a kiosk token for eventID.
func (s *KioskSessionService) Issue(ctx context.Context, caller *domain.Staff, eventID uuid.UUID) (*IssuedKioskSession, error) {
	event, err := s.auth.AuthorizeEvent(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}

	plain, err := token.Generate()
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	ks := &domain.KioskSession{
		ID:         uuid.New(),
		EventID:    event.ID,
		CrewUserID: caller.UserID,
		TokenHash:  token.Hash(plain),
		ExpiresAt:  issuedAt.Add(s.ttl),
		CreatedAt:  issuedAt,
	}
	if err := s.sessions.Create(ctx, ks); err != nil {
		return nil, fmt.Errorf("create kiosk session: %w", err)
	}

	log := s.log.With().
		Str("session_id", ks.ID.String()).
		Str("event_id", event.ID.String()).
		Str("issued_by", caller.UserID.String()).
		Logger()

	if err := s.audit.Record(ctx, &domain.AuditEntry{
		ActorUserID: actorID(caller),
		Action:      domain.AuditKioskSessionStarted,
		EntityType:  "kiosk_session",
		EntityID:    &ks.ID,
		Meta:        map[string]any{"event_id": event.ID.String(), "event_name": event.Name},
	}); err != nil {
		log.Error().Err(err).Msg("Failed to record kiosk session audit entry")
	}

	log.Info().Time("expires_at", ks.ExpiresAt).Msg("Kiosk session issued")

	return &IssuedKioskSession{
		SessionID: ks.ID,
		EventID:   event.ID,
		EventName: event.Name,
		Token:     plain,
		ExpiresAt: ks.ExpiresAt,
	}, nil
}

// Validate resolves a presented token for eventID. Every kind of mismatch
// returns domain.ErrInvalidKioskSession.
func (s *KioskSessionService) Validate(ctx context.Context, presented string, eventID uuid.UUID) (*domain.KioskSession, error) {
	if presented == "" || eventID == uuid.Nil {
		return nil, domain.ErrInvalidKioskSession
	}

	ks, err := s.sessions.GetActive(ctx, token.Hash(presented), eventID, s.now())
	if err != nil {
		return nil, fmt.Errorf("look up kiosk session: %w", err)
	}
	if ks == nil {
		return nil, domain.ErrInvalidKioskSession
	}
	return ks, nil
}

// Revoke ends a session. Revoking an already revoked session succeeds.
func (s *KioskSessionService) Revoke(ctx context.Context, caller *domain.Staff, sessionID uuid.UUID) error {
	if err := checkCaller(caller); err != nil {
		return err
	}

	ks, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get kiosk session: %w", err)
	}
	if ks == nil {
		return domain.ErrKioskSessionNotFound
	}

	if _, err := s.auth.AuthorizeEvent(ctx, caller, ks.EventID); err != nil {
		return err
	}

	changed, err := s.sessions.Revoke(ctx, sessionID, s.now())
	if err != nil {
		return fmt.Errorf("revoke kiosk session: %w", err)
	}
	if !changed {
		return nil
	}

	if err := s.audit.Record(ctx, &domain.AuditEntry{
		ActorUserID: actorID(caller),
		Action:      domain.AuditKioskSessionRevoked,
		EntityType:  "kiosk_session",
		EntityID:    &ks.ID,
		Meta:        map[string]any{"event_id": ks.EventID.String()},
	}); err != nil {
		s.log.Error().Err(err).Str("session_id", ks.ID.String()).Msg("Failed to record revoke audit entry")
	}

	s.log.Info().Str("session_id", ks.ID.String()).Str("revoked_by", caller.UserID.String()).Msg("Kiosk session revoked")
	return nil
}

// ListActive returns the event's unrevoked, unexpired sessions, newest first.
func (s *KioskSessionService) ListActive(ctx context.Context, caller *domain.Staff, eventID uuid.UUID) ([]*domain.KioskSession, error) {
	if _, err := s.auth.AuthorizeEvent(ctx, caller, eventID); err != nil {
		return nil, err
	}
	list, err := s.sessions.ListActiveByEvent(ctx, eventID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list kiosk sessions: %w", err)
	}
	return list, nil
}
