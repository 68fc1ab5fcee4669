package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

type kioskSessionRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.KioskSessionRepository = (*kioskSessionRepository)(nil)

// NewKioskSessionRepository creates the kiosk session repository.
func NewKioskSessionRepository(db *DB, baseLogger *zerolog.Logger) ports.KioskSessionRepository {
	return &kioskSessionRepository{
		db:  db,
		log: baseLogger.With().Str("component", "kiosk_session_repo").Logger(),
	}
}

const kioskSessionQueryCols = `id, event_id, crew_user_id, token_hash, expires_at, created_at, revoked_at`

func scanKioskSession(row pgx.Row) (*domain.KioskSession, error) {
	var s domain.KioskSession
	err := row.Scan(&s.ID, &s.EventID, &s.CrewUserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt, &s.RevokedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *kioskSessionRepository) Create(ctx context.Context, s *domain.KioskSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.db.q(ctx).QueryRow(ctx, `
		INSERT INTO kiosk_sessions (id, event_id, crew_user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.EventID, s.CrewUserID, s.TokenHash, s.ExpiresAt).Scan(&s.CreatedAt)
	if err != nil {
		r.log.Error().Err(err).Str("event_id", s.EventID.String()).Msg("Failed to insert kiosk session")
	}
	return err
}

func (r *kioskSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.KioskSession, error) {
	s, err := scanKioskSession(r.db.q(ctx).QueryRow(ctx,
		`SELECT `+kioskSessionQueryCols+` FROM kiosk_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *kioskSessionRepository) GetActive(ctx context.Context, tokenHash string, eventID uuid.UUID, now time.Time) (*domain.KioskSession, error) {
	s, err := scanKioskSession(r.db.q(ctx).QueryRow(ctx, `
		SELECT `+kioskSessionQueryCols+` FROM kiosk_sessions
		WHERE token_hash = $1 AND event_id = $2 AND revoked_at IS NULL AND expires_at > $3
	`, tokenHash, eventID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to look up kiosk session")
	}
	return s, err
}

func (r *kioskSessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE kiosk_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		r.log.Error().Err(err).Str("session_id", id.String()).Msg("Failed to revoke kiosk session")
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *kioskSessionRepository) ListActiveByEvent(ctx context.Context, eventID uuid.UUID, now time.Time) ([]*domain.KioskSession, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+kioskSessionQueryCols+` FROM kiosk_sessions
		WHERE event_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
	`, eventID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.KioskSession
	for rows.Next() {
		s, err := scanKioskSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
