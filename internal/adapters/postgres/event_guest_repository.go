package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

type eventGuestRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.EventGuestRepository = (*eventGuestRepository)(nil)

// NewEventGuestRepository creates the per-event guest list repository.
func NewEventGuestRepository(db *DB, baseLogger *zerolog.Logger) ports.EventGuestRepository {
	return &eventGuestRepository{
		db:  db,
		log: baseLogger.With().Str("component", "event_guest_repo").Logger(),
	}
}

const eventGuestQueryCols = `
	id, event_id, sm_username, first_name, last_name, phone, email, guest_type,
	status, created_at, updated_at
`

func (r *eventGuestRepository) getOne(ctx context.Context, where string, args ...any) (*domain.EventGuest, error) {
	var eg domain.EventGuest
	err := r.db.q(ctx).QueryRow(ctx, `SELECT `+eventGuestQueryCols+` FROM event_guests WHERE `+where+` LIMIT 1`, args...).Scan(
		&eg.ID,
		&eg.EventID,
		&eg.SmUsername,
		&eg.FirstName,
		&eg.LastName,
		&eg.Phone,
		&eg.Email,
		&eg.GuestType,
		&eg.Status,
		&eg.CreatedAt,
		&eg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error().Err(err).Msg("Failed to scan event guest row")
		return nil, err
	}
	return &eg, nil
}

func (r *eventGuestRepository) GetByUsername(ctx context.Context, eventID uuid.UUID, username string) (*domain.EventGuest, error) {
	return r.getOne(ctx, `event_id = $1 AND sm_username = $2`, eventID, username)
}

func (r *eventGuestRepository) GetByUsernameAndPhone(ctx context.Context, eventID uuid.UUID, username, phone string) (*domain.EventGuest, error) {
	return r.getOne(ctx, `event_id = $1 AND sm_username = $2 AND phone = $3`, eventID, username, phone)
}

func (r *eventGuestRepository) FindOtherWithPhone(ctx context.Context, eventID uuid.UUID, phone, excludeUsername string) (*domain.EventGuest, error) {
	return r.getOne(ctx, `event_id = $1 AND phone = $2 AND sm_username <> $3`, eventID, phone, excludeUsername)
}

func (r *eventGuestRepository) UpdatePhone(ctx context.Context, id uuid.UUID, phone string) error {
	_, err := r.db.q(ctx).Exec(ctx, `UPDATE event_guests SET phone = $2, updated_at = now() WHERE id = $1`, id, phone)
	if err != nil {
		r.log.Error().Err(err).Str("event_guest_id", id.String()).Msg("Failed to update entry phone")
	}
	return err
}

// MarkSignedPending only moves entries that are still invited.
func (r *eventGuestRepository) MarkSignedPending(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE event_guests SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, domain.StatusSignedPendingVerification, domain.StatusInvited)
	if err != nil {
		r.log.Error().Err(err).Str("event_guest_id", id.String()).Msg("Failed to mark entry signed")
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *eventGuestRepository) SetStatusByUsername(ctx context.Context, eventID uuid.UUID, username string, status domain.EventGuestStatus) (int64, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE event_guests SET status = $3, updated_at = now()
		WHERE event_id = $1 AND sm_username = $2
	`, eventID, username, status)
	if err != nil {
		r.log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to set entry status")
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *eventGuestRepository) SetStatusByPhone(ctx context.Context, eventID uuid.UUID, phone string, status domain.EventGuestStatus) (int64, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE event_guests SET status = $3, updated_at = now()
		WHERE event_id = $1 AND phone = $2
	`, eventID, phone, status)
	if err != nil {
		r.log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to set entry status by phone")
		return 0, err
	}
	return tag.RowsAffected(), nil
}
