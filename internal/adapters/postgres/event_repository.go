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

// EventDirectory reads events, crew grants and the platform privacy text.
// The pipeline never writes any of them.
type EventDirectory struct {
	db  *DB
	log zerolog.Logger
}

var (
	_ ports.EventRepository       = (*EventDirectory)(nil)
	_ ports.EventAccessRepository = (*EventDirectory)(nil)
	_ ports.PrivacyTextProvider   = (*EventDirectory)(nil)
)

// NewEventRepository creates the event directory repository. The returned
// value also serves crew grants and the privacy text.
func NewEventRepository(db *DB, baseLogger *zerolog.Logger) *EventDirectory {
	return &EventDirectory{
		db:  db,
		log: baseLogger.With().Str("component", "event_repo").Logger(),
	}
}

func (r *EventDirectory) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var e domain.Event
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT id, name, event_date, end_date, nda_text_no, nda_text_en,
			created_by, created_at, updated_at
		FROM events WHERE id = $1
	`, id).Scan(
		&e.ID,
		&e.Name,
		&e.EventDate,
		&e.EndDate,
		&e.NDATextNo,
		&e.NDATextEn,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.log.Info().Str("event_id", id.String()).Msg("Event not found")
			return nil, nil
		}
		r.log.Error().Err(err).Msg("Failed to scan event row")
		return nil, err
	}
	return &e, nil
}

func (r *EventDirectory) ListIDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT id FROM events WHERE created_by = $1 ORDER BY id`, ownerID)
}

func (r *EventDirectory) HasCrewAccess(ctx context.Context, crewUserID, eventID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM crew_event_access WHERE crew_user_id = $1 AND event_id = $2)
	`, crewUserID, eventID).Scan(&ok)
	return ok, err
}

func (r *EventDirectory) ListCrewEventIDs(ctx context.Context, crewUserID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT event_id FROM crew_event_access WHERE crew_user_id = $1 ORDER BY event_id`, crewUserID)
}

// ids never returns nil on success so callers can tell "none" from "all".
func (r *EventDirectory) ids(ctx context.Context, query string, arg uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

func (r *EventDirectory) Current(ctx context.Context) (*domain.PrivacyText, error) {
	var p domain.PrivacyText
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT privacy_text_no, privacy_text_en, privacy_version FROM app_config WHERE id = 1
	`).Scan(&p.TextNo, &p.TextEn, &p.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.PrivacyText{Version: 1}, nil
		}
		return nil, err
	}
	return &p, nil
}
