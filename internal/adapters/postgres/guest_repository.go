package postgres

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

type guestRepository struct {
	db     *DB
	secSvc ports.SecurityPort // nil stores email and location in plaintext
	log    zerolog.Logger
}

var _ ports.GuestRepository = (*guestRepository)(nil) // Ensure compliance

// NewGuestRepository creates the guest directory repository. When secSvc is
// set, email and location are encrypted at rest.
func NewGuestRepository(db *DB, secSvc ports.SecurityPort, baseLogger *zerolog.Logger) ports.GuestRepository {
	return &guestRepository{
		db:     db,
		secSvc: secSvc,
		log:    baseLogger.With().Str("component", "guest_repo").Logger(),
	}
}

const guestQueryCols = `
	id, phone, first_name, last_name, sm_username, email, location,
	created_at, updated_at
`

func (r *guestRepository) seal(v *string) (*string, error) {
	if v == nil || r.secSvc == nil {
		return v, nil
	}
	encBytes, err := r.secSvc.Encrypt([]byte(*v))
	if err != nil {
		return nil, err
	}
	encStr := base64.StdEncoding.EncodeToString(encBytes)
	return &encStr, nil
}

func (r *guestRepository) open(v *string) (*string, error) {
	if v == nil || r.secSvc == nil {
		return v, nil
	}
	decBytes, err := base64.StdEncoding.DecodeString(*v)
	if err != nil {
		return nil, fmt.Errorf("base64-decode: %w", err)
	}
	dec, err := r.secSvc.Decrypt(decBytes)
	if err != nil {
		return nil, err
	}
	decStr := string(dec)
	return &decStr, nil
}

// sealDetails returns the details as they are written to the table.
func (r *guestRepository) sealDetails(d ports.GuestDetails) (ports.GuestDetails, error) {
	var err error
	if d.Email, err = r.seal(d.Email); err != nil {
		r.log.Error().Err(err).Msg("Failed to encrypt guest email")
		return d, err
	}
	if d.Location, err = r.seal(d.Location); err != nil {
		r.log.Error().Err(err).Msg("Failed to encrypt guest location")
		return d, err
	}
	return d, nil
}

// scanGuest scans a row and decrypts the protected fields.
func (r *guestRepository) scanGuest(row pgx.Row) (*domain.Guest, error) {
	var g domain.Guest
	var encEmail, encLocation *string

	err := row.Scan(
		&g.ID,
		&g.Phone,
		&g.FirstName,
		&g.LastName,
		&g.SmUsername,
		&encEmail,
		&encLocation,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Error().Err(err).Msg("Failed to scan guest row")
		}
		return nil, err
	}

	if g.Email, err = r.open(encEmail); err != nil {
		r.log.Error().Err(err).Str("guest_id", g.ID.String()).Msg("Failed to decrypt guest email (tampered?)")
		return nil, err
	}
	if g.Location, err = r.open(encLocation); err != nil {
		r.log.Error().Err(err).Str("guest_id", g.ID.String()).Msg("Failed to decrypt guest location (tampered?)")
		return nil, err
	}
	return &g, nil
}

func (r *guestRepository) getOne(ctx context.Context, query string, arg any) (*domain.Guest, error) {
	g, err := r.scanGuest(r.db.q(ctx).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (r *guestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Guest, error) {
	return r.getOne(ctx, `SELECT `+guestQueryCols+` FROM guests WHERE id = $1`, id)
}

func (r *guestRepository) GetByPhone(ctx context.Context, phone string) (*domain.Guest, error) {
	return r.getOne(ctx, `SELECT `+guestQueryCols+` FROM guests WHERE phone = $1`, phone)
}

// UpsertByPhone relies on the unique phone index, so concurrent first
// submissions for one phone converge on a single row.
func (r *guestRepository) UpsertByPhone(ctx context.Context, phone string, details ports.GuestDetails) (*domain.Guest, error) {
	d, err := r.sealDetails(details)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO guests (phone, first_name, last_name, sm_username, email, location)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone) DO UPDATE SET
			first_name  = COALESCE(EXCLUDED.first_name, guests.first_name),
			last_name   = COALESCE(EXCLUDED.last_name, guests.last_name),
			sm_username = COALESCE(EXCLUDED.sm_username, guests.sm_username),
			email       = COALESCE(EXCLUDED.email, guests.email),
			location    = COALESCE(EXCLUDED.location, guests.location),
			updated_at  = now()
		RETURNING ` + guestQueryCols

	row := r.db.q(ctx).QueryRow(ctx, query, phone, d.FirstName, d.LastName, d.SmUsername, d.Email, d.Location)
	g, err := r.scanGuest(row)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to upsert guest")
		return nil, err
	}
	return g, nil
}

func (r *guestRepository) ChangePhone(ctx context.Context, guestID uuid.UUID, oldPhone, newPhone string, details ports.GuestDetails) error {
	d, err := r.sealDetails(details)
	if err != nil {
		return err
	}

	query := `
		UPDATE guests SET
			phone       = $3,
			first_name  = COALESCE($4, first_name),
			last_name   = COALESCE($5, last_name),
			sm_username = COALESCE($6, sm_username),
			email       = COALESCE($7, email),
			location    = COALESCE($8, location),
			updated_at  = now()
		WHERE id = $1 AND phone = $2
	`
	tag, err := r.db.q(ctx).Exec(ctx, query, guestID, oldPhone, newPhone,
		d.FirstName, d.LastName, d.SmUsername, d.Email, d.Location)
	if err != nil {
		if uniqueConstraint(err) != "" {
			return domain.ErrPhoneCollision
		}
		r.log.Error().Err(err).Str("guest_id", guestID.String()).Msg("Failed to change guest phone")
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("guest %s no longer holds the old phone", guestID)
	}
	return nil
}

func (r *guestRepository) AddPhoneHistory(ctx context.Context, h *domain.GuestPhoneHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	query := `
		INSERT INTO guests_phone_history (id, guest_id, old_phone, new_phone, changed_via)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING changed_at
	`
	err := r.db.q(ctx).QueryRow(ctx, query, h.ID, h.GuestID, h.OldPhone, h.NewPhone, h.ChangedVia).Scan(&h.ChangedAt)
	if err != nil {
		r.log.Error().Err(err).Str("guest_id", h.GuestID.String()).Msg("Failed to insert phone history")
	}
	return err
}

func (r *guestRepository) ListPhoneHistory(ctx context.Context, guestID uuid.UUID) ([]*domain.GuestPhoneHistory, error) {
	query := `
		SELECT id, guest_id, old_phone, new_phone, changed_at, changed_via
		FROM guests_phone_history WHERE guest_id = $1 ORDER BY changed_at
	`
	rows, err := r.db.q(ctx).Query(ctx, query, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.GuestPhoneHistory
	for rows.Next() {
		var h domain.GuestPhoneHistory
		if err := rows.Scan(&h.ID, &h.GuestID, &h.OldPhone, &h.NewPhone, &h.ChangedAt, &h.ChangedVia); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
