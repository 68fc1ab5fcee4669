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

type signatureRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.SignatureRepository = (*signatureRepository)(nil)

// NewSignatureRepository creates the NDA signature repository.
func NewSignatureRepository(db *DB, baseLogger *zerolog.Logger) ports.SignatureRepository {
	return &signatureRepository{
		db:  db,
		log: baseLogger.With().Str("component", "signature_repo").Logger(),
	}
}

const signatureQueryCols = `
	s.id, s.event_id, s.guest_id, s.language, s.nda_text_snapshot,
	s.read_confirmed, s.privacy_accepted, s.privacy_text_snapshot, s.privacy_version,
	s.signed_at, s.signature_storage_path, s.pdf_storage_path, s.pdf_sha256,
	s.verified_at, s.verified_by, s.created_at, s.updated_at
`

// listItemQuery joins the guest and event columns the staff screens show.
const listItemQuery = `
	SELECT ` + signatureQueryCols + `,
		e.name, COALESCE(g.first_name, ''), COALESCE(g.last_name, ''),
		COALESCE(g.sm_username, ''), g.phone
	FROM nda_signatures s
	JOIN events e ON e.id = s.event_id
	JOIN guests g ON g.id = s.guest_id
`

func signatureDest(sig *domain.NdaSignature) []any {
	return []any{
		&sig.ID,
		&sig.EventID,
		&sig.GuestID,
		&sig.Language,
		&sig.NDATextSnapshot,
		&sig.ReadConfirmed,
		&sig.PrivacyAccepted,
		&sig.PrivacyTextSnapshot,
		&sig.PrivacyVersion,
		&sig.SignedAt,
		&sig.SignatureStoragePath,
		&sig.PDFStoragePath,
		&sig.PDFSHA256,
		&sig.VerifiedAt,
		&sig.VerifiedBy,
		&sig.CreatedAt,
		&sig.UpdatedAt,
	}
}

func scanListItem(row pgx.Row) (*domain.SignatureListItem, error) {
	var item domain.SignatureListItem
	dest := append(signatureDest(&item.Signature),
		&item.EventName,
		&item.GuestFirstName,
		&item.GuestLastName,
		&item.GuestUsername,
		&item.GuestPhone,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *signatureRepository) Create(ctx context.Context, sig *domain.NdaSignature) error {
	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	query := `
		INSERT INTO nda_signatures (
			id, event_id, guest_id, language, nda_text_snapshot,
			read_confirmed, privacy_accepted, privacy_text_snapshot, privacy_version,
			signed_at, signature_storage_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.q(ctx).QueryRow(ctx, query,
		sig.ID,
		sig.EventID,
		sig.GuestID,
		sig.Language,
		sig.NDATextSnapshot,
		sig.ReadConfirmed,
		sig.PrivacyAccepted,
		sig.PrivacyTextSnapshot,
		sig.PrivacyVersion,
		sig.SignedAt,
		sig.SignatureStoragePath,
	).Scan(&sig.CreatedAt, &sig.UpdatedAt)
	if err != nil {
		if uniqueConstraint(err) == "nda_signatures_event_guest_key" {
			return domain.ErrDuplicateSignature
		}
		r.log.Error().Err(err).Str("event_id", sig.EventID.String()).Msg("Failed to insert signature")
		return err
	}
	return nil
}

func (r *signatureRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.NdaSignature, error) {
	var sig domain.NdaSignature
	err := r.db.q(ctx).QueryRow(ctx,
		`SELECT `+signatureQueryCols+` FROM nda_signatures s WHERE s.id = $1`, id,
	).Scan(signatureDest(&sig)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error().Err(err).Msg("Failed to scan signature row")
		return nil, err
	}
	return &sig, nil
}

func (r *signatureRepository) GetListItem(ctx context.Context, id uuid.UUID) (*domain.SignatureListItem, error) {
	item, err := scanListItem(r.db.q(ctx).QueryRow(ctx, listItemQuery+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func (r *signatureRepository) ExistsForEventGuest(ctx context.Context, eventID, guestID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM nda_signatures WHERE event_id = $1 AND guest_id = $2)
	`, eventID, guestID).Scan(&exists)
	return exists, err
}

// MarkVerified is the single conditional write behind attestation. Of any
// number of concurrent callers exactly one sees a row count of 1.
func (r *signatureRepository) MarkVerified(ctx context.Context, id, verifiedBy uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE nda_signatures SET verified_at = $2, verified_by = $3, updated_at = $2
		WHERE id = $1 AND verified_at IS NULL
	`, id, at, verifiedBy)
	if err != nil {
		r.log.Error().Err(err).Str("signature_id", id.String()).Msg("Failed to mark signature verified")
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *signatureRepository) SetPDF(ctx context.Context, id uuid.UUID, path, sha256 string) (int64, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE nda_signatures SET pdf_storage_path = $2, pdf_sha256 = $3, updated_at = now()
		WHERE id = $1 AND pdf_storage_path IS NULL
	`, id, path, sha256)
	if err != nil {
		r.log.Error().Err(err).Str("signature_id", id.String()).Msg("Failed to record pdf")
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *signatureRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM nda_signatures WHERE id = $1`, id)
	if err != nil {
		r.log.Error().Err(err).Str("signature_id", id.String()).Msg("Failed to delete signature")
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *signatureRepository) ListPending(ctx context.Context, eventIDs []uuid.UUID) ([]*domain.SignatureListItem, error) {
	// A nil slice encodes as NULL and matches every event.
	var scope []string
	if eventIDs != nil {
		scope = make([]string, len(eventIDs))
		for i, id := range eventIDs {
			scope[i] = id.String()
		}
	}
	return r.list(ctx, listItemQuery+`
		WHERE s.verified_at IS NULL AND ($1::uuid[] IS NULL OR s.event_id = ANY($1::uuid[]))
		ORDER BY s.signed_at ASC
	`, scope)
}

func (r *signatureRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.SignatureListItem, error) {
	return r.list(ctx, listItemQuery+` WHERE s.event_id = $1 ORDER BY s.signed_at DESC`, eventID)
}

func (r *signatureRepository) list(ctx context.Context, query string, arg any) ([]*domain.SignatureListItem, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, arg)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to list signatures")
		return nil, err
	}
	defer rows.Close()

	out := []*domain.SignatureListItem{}
	for rows.Next() {
		item, err := scanListItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
