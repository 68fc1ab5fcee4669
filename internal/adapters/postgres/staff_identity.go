package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/shared/token"
)

type staffIdentity struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.StaffIdentityProvider = (*staffIdentity)(nil)

// NewStaffIdentity resolves staff callers from API tokens and Telegram ids.
func NewStaffIdentity(db *DB, baseLogger *zerolog.Logger) ports.StaffIdentityProvider {
	return &staffIdentity{
		db:  db,
		log: baseLogger.With().Str("component", "staff_identity").Logger(),
	}
}

const staffQueryCols = `p.user_id, p.role, p.sm_username, p.full_name, p.telegram_id`

func scanStaff(row pgx.Row) (*domain.Staff, error) {
	var st domain.Staff
	if err := row.Scan(&st.UserID, &st.Role, &st.Username, &st.FullName, &st.TelegramID); err != nil {
		return nil, err
	}
	return &st, nil
}

// Authenticate only ever sees the hash of the presented token.
func (s *staffIdentity) Authenticate(ctx context.Context, bearerToken string) (*domain.Staff, error) {
	if bearerToken == "" {
		return nil, domain.ErrUnauthenticated
	}
	st, err := scanStaff(s.db.q(ctx).QueryRow(ctx, `
		SELECT `+staffQueryCols+`
		FROM staff_tokens t JOIN profiles p ON p.user_id = t.user_id
		WHERE t.token_hash = $1 AND t.revoked_at IS NULL
	`, token.Hash(bearerToken)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUnauthenticated
		}
		s.log.Error().Err(err).Msg("Failed to resolve staff token")
		return nil, err
	}
	return st, nil
}

func (s *staffIdentity) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.Staff, error) {
	st, err := scanStaff(s.db.q(ctx).QueryRow(ctx,
		`SELECT `+staffQueryCols+` FROM profiles p WHERE p.telegram_id = $1`, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.log.Info().Int64("telegram_id", telegramID).Msg("Staff not found")
			return nil, nil
		}
		return nil, err
	}
	return st, nil
}
