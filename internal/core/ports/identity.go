package ports

import (
	"context"

	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
)

// StaffIdentityProvider resolves authenticated staff callers.
type StaffIdentityProvider interface {
	// Authenticate resolves a staff bearer token. It returns
	// domain.ErrUnauthenticated for unknown or revoked tokens.
	Authenticate(ctx context.Context, bearerToken string) (*domain.Staff, error)

	// GetByTelegramID finds the staff member linked to a Telegram account.
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.Staff, error)
}
