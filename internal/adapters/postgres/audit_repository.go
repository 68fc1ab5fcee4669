package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

type auditRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.AuditSink = (*auditRepository)(nil)

// NewAuditRepository creates the append-only audit sink.
func NewAuditRepository(db *DB, baseLogger *zerolog.Logger) ports.AuditSink {
	return &auditRepository{
		db:  db,
		log: baseLogger.With().Str("component", "audit_repo").Logger(),
	}
}

func (r *auditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	err := r.db.q(ctx).QueryRow(ctx, `
		INSERT INTO audit_log (id, actor_user_id, action, entity_type, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, entry.ID, entry.ActorUserID, entry.Action, entry.EntityType, entry.EntityID, entry.Meta).Scan(&entry.CreatedAt)
	if err != nil {
		r.log.Error().Err(err).Str("action", entry.Action).Msg("Failed to write audit entry")
	}
	return err
}
