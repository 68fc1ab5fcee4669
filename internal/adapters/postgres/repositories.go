package postgres

import (
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// NewRepositories wires every Postgres-backed port over db. secSvc may be nil.
func NewRepositories(db *DB, secSvc ports.SecurityPort, baseLogger *zerolog.Logger) ports.Repositories {
	events := NewEventRepository(db, baseLogger)
	return ports.Repositories{
		Guests:        NewGuestRepository(db, secSvc, baseLogger),
		EventGuests:   NewEventGuestRepository(db, baseLogger),
		Events:        events,
		EventAccess:   events,
		KioskSessions: NewKioskSessionRepository(db, baseLogger),
		Signatures:    NewSignatureRepository(db, baseLogger),
		Audit:         NewAuditRepository(db, baseLogger),
		Privacy:       events,
		Tx:            NewTxManager(db, baseLogger),
		Identity:      NewStaffIdentity(db, baseLogger),
	}
}
