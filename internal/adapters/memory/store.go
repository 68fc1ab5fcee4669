// Package memory is an in-process implementation of every repository port.
// It backs the server when STORAGE_BACKEND=memory and the scenario tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/shared/token"
)

// Store holds all tables. mu guards the maps. txMu is held by an open
// transaction and by every write made outside one, so a rollback never
// restores over a committed write.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	guests       map[uuid.UUID]domain.Guest
	phoneHistory []domain.GuestPhoneHistory
	events       map[uuid.UUID]domain.Event
	eventGuests  map[uuid.UUID]domain.EventGuest
	crewAccess   map[uuid.UUID]map[uuid.UUID]bool
	sessions     map[uuid.UUID]domain.KioskSession
	signatures   map[uuid.UUID]domain.NdaSignature
	audit        []domain.AuditEntry
	privacy      domain.PrivacyText
	staffTokens  map[string]uuid.UUID
	staff        map[uuid.UUID]domain.Staff
}

// NewStore creates an empty store with privacy text version 1.
func NewStore() *Store {
	return &Store{
		guests:      make(map[uuid.UUID]domain.Guest),
		events:      make(map[uuid.UUID]domain.Event),
		eventGuests: make(map[uuid.UUID]domain.EventGuest),
		crewAccess:  make(map[uuid.UUID]map[uuid.UUID]bool),
		sessions:    make(map[uuid.UUID]domain.KioskSession),
		signatures:  make(map[uuid.UUID]domain.NdaSignature),
		privacy:     domain.PrivacyText{Version: 1},
		staffTokens: make(map[string]uuid.UUID),
		staff:       make(map[uuid.UUID]domain.Staff),
	}
}

// Repositories returns the port views over s.
func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Guests:        &guestRepo{s},
		EventGuests:   &eventGuestRepo{s},
		Events:        &eventRepo{s},
		EventAccess:   &eventAccessRepo{s},
		KioskSessions: &kioskSessionRepo{s},
		Signatures:    &signatureRepo{s},
		Audit:         &auditSink{s},
		Privacy:       &privacyProvider{s},
		Tx:            &txManager{s},
		Identity:      &staffIdentity{s},
	}
}

// --- Seeding ---

// AddEvent inserts or replaces an event.
func (s *Store) AddEvent(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
		e.UpdatedAt = e.CreatedAt
	}
	s.events[e.ID] = e
}

// AddEventGuest inserts a guest-list entry. A zero status means invited.
func (s *Store) AddEventGuest(g domain.EventGuest) domain.EventGuest {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Status == "" {
		g.Status = domain.StatusInvited
	}
	g.CreatedAt = time.Now().UTC()
	g.UpdatedAt = g.CreatedAt
	s.eventGuests[g.ID] = g
	return g
}

// AddGuest inserts a global guest.
func (s *Store) AddGuest(g domain.Guest) domain.Guest {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.CreatedAt = time.Now().UTC()
	g.UpdatedAt = g.CreatedAt
	s.guests[g.ID] = g
	return g
}

// GrantCrew gives a crew member access to an event.
func (s *Store) GrantCrew(crewUserID, eventID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crewAccess[crewUserID] == nil {
		s.crewAccess[crewUserID] = make(map[uuid.UUID]bool)
	}
	s.crewAccess[crewUserID][eventID] = true
}

// SetPrivacyText replaces the current privacy notice.
func (s *Store) SetPrivacyText(p domain.PrivacyText) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privacy = p
}

// AddStaff registers a staff member reachable by the given bearer token.
func (s *Store) AddStaff(bearer string, st domain.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[st.UserID] = st
	if bearer != "" {
		s.staffTokens[token.Hash(bearer)] = st.UserID
	}
}

// --- Inspection ---

// AuditEntries returns a copy of the audit log in insertion order.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.audit...)
}

// PhoneHistory returns a copy of every phone history row.
func (s *Store) PhoneHistory() []domain.GuestPhoneHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.GuestPhoneHistory(nil), s.phoneHistory...)
}

// GuestCount returns the number of global guests.
func (s *Store) GuestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.guests)
}

// SignatureCount returns the number of stored signatures.
func (s *Store) SignatureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.signatures)
}

// --- Transactions ---

type snapshot struct {
	guests       map[uuid.UUID]domain.Guest
	phoneHistory []domain.GuestPhoneHistory
	eventGuests  map[uuid.UUID]domain.EventGuest
	sessions     map[uuid.UUID]domain.KioskSession
	signatures   map[uuid.UUID]domain.NdaSignature
	audit        []domain.AuditEntry
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		guests:       cloneMap(s.guests),
		phoneHistory: append([]domain.GuestPhoneHistory(nil), s.phoneHistory...),
		eventGuests:  cloneMap(s.eventGuests),
		sessions:     cloneMap(s.sessions),
		signatures:   cloneMap(s.signatures),
		audit:        append([]domain.AuditEntry(nil), s.audit...),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guests = snap.guests
	s.phoneHistory = snap.phoneHistory
	s.eventGuests = snap.eventGuests
	s.sessions = snap.sessions
	s.signatures = snap.signatures
	s.audit = snap.audit
}

type txKey struct{}

// lockWrite takes txMu for a write outside a transaction and returns the
// unlock. Inside a transaction the lock is already held.
func (s *Store) lockWrite(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

type txManager struct{ s *Store }

var _ ports.TxManager = (*txManager)(nil)

// WithinTx serializes transactions and restores the pre-transaction state
// when fn fails. Nested calls join the outer transaction.
func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	snap := m.s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.s.restore(snap)
		return err
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
