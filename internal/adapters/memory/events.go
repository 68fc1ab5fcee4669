package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/shared/token"
)

type eventRepo struct{ s *Store }

var _ ports.EventRepository = (*eventRepo)(nil)

func (r *eventRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *eventRepo) ListIDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []uuid.UUID{}
	for _, e := range r.s.events {
		if e.OwnedBy(ownerID) {
			ids = append(ids, e.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

type eventAccessRepo struct{ s *Store }

var _ ports.EventAccessRepository = (*eventAccessRepo)(nil)

func (r *eventAccessRepo) HasCrewAccess(ctx context.Context, crewUserID, eventID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.crewAccess[crewUserID][eventID], nil
}

func (r *eventAccessRepo) ListCrewEventIDs(ctx context.Context, crewUserID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []uuid.UUID{}
	for id, ok := range r.s.crewAccess[crewUserID] {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

type privacyProvider struct{ s *Store }

var _ ports.PrivacyTextProvider = (*privacyProvider)(nil)

func (p *privacyProvider) Current(ctx context.Context) (*domain.PrivacyText, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := p.s.privacy
	return &out, nil
}

type auditSink struct{ s *Store }

var _ ports.AuditSink = (*auditSink)(nil)

func (a *auditSink) Record(ctx context.Context, entry *domain.AuditEntry) error {
	defer a.s.lockWrite(ctx)()
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	a.s.audit = append(a.s.audit, *entry)
	return nil
}

type staffIdentity struct{ s *Store }

var _ ports.StaffIdentityProvider = (*staffIdentity)(nil)

func (i *staffIdentity) Authenticate(ctx context.Context, bearerToken string) (*domain.Staff, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	if bearerToken == "" {
		return nil, domain.ErrUnauthenticated
	}
	userID, ok := i.s.staffTokens[token.Hash(bearerToken)]
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	st, ok := i.s.staff[userID]
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return &st, nil
}

func (i *staffIdentity) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.Staff, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	for _, st := range i.s.staff {
		if st.TelegramID != nil && *st.TelegramID == telegramID {
			return &st, nil
		}
	}
	return nil, nil
}
