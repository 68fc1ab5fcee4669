package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

type kioskSessionRepo struct{ s *Store }

var _ ports.KioskSessionRepository = (*kioskSessionRepo)(nil)

func (r *kioskSessionRepo) Create(ctx context.Context, ks *domain.KioskSession) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ks.ID == uuid.Nil {
		ks.ID = uuid.New()
	}
	if ks.CreatedAt.IsZero() {
		ks.CreatedAt = now()
	}
	r.s.sessions[ks.ID] = *ks
	return nil
}

func (r *kioskSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.KioskSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ks, ok := r.s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &ks, nil
}

func (r *kioskSessionRepo) GetActive(ctx context.Context, tokenHash string, eventID uuid.UUID, at time.Time) (*domain.KioskSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ks := range r.s.sessions {
		if ks.TokenHash == tokenHash && ks.EventID == eventID && ks.ActiveAt(at) {
			return &ks, nil
		}
	}
	return nil, nil
}

func (r *kioskSessionRepo) Revoke(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ks, ok := r.s.sessions[id]
	if !ok || ks.RevokedAt != nil {
		return false, nil
	}
	ks.RevokedAt = &at
	r.s.sessions[id] = ks
	return true, nil
}

func (r *kioskSessionRepo) ListActiveByEvent(ctx context.Context, eventID uuid.UUID, at time.Time) ([]*domain.KioskSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.KioskSession
	for _, ks := range r.s.sessions {
		if ks.EventID == eventID && ks.ActiveAt(at) {
			ks := ks
			out = append(out, &ks)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
