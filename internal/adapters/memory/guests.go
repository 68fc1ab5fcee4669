package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

type guestRepo struct{ s *Store }

var _ ports.GuestRepository = (*guestRepo)(nil)

func (r *guestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Guest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.guests[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *guestRepo) GetByPhone(ctx context.Context, phone string) (*domain.Guest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if g := r.s.guestByPhoneLocked(phone); g != nil {
		out := *g
		return &out, nil
	}
	return nil, nil
}

func (s *Store) guestByPhoneLocked(phone string) *domain.Guest {
	for _, g := range s.guests {
		if g.Phone == phone {
			return &g
		}
	}
	return nil
}

// applyDetails keeps existing values where the update carries none.
func applyDetails(g *domain.Guest, d ports.GuestDetails) {
	if d.FirstName != nil {
		g.FirstName = d.FirstName
	}
	if d.LastName != nil {
		g.LastName = d.LastName
	}
	if d.SmUsername != nil {
		g.SmUsername = d.SmUsername
	}
	if d.Email != nil {
		g.Email = d.Email
	}
	if d.Location != nil {
		g.Location = d.Location
	}
}

func (r *guestRepo) UpsertByPhone(ctx context.Context, phone string, details ports.GuestDetails) (*domain.Guest, error) {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t := now()
	g := r.s.guestByPhoneLocked(phone)
	if g == nil {
		g = &domain.Guest{ID: uuid.New(), Phone: phone, CreatedAt: t}
	}
	applyDetails(g, details)
	g.UpdatedAt = t
	r.s.guests[g.ID] = *g

	out := *g
	return &out, nil
}

func (r *guestRepo) ChangePhone(ctx context.Context, guestID uuid.UUID, oldPhone, newPhone string, details ports.GuestDetails) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.guests[guestID]
	if !ok || g.Phone != oldPhone {
		return fmt.Errorf("guest %s no longer holds the old phone", guestID)
	}
	if other := r.s.guestByPhoneLocked(newPhone); other != nil && other.ID != guestID {
		return domain.ErrPhoneCollision
	}

	g.Phone = newPhone
	applyDetails(&g, details)
	g.UpdatedAt = now()
	r.s.guests[guestID] = g
	return nil
}

func (r *guestRepo) AddPhoneHistory(ctx context.Context, h *domain.GuestPhoneHistory) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.ChangedAt.IsZero() {
		h.ChangedAt = now()
	}
	r.s.phoneHistory = append(r.s.phoneHistory, *h)
	return nil
}

func (r *guestRepo) ListPhoneHistory(ctx context.Context, guestID uuid.UUID) ([]*domain.GuestPhoneHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.GuestPhoneHistory
	for _, h := range r.s.phoneHistory {
		if h.GuestID == guestID {
			h := h
			out = append(out, &h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangedAt.Before(out[j].ChangedAt) })
	return out, nil
}

type eventGuestRepo struct{ s *Store }

var _ ports.EventGuestRepository = (*eventGuestRepo)(nil)

func (r *eventGuestRepo) find(match func(domain.EventGuest) bool) *domain.EventGuest {
	for _, eg := range r.s.eventGuests {
		if match(eg) {
			return &eg
		}
	}
	return nil
}

func (r *eventGuestRepo) GetByUsername(ctx context.Context, eventID uuid.UUID, username string) (*domain.EventGuest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(eg domain.EventGuest) bool {
		return eg.EventID == eventID && eg.SmUsername == username
	}), nil
}

func (r *eventGuestRepo) GetByUsernameAndPhone(ctx context.Context, eventID uuid.UUID, username, phone string) (*domain.EventGuest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(eg domain.EventGuest) bool {
		return eg.EventID == eventID && eg.SmUsername == username && eg.Phone != nil && *eg.Phone == phone
	}), nil
}

func (r *eventGuestRepo) FindOtherWithPhone(ctx context.Context, eventID uuid.UUID, phone, excludeUsername string) (*domain.EventGuest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(eg domain.EventGuest) bool {
		return eg.EventID == eventID && eg.SmUsername != excludeUsername && eg.Phone != nil && *eg.Phone == phone
	}), nil
}

func (r *eventGuestRepo) UpdatePhone(ctx context.Context, id uuid.UUID, phone string) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	eg, ok := r.s.eventGuests[id]
	if !ok {
		return nil
	}
	eg.Phone = &phone
	eg.UpdatedAt = now()
	r.s.eventGuests[id] = eg
	return nil
}

func (r *eventGuestRepo) MarkSignedPending(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	eg, ok := r.s.eventGuests[id]
	if !ok || eg.Status != domain.StatusInvited {
		return false, nil
	}
	eg.Status = domain.StatusSignedPendingVerification
	eg.UpdatedAt = now()
	r.s.eventGuests[id] = eg
	return true, nil
}

func (r *eventGuestRepo) SetStatusByUsername(ctx context.Context, eventID uuid.UUID, username string, status domain.EventGuestStatus) (int64, error) {
	return r.setStatus(ctx, eventID, status, func(eg domain.EventGuest) bool {
		return eg.SmUsername == username
	}), nil
}

func (r *eventGuestRepo) SetStatusByPhone(ctx context.Context, eventID uuid.UUID, phone string, status domain.EventGuestStatus) (int64, error) {
	return r.setStatus(ctx, eventID, status, func(eg domain.EventGuest) bool {
		return eg.Phone != nil && *eg.Phone == phone
	}), nil
}

func (r *eventGuestRepo) setStatus(ctx context.Context, eventID uuid.UUID, status domain.EventGuestStatus, match func(domain.EventGuest) bool) int64 {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, eg := range r.s.eventGuests {
		if eg.EventID != eventID || !match(eg) {
			continue
		}
		eg.Status = status
		eg.UpdatedAt = now()
		r.s.eventGuests[id] = eg
		n++
	}
	return n
}

// EventGuest returns a copy of one guest-list entry.
func (s *Store) EventGuest(id uuid.UUID) (domain.EventGuest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eg, ok := s.eventGuests[id]
	return eg, ok
}
