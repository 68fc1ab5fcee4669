package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

type signatureRepo struct{ s *Store }

var _ ports.SignatureRepository = (*signatureRepo)(nil)

func (r *signatureRepo) Create(ctx context.Context, sig *domain.NdaSignature) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Mirrors the unique index on (event_id, guest_id).
	for _, existing := range r.s.signatures {
		if existing.EventID == sig.EventID && existing.GuestID == sig.GuestID {
			return domain.ErrDuplicateSignature
		}
	}

	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	t := now()
	sig.CreatedAt = t
	sig.UpdatedAt = t
	r.s.signatures[sig.ID] = *sig
	return nil
}

func (r *signatureRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.NdaSignature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sig, ok := r.s.signatures[id]
	if !ok {
		return nil, nil
	}
	return &sig, nil
}

func (r *signatureRepo) GetListItem(ctx context.Context, id uuid.UUID) (*domain.SignatureListItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sig, ok := r.s.signatures[id]
	if !ok {
		return nil, nil
	}
	return r.s.listItemLocked(sig), nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Store) listItemLocked(sig domain.NdaSignature) *domain.SignatureListItem {
	item := &domain.SignatureListItem{Signature: sig}
	if e, ok := s.events[sig.EventID]; ok {
		item.EventName = e.Name
	}
	if g, ok := s.guests[sig.GuestID]; ok {
		item.GuestFirstName = deref(g.FirstName)
		item.GuestLastName = deref(g.LastName)
		item.GuestUsername = deref(g.SmUsername)
		item.GuestPhone = g.Phone
	}
	return item
}

func (r *signatureRepo) ExistsForEventGuest(ctx context.Context, eventID, guestID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sig := range r.s.signatures {
		if sig.EventID == eventID && sig.GuestID == guestID {
			return true, nil
		}
	}
	return false, nil
}

func (r *signatureRepo) MarkVerified(ctx context.Context, id, verifiedBy uuid.UUID, at time.Time) (int64, error) {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sig, ok := r.s.signatures[id]
	if !ok || sig.VerifiedAt != nil {
		return 0, nil
	}
	sig.VerifiedAt = &at
	sig.VerifiedBy = &verifiedBy
	sig.UpdatedAt = at
	r.s.signatures[id] = sig
	return 1, nil
}

func (r *signatureRepo) SetPDF(ctx context.Context, id uuid.UUID, path, sha256 string) (int64, error) {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sig, ok := r.s.signatures[id]
	if !ok || sig.PDFStoragePath != nil {
		return 0, nil
	}
	sig.PDFStoragePath = &path
	sig.PDFSHA256 = &sha256
	sig.UpdatedAt = now()
	r.s.signatures[id] = sig
	return 1, nil
}

func (r *signatureRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.signatures[id]; !ok {
		return false, nil
	}
	delete(r.s.signatures, id)
	return true, nil
}

func (r *signatureRepo) ListPending(ctx context.Context, eventIDs []uuid.UUID) ([]*domain.SignatureListItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var allowed map[uuid.UUID]bool
	if eventIDs != nil {
		allowed = make(map[uuid.UUID]bool, len(eventIDs))
		for _, id := range eventIDs {
			allowed[id] = true
		}
	}

	out := []*domain.SignatureListItem{}
	for _, sig := range r.s.signatures {
		if sig.VerifiedAt != nil {
			continue
		}
		if allowed != nil && !allowed[sig.EventID] {
			continue
		}
		out = append(out, r.s.listItemLocked(sig))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Signature.SignedAt.Before(out[j].Signature.SignedAt)
	})
	return out, nil
}

func (r *signatureRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.SignatureListItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*domain.SignatureListItem{}
	for _, sig := range r.s.signatures {
		if sig.EventID == eventID {
			out = append(out, r.s.listItemLocked(sig))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Signature.SignedAt.After(out[j].Signature.SignedAt)
	})
	return out, nil
}
