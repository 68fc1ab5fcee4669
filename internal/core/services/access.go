// Package services holds the kiosk intake and attestation pipeline.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// clock is swapped in tests.
type clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// Authorizer answers which events a staff member may act on.
//
//   - crew need an explicit grant on the event
//   - organizers must have created the event
//   - admins may act on any event
type Authorizer struct {
	events ports.EventRepository
	access ports.EventAccessRepository
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(events ports.EventRepository, access ports.EventAccessRepository) *Authorizer {
	return &Authorizer{events: events, access: access}
}

func checkCaller(caller *domain.Staff) error {
	if caller == nil {
		return domain.ErrUnauthenticated
	}
	if !caller.Role.Valid() {
		return domain.ErrForbiddenRole
	}
	return nil
}

// AuthorizeEvent loads the event if caller may act on it. Crew grants are
// checked before the event is loaded; organizer ownership needs the row.
func (a *Authorizer) AuthorizeEvent(ctx context.Context, caller *domain.Staff, eventID uuid.UUID) (*domain.Event, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}

	if caller.Role == domain.RoleCrew {
		ok, err := a.access.HasCrewAccess(ctx, caller.UserID, eventID)
		if err != nil {
			return nil, fmt.Errorf("check crew access: %w", err)
		}
		if !ok {
			return nil, domain.ErrNoEventAccess
		}
	}

	event, err := a.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}

	if caller.Role == domain.RoleOrganizer && !event.OwnedBy(caller.UserID) {
		return nil, domain.ErrNoEventAccess
	}
	return event, nil
}

// AuthorizeEventOwner admits admins and the organizer who created the event.
func (a *Authorizer) AuthorizeEventOwner(ctx context.Context, caller *domain.Staff, eventID uuid.UUID) (*domain.Event, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	if caller.Role == domain.RoleCrew {
		return nil, domain.ErrForbiddenRole
	}
	return a.AuthorizeEvent(ctx, caller, eventID)
}

// VisibleEventIDs lists the events caller may see. A nil slice means every
// event (admins); an empty slice means none.
func (a *Authorizer) VisibleEventIDs(ctx context.Context, caller *domain.Staff) ([]uuid.UUID, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}

	var (
		ids []uuid.UUID
		err error
	)
	switch caller.Role {
	case domain.RoleAdmin:
		return nil, nil
	case domain.RoleCrew:
		ids, err = a.access.ListCrewEventIDs(ctx, caller.UserID)
	case domain.RoleOrganizer:
		ids, err = a.events.ListIDsByOwner(ctx, caller.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("list visible events: %w", err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

func actorID(caller *domain.Staff) *uuid.UUID {
	id := caller.UserID
	return &id
}
