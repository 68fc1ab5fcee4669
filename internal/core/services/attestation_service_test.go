package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

func (f *fixture) signed(t *testing.T) *SubmitResult {
	t.Helper()
	res, err := f.submit.Submit(context.Background(), f.kioskSession(t), f.submitRequest("ola.nordmann", "4746427042"))
	require.NoError(t, err)
	return res
}

func TestAttestationService_Verify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signed(t)

	out, err := f.attest.Verify(ctx, &f.crew, res.SignatureID)
	require.NoError(t, err)
	assert.True(t, out.StatusPropagated)
	assert.Equal(t, f.crew.UserID, out.VerifiedBy)

	sig, err := f.repos.Signatures.GetByID(ctx, res.SignatureID)
	require.NoError(t, err)
	require.NotNil(t, sig.VerifiedBy)
	assert.Equal(t, f.crew.UserID, *sig.VerifiedBy)

	entry, _ := f.store.EventGuest(f.entry.ID)
	assert.Equal(t, domain.StatusVerified, entry.Status)

	_, err = f.attest.Verify(ctx, &f.adminUser, res.SignatureID)
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)

	f.bus.AssertCalled(t, "Publish", mock.Anything, ports.TopicSignatureVerified, mock.Anything)
	assert.Contains(t, f.auditActions(), domain.AuditNdaVerified)
}

func TestAttestationService_VerifyAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signed(t)

	_, err := f.attest.Verify(ctx, &f.outsider, res.SignatureID)
	assert.ErrorIs(t, err, domain.ErrNoEventAccess)

	_, err = f.attest.Verify(ctx, &f.crew, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSignatureNotFound)

	_, err = f.attest.Verify(ctx, nil, res.SignatureID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	sig, _ := f.repos.Signatures.GetByID(ctx, res.SignatureID)
	assert.Nil(t, sig.VerifiedAt)
}

// Two crew members race on the same ID check.
func TestAttestationService_VerifyRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signed(t)

	second := domain.Staff{UserID: uuid.New(), Role: domain.RoleCrew, Username: "crew3"}
	f.store.GrantCrew(second.UserID, f.event.ID)
	callers := []*domain.Staff{&f.crew, &second, &f.organizer, &f.adminUser}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		losers  int
	)
	for _, c := range callers {
		wg.Add(1)
		go func(c *domain.Staff) {
			defer wg.Done()
			out, err := f.attest.Verify(ctx, c, res.SignatureID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, out.VerifiedBy)
				return
			}
			assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
			losers++
		}(c)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, len(callers)-1, losers)

	sig, err := f.repos.Signatures.GetByID(ctx, res.SignatureID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], *sig.VerifiedBy)
}

func TestAttestationService_StatusPropagationFailureKeepsVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	res := f.signed(t)

	egs := &MockEventGuestRepository{EventGuestRepository: f.repos.EventGuests}
	egs.On("SetStatusByUsername", mock.Anything, f.event.ID, "ola.nordmann", domain.StatusVerified).
		Return(int64(0), errors.New("connection reset"))

	svc := NewAttestationService(AttestationDeps{
		Auth:        f.auth,
		Tx:          f.repos.Tx,
		Signatures:  f.repos.Signatures,
		EventGuests: egs,
		Blobs:       f.blobs,
		Audit:       f.repos.Audit,
		Bus:         f.bus,
	}, &nopLogger)

	out, err := svc.Verify(ctx, &f.crew, res.SignatureID)
	require.NoError(t, err)
	assert.False(t, out.StatusPropagated)

	sig, _ := f.repos.Signatures.GetByID(ctx, res.SignatureID)
	assert.NotNil(t, sig.VerifiedAt)
	egs.AssertExpectations(t)
}

func TestAttestationService_VerifyAfterUsernameChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signed(t)

	// Signing elsewhere under another username rewrites the global guest.
	_, err := f.repos.Guests.UpsertByPhone(ctx, "4746427042", ports.GuestDetails{SmUsername: strPtr("ola.privat")})
	require.NoError(t, err)

	out, err := f.attest.Verify(ctx, &f.crew, res.SignatureID)
	require.NoError(t, err)
	assert.True(t, out.StatusPropagated)

	entry, ok := f.store.EventGuest(f.entry.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusVerified, entry.Status)
}

func TestAttestationService_ListPendingScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signed(t)

	// A signature on an event only the admin can see.
	f.store.AddEventGuest(domain.EventGuest{EventID: f.otherEvent.ID, SmUsername: "kari"})
	other, err := f.sessions.Issue(ctx, &f.adminUser, f.otherEvent.ID)
	require.NoError(t, err)
	otherKs, err := f.sessions.Validate(ctx, other.Token, f.otherEvent.ID)
	require.NoError(t, err)
	_, err = f.submit.Submit(ctx, otherKs, f.submitRequest("kari", "4799999999"))
	require.NoError(t, err)

	forCrew, err := f.attest.ListPending(ctx, &f.crew)
	require.NoError(t, err)
	require.Len(t, forCrew, 1)
	assert.Equal(t, res.SignatureID, forCrew[0].Signature.ID)
	assert.Equal(t, "Sommerfest", forCrew[0].EventName)
	assert.Equal(t, "ola.nordmann", forCrew[0].GuestUsername)

	forOrganizer, err := f.attest.ListPending(ctx, &f.organizer)
	require.NoError(t, err)
	assert.Len(t, forOrganizer, 1)

	forAdmin, err := f.attest.ListPending(ctx, &f.adminUser)
	require.NoError(t, err)
	assert.Len(t, forAdmin, 2)

	forOutsider, err := f.attest.ListPending(ctx, &f.outsider)
	require.NoError(t, err)
	assert.Empty(t, forOutsider)

	_, err = f.attest.Verify(ctx, &f.crew, res.SignatureID)
	require.NoError(t, err)
	forCrew, err = f.attest.ListPending(ctx, &f.crew)
	require.NoError(t, err)
	assert.Empty(t, forCrew)
}

func TestAttestationService_DeleteSignatureResetsToInvited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signed(t)

	_, err := f.attest.Verify(ctx, &f.crew, res.SignatureID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.attest.DeleteSignature(ctx, &f.crew, res.SignatureID), domain.ErrForbiddenRole)

	require.NoError(t, f.attest.DeleteSignature(ctx, &f.organizer, res.SignatureID))

	entry, _ := f.store.EventGuest(f.entry.ID)
	assert.Equal(t, domain.StatusInvited, entry.Status)
	assert.Equal(t, 0, f.store.SignatureCount())
	assert.Equal(t, 0, f.blobs.Len())
	assert.Contains(t, f.auditActions(), domain.AuditNdaSignatureDeleted)

	assert.ErrorIs(t, f.attest.DeleteSignature(ctx, &f.adminUser, res.SignatureID), domain.ErrSignatureNotFound)

	// The guest can sign again.
	again, err := f.submit.Submit(ctx, f.kioskSession(t), f.submitRequest("ola.nordmann", "4746427042"))
	require.NoError(t, err)
	assert.Equal(t, res.GuestID, again.GuestID)
}
