package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/memory"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/storage"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// --- Mocks ---

// MockEventBus
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, topic string, data interface{}) error {
	args := m.Called(ctx, topic, data)
	return args.Error(0)
}
func (m *MockEventBus) Subscribe(topic string, handler ports.EventHandler) {
	m.Called(topic, handler)
}

// MockBlobStorage
type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Put(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	args := m.Called(ctx, bucket, path, data, contentType)
	return args.Error(0)
}
func (m *MockBlobStorage) Get(ctx context.Context, bucket, path string) ([]byte, error) {
	args := m.Called(ctx, bucket, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *MockBlobStorage) Delete(ctx context.Context, bucket, path string) error {
	args := m.Called(ctx, bucket, path)
	return args.Error(0)
}
func (m *MockBlobStorage) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, bucket, path, ttl)
	return args.String(0), args.Error(1)
}

// MockEventGuestRepository wraps a real repository and lets single calls be
// overridden.
type MockEventGuestRepository struct {
	mock.Mock
	ports.EventGuestRepository
}

func (m *MockEventGuestRepository) SetStatusByUsername(ctx context.Context, eventID uuid.UUID, username string, status domain.EventGuestStatus) (int64, error) {
	args := m.Called(ctx, eventID, username, status)
	return args.Get(0).(int64), args.Error(1)
}

// fakeExporter writes one line per signature.
type fakeExporter struct{}

func (fakeExporter) Export(w io.Writer, eventName string, items []*domain.SignatureListItem) error {
	if _, err := io.WriteString(w, eventName+"\n"); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := io.WriteString(w, it.GuestUsername+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// --- Fixture ---

var testPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func strPtr(s string) *string { return &s }

type fixture struct {
	store *memory.Store
	repos ports.Repositories
	blobs *storage.MemoryBlobs
	bus   *MockEventBus

	auth     *Authorizer
	sessions *KioskSessionService
	lookup   *LookupService
	submit   *SubmissionService
	attest   *AttestationService
	admin    *SignatureAdminService

	event      domain.Event
	otherEvent domain.Event
	entry      domain.EventGuest

	adminUser domain.Staff
	organizer domain.Staff
	crew      domain.Staff
	outsider  domain.Staff
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	nopLogger := zerolog.Nop()

	f := &fixture{
		store: memory.NewStore(),
		blobs: storage.NewMemoryBlobs(),
		bus:   new(MockEventBus),
	}
	f.repos = f.store.Repositories()
	f.bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.adminUser = domain.Staff{UserID: uuid.New(), Role: domain.RoleAdmin, Username: "boss"}
	f.organizer = domain.Staff{UserID: uuid.New(), Role: domain.RoleOrganizer, Username: "arrangor"}
	f.crew = domain.Staff{UserID: uuid.New(), Role: domain.RoleCrew, Username: "crew1"}
	f.outsider = domain.Staff{UserID: uuid.New(), Role: domain.RoleCrew, Username: "crew2"}

	f.event = domain.Event{
		ID:        uuid.New(),
		Name:      "Sommerfest",
		NDATextNo: "Taushetserklæring",
		NDATextEn: "Non-disclosure agreement",
		CreatedBy: &f.organizer.UserID,
	}
	f.otherEvent = domain.Event{ID: uuid.New(), Name: "Vinterfest", NDATextNo: "NDA 2", NDATextEn: "NDA 2"}
	f.store.AddEvent(f.event)
	f.store.AddEvent(f.otherEvent)
	f.store.GrantCrew(f.crew.UserID, f.event.ID)
	f.store.SetPrivacyText(domain.PrivacyText{TextNo: "Personvern", TextEn: "Privacy", Version: 3})

	f.entry = f.store.AddEventGuest(domain.EventGuest{
		EventID:    f.event.ID,
		SmUsername: "ola.nordmann",
		GuestType:  strPtr("vip"),
	})

	f.auth = NewAuthorizer(f.repos.Events, f.repos.EventAccess)
	f.sessions = NewKioskSessionService(f.auth, f.repos.KioskSessions, f.repos.Audit, 0, &nopLogger)
	f.lookup = NewLookupService(f.repos.Guests, f.repos.EventGuests, &nopLogger)
	f.submit = NewSubmissionService(SubmissionDeps{
		Tx:          f.repos.Tx,
		Guests:      f.repos.Guests,
		EventGuests: f.repos.EventGuests,
		Events:      f.repos.Events,
		Signatures:  f.repos.Signatures,
		Privacy:     f.repos.Privacy,
		Blobs:       f.blobs,
		Audit:       f.repos.Audit,
		Bus:         f.bus,
	}, &nopLogger)
	f.attest = NewAttestationService(AttestationDeps{
		Auth:        f.auth,
		Tx:          f.repos.Tx,
		Signatures:  f.repos.Signatures,
		EventGuests: f.repos.EventGuests,
		Blobs:       f.blobs,
		Audit:       f.repos.Audit,
		Bus:         f.bus,
	}, &nopLogger)
	f.admin = NewSignatureAdminService(f.auth, f.repos.Signatures, f.blobs, f.repos.Audit, fakeExporter{}, &nopLogger)
	return f
}

// kioskSession issues a session for the main event as crew.
func (f *fixture) kioskSession(t *testing.T) *domain.KioskSession {
	t.Helper()
	issued, err := f.sessions.Issue(context.Background(), &f.crew, f.event.ID)
	require.NoError(t, err)
	ks, err := f.sessions.Validate(context.Background(), issued.Token, f.event.ID)
	require.NoError(t, err)
	return ks
}

func (f *fixture) submitRequest(username, phone string) SubmitRequest {
	return SubmitRequest{
		Username:        username,
		Phone:           phone,
		FirstName:       "Ola",
		LastName:        "Nordmann",
		Email:           "ola@example.com",
		Location:        "Oslo",
		Language:        domain.LanguageNo,
		ReadConfirmed:   true,
		PrivacyAccepted: true,
		SignaturePNG:    testPNG,
	}
}

func (f *fixture) auditActions() []string {
	var out []string
	for _, e := range f.store.AuditEntries() {
		out = append(out, e.Action)
	}
	return out
}
