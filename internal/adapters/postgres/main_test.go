package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/security"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

var (
	testDB     *DB
	testSecSvc ports.SecurityPort
)

// TestMain connects to TEST_DATABASE_URL and applies the schema. Without it
// every test in this package skips.
func TestMain(m *testing.M) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		os.Exit(m.Run())
	}

	nopLogger := zerolog.Nop()

	key, err := security.GenerateKey()
	if err != nil {
		log.Fatalf("TestMain: Failed to generate key: %v", err)
	}
	testSecSvc, err = security.NewAESServiceFromHex(key, &nopLogger)
	if err != nil {
		log.Fatalf("TestMain: Failed to create security service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	testDB, err = NewDB(ctx, url, 4, &nopLogger)
	if err == nil {
		err = testDB.Migrate(ctx)
	}
	cancel()
	if err != nil {
		log.Fatalf("TestMain: Failed to prepare test database: %v", err)
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("TEST_DATABASE_URL not set")
	}
}

func nopLog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// seed is one event owned by an organizer, with one invited guest entry.
type seed struct {
	organizer uuid.UUID
	event     uuid.UUID
	entry     uuid.UUID
	username  string
	phone     string
}

// seedEvent inserts a fresh profile, event and guest-list entry and removes
// them again when the test ends.
func seedEvent(t *testing.T) seed {
	t.Helper()
	ctx := context.Background()
	suffix := time.Now().UnixNano()
	s := seed{
		organizer: uuid.New(),
		event:     uuid.New(),
		entry:     uuid.New(),
		username:  fmt.Sprintf("guest_%d", suffix),
		phone:     fmt.Sprintf("+47%d", suffix%100000000),
	}

	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO profiles (user_id, role, sm_username) VALUES ($1, 'organizer', $2)`,
			[]any{s.organizer, fmt.Sprintf("org_%d", suffix)}},
		{`INSERT INTO events (id, name, event_date, end_date, nda_text_no, nda_text_en, created_by)
			VALUES ($1, 'Test event', now(), now() + interval '1 day', 'Taushetserklæring', 'NDA', $2)`,
			[]any{s.event, s.organizer}},
		{`INSERT INTO event_guests (id, event_id, sm_username) VALUES ($1, $2, $3)`,
			[]any{s.entry, s.event, s.username}},
	}
	for _, st := range stmts {
		if _, err := testDB.pool.Exec(ctx, st.sql, st.args...); err != nil {
			t.Fatalf("seedEvent: %v", err)
		}
	}

	t.Cleanup(func() {
		ctx := context.Background()
		for _, sql := range []string{
			`DELETE FROM guests WHERE id IN (SELECT guest_id FROM nda_signatures WHERE event_id = $1)`,
			`DELETE FROM events WHERE id = $1`,
		} {
			if _, err := testDB.pool.Exec(ctx, sql, s.event); err != nil {
				t.Logf("Warning: cleanup failed: %v", err)
			}
		}
		testDB.pool.Exec(ctx, `DELETE FROM guests WHERE phone LIKE $1`, s.phone+"%")
		testDB.pool.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, s.organizer)
	})
	return s
}

func newSignature(s seed, guestID uuid.UUID) *domain.NdaSignature {
	return &domain.NdaSignature{
		EventID:              s.event,
		GuestID:              guestID,
		Language:             domain.LanguageNo,
		NDATextSnapshot:      "Taushetserklæring",
		ReadConfirmed:        true,
		PrivacyAccepted:      true,
		PrivacyTextSnapshot:  "Personvern",
		PrivacyVersion:       1,
		SignedAt:             time.Now().UTC(),
		SignatureStoragePath: s.event.String() + "/" + guestID.String() + ".png",
	}
}
