package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/memory"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/shared/token"
)

// seedDev fills an in-memory store with an admin, one event and a short
// guest list so the kiosk flow can be tried without a database.
func seedDev(store *memory.Store, baseLogger *zerolog.Logger) error {
	bearer, err := token.Generate()
	if err != nil {
		return fmt.Errorf("seed dev admin: %w", err)
	}
	admin := domain.Staff{UserID: uuid.New(), Role: domain.RoleAdmin, Username: "dev.admin"}
	store.AddStaff(bearer, admin)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	event := domain.Event{
		ID:        uuid.New(),
		Name:      "Dev event",
		EventDate: today,
		EndDate:   today.Add(24 * time.Hour),
		NDATextNo: "Jeg forplikter meg til ikke å dele bilder eller informasjon fra arrangementet.",
		NDATextEn: "I agree not to share photos or information from the event.",
		CreatedBy: &admin.UserID,
	}
	store.AddEvent(event)
	store.SetPrivacyText(domain.PrivacyText{
		TextNo:  "Vi lagrer navn, telefon og signatur for dette arrangementet.",
		TextEn:  "We store your name, phone and signature for this event.",
		Version: 1,
	})

	for _, username := range []string{"ola.nordmann", "kari.nordmann"} {
		store.AddEventGuest(domain.EventGuest{EventID: event.ID, SmUsername: username})
	}

	log := baseLogger.With().Str("component", "dev_seed").Logger()
	log.Info().
		Str("event_id", event.ID.String()).
		Str("admin_token", bearer).
		Msg("Seeded dev data, use admin_token as the staff bearer token")
	return nil
}
