package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/bot/crew"
	_ "github.com/thoknuts/nda-sm-platform/internal/bot/crew/handlers" // registers crew handlers
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/shared/config"
)

// Orchestrator wires the crew bot: notifier, router and polling server.
type Orchestrator struct {
	cfg         config.TelegramConfig
	debug       bool
	identity    ports.StaffIdentityProvider
	attestation crew.Attester
	bus         ports.EventBus
	baseLogger  *zerolog.Logger
}

// NewOrchestrator creates a new bot orchestrator.
func NewOrchestrator(
	cfg config.TelegramConfig,
	debug bool,
	identity ports.StaffIdentityProvider,
	attestation crew.Attester,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		debug:       debug,
		identity:    identity,
		attestation: attestation,
		bus:         bus,
		baseLogger:  baseLogger,
	}
}

// Start connects to Telegram, subscribes the notifier and router, then
// polls until ctx is done.
func (o *Orchestrator) Start(ctx context.Context) error {
	log := o.baseLogger.With().Str("bot", "crew").Logger()

	// 1. Create API
	api, err := tgbotapi.NewBotAPI(o.cfg.Token)
	if err != nil {
		return fmt.Errorf("connect crew bot: %w", err)
	}
	api.Debug = o.debug
	log.Info().Str("username", api.Self.UserName).Msg("Bot API connected")

	// 2. Create Client (Adapter)
	client := NewClient(api, &log)

	// 3. Notifications to the crew chat
	NewCrewNotifier(client, o.cfg.CrewChatID, o.bus, &log).Start()

	// 4. Create Router and register handlers
	router := crew.NewRouter(o.identity, client, o.bus, &log)
	crew.RegisterAllHandlers(router, crew.Deps{Attestation: o.attestation, Bot: client}, &log)

	// 5. Set Menu
	if err := client.SetMenuCommands(ctx); err != nil {
		log.Warn().Err(err).Msg("Continuing without command menu")
	}

	// 6. Create and Start Server
	return crew.NewServer(api, o.bus, &log).Start(ctx)
}
