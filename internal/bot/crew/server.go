package crew

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// Server long-polls Telegram for the crew bot and publishes every update
// to the event bus. The router does the actual work.
type Server struct {
	api *tgbotapi.BotAPI
	bus ports.EventBus
	log zerolog.Logger
}

// NewServer creates a new server instance
func NewServer(
	api *tgbotapi.BotAPI,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *Server {
	return &Server{
		api: api,
		bus: bus,
		log: baseLogger.With().Str("component", "crew_server").Logger(),
	}
}

// Start polls until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info().Msg("Starting crew bot in POLLING mode")

	// 1. Clear any existing webhook
	deleteWebhookConfig := tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: false,
	}
	if _, err := s.api.Request(deleteWebhookConfig); err != nil {
		s.log.Warn().Err(err).Msg("Failed to delete webhook (continuing anyway)")
	}

	// 2. Listen for messages and button presses
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := s.api.GetUpdatesChan(u)
	s.log.Info().Msg("Polling update listener started")

	// 3. Main loop: Poll and Publish
	for {
		select {
		case <-ctx.Done():
			s.api.StopReceivingUpdates()
			s.log.Info().Msg("Polling stopped gracefully")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			s.publishUpdateToBus(ctx, update)
		}
	}
}

// publishUpdateToBus inspects the update and publishes it to the correct topic.
func (s *Server) publishUpdateToBus(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil:
		err = s.bus.Publish(ctx, ports.TopicCrewBotMessage, update)
	case update.CallbackQuery != nil:
		err = s.bus.Publish(ctx, ports.TopicCrewBotCallbackQuery, update)
	default:
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int("update_id", update.UpdateID).Msg("Failed to publish update")
	}
}
