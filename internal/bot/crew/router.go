package crew

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// Router holds all routing logic for the crew bot.
type Router struct {
	log              zerolog.Logger
	identity         ports.StaffIdentityProvider
	botClient        ports.BotClientPort
	commandHandlers  map[string]ports.CommandHandler
	callbackHandlers []ports.CallbackHandler
}

// NewRouter creates the crew bot router and subscribes it to the bot topics.
func NewRouter(
	identity ports.StaffIdentityProvider,
	botClient ports.BotClientPort,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *Router {
	r := &Router{
		log:             baseLogger.With().Str("component", "crew_router").Logger(),
		identity:        identity,
		botClient:       botClient,
		commandHandlers: make(map[string]ports.CommandHandler),
	}
	bus.Subscribe(ports.TopicCrewBotMessage, r.handleEvent)
	bus.Subscribe(ports.TopicCrewBotCallbackQuery, r.handleEvent)
	return r
}

// RegisterCommandHandler
func (r *Router) RegisterCommandHandler(handler ports.CommandHandler) {
	cmd := handler.Command()
	r.commandHandlers[cmd] = handler
	r.log.Info().Str("command", cmd).Msg("Registered crew command")
}

// RegisterCallbackHandler
func (r *Router) RegisterCallbackHandler(handler ports.CallbackHandler) {
	r.callbackHandlers = append(r.callbackHandlers, handler)
	r.log.Info().Str("prefix", handler.Prefix()).Msg("Registered crew callback")
}

func (r *Router) handleEvent(ctx context.Context, event ports.Event) error {
	switch u := event.Data.(type) {
	case tgbotapi.Update:
		r.HandleUpdate(ctx, &u)
	case *tgbotapi.Update:
		r.HandleUpdate(ctx, u)
	default:
		r.log.Error().Str("topic", event.Topic).Msgf("Unexpected payload %T", event.Data)
	}
	return nil
}

// HandleUpdate is the main entry point for the crew bot.
func (r *Router) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	// 1. Convert to our generic BotUpdate
	botUpdate, isSupported := parseUpdate(update)
	if !isSupported {
		r.log.Warn().Int("update_id", update.UpdateID).Msg("Received unsupported update type")
		return
	}

	// 2. Add logger context
	ctxLogger := r.log.With().
		Int64("user_id", botUpdate.UserID).
		Int64("chat_id", botUpdate.ChatID).
		Logger()
	ctx = ctxLogger.WithContext(ctx)

	// 3. Security check: only linked staff may use the bot
	staff, err := r.identity.GetByTelegramID(ctx, botUpdate.UserID)
	if err != nil {
		ctxLogger.Error().Err(err).Msg("Failed to get staff for security check")
		return
	}
	if staff == nil || !staff.Role.Valid() {
		ctxLogger.Warn().Msg("Unauthorized user tried to access crew bot")
		if botUpdate.CallbackQueryID != "" {
			_ = r.botClient.AnswerCallbackQuery(ctx, ports.AnswerCallbackParams{
				CallbackQueryID: botUpdate.CallbackQueryID,
				Text:            "Your Telegram account is not linked to a crew profile.",
				ShowAlert:       true,
			})
		}
		return
	}
	ctx = ctxLogger.With().Str("staff_id", staff.UserID.String()).Logger().WithContext(ctx)

	// 4. Route callbacks
	if botUpdate.CallbackData != nil {
		data := *botUpdate.CallbackData
		for _, handler := range r.callbackHandlers {
			if strings.HasPrefix(data, handler.Prefix()) {
				if err := handler.Handle(ctx, botUpdate, staff); err != nil {
					ctxLogger.Error().Err(err).Str("prefix", handler.Prefix()).Msg("Crew callback handler failed")
				}
				return
			}
		}
		ctxLogger.Warn().Str("data", data).Msg("No handler for callback")
		_ = r.botClient.AnswerCallbackQuery(ctx, ports.AnswerCallbackParams{CallbackQueryID: botUpdate.CallbackQueryID})
		return
	}

	// 5. Route commands
	if botUpdate.Command != "" {
		if handler, ok := r.commandHandlers[botUpdate.Command]; ok {
			ctxLogger.Info().Str("handler", botUpdate.Command).Msg("Routing to crew command handler")
			if err := handler.Handle(ctx, botUpdate, staff); err != nil {
				ctxLogger.Error().Err(err).Msg("Crew command handler failed")
			}
			return
		}
	}

	ctxLogger.Debug().Msg("Crew bot received unhandled update")
}

func parseUpdate(update *tgbotapi.Update) (*ports.BotUpdate, bool) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return nil, false
		}
		data := cb.Data
		return &ports.BotUpdate{
			MessageID:       cb.Message.MessageID,
			ChatID:          cb.Message.Chat.ID,
			UserID:          cb.From.ID,
			Text:            cb.Message.Text,
			CallbackQueryID: cb.ID,
			CallbackData:    &data,
		}, true
	}

	if msg := update.Message; msg != nil {
		if msg.From == nil || msg.Chat == nil {
			return nil, false
		}
		return &ports.BotUpdate{
			MessageID: msg.MessageID,
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			Text:      msg.Text,
			Command:   msg.Command(),
		}, true
	}

	return nil, false
}
