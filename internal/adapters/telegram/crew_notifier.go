package telegram

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/bot/messages"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// CrewNotifier posts signature lifecycle events to the crew chat.
// It only listens on the bus; services never call it directly.
type CrewNotifier struct {
	bot    ports.BotClientPort
	chatID int64
	bus    ports.EventBus
	log    zerolog.Logger
}

// NewCrewNotifier creates the notifier. Call Start to subscribe it.
func NewCrewNotifier(
	bot ports.BotClientPort,
	chatID int64,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *CrewNotifier {
	return &CrewNotifier{
		bot:    bot,
		chatID: chatID,
		bus:    bus,
		log:    baseLogger.With().Str("component", "crew_notifier").Logger(),
	}
}

// Start subscribes to the signature topics.
func (n *CrewNotifier) Start() {
	n.bus.Subscribe(ports.TopicSignaturePending, n.handlePending)
	n.bus.Subscribe(ports.TopicSignatureVerified, n.handleVerified)
	n.log.Info().Int64("chat_id", n.chatID).Msg("Crew notifier subscribed")
}

func (n *CrewNotifier) handlePending(ctx context.Context, event ports.Event) error {
	ev, ok := event.Data.(ports.SignaturePendingEvent)
	if !ok {
		n.log.Error().Str("topic", event.Topic).Msgf("Unexpected payload %T", event.Data)
		return nil
	}

	text := fmt.Sprintf("Pending ID check: %s \\- %s",
		messages.Escape(messages.GuestLabel(ev.GuestName, ev.Username)),
		messages.Escape(ev.EventName),
	)
	if ev.GuestType != nil && *ev.GuestType != "" {
		text += "\nType: " + messages.Escape(*ev.GuestType)
	}

	params := messages.NewBuilder(n.chatID).
		WithText(text).
		WithVerifyButton(ev.SignatureID).
		Build()

	msgID, err := n.bot.SendMessage(ctx, params)
	if err != nil {
		return fmt.Errorf("notify pending %s: %w", ev.SignatureID, err)
	}
	n.log.Info().
		Str("signature_id", ev.SignatureID.String()).
		Int("message_id", msgID).
		Msg("Posted pending ID check")
	return nil
}

func (n *CrewNotifier) handleVerified(ctx context.Context, event ports.Event) error {
	ev, ok := event.Data.(ports.SignatureVerifiedEvent)
	if !ok {
		n.log.Error().Str("topic", event.Topic).Msgf("Unexpected payload %T", event.Data)
		return nil
	}

	params := messages.NewBuilder(n.chatID).
		WithText(fmt.Sprintf("✅ %s verified", messages.Escape("@"+ev.Username))).
		Build()
	if _, err := n.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("notify verified %s: %w", ev.SignatureID, err)
	}
	return nil
}
