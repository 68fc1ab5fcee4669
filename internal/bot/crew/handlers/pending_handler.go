package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/bot/crew"
	"github.com/thoknuts/nda-sm-platform/internal/bot/messages"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

func init() {
	crew.RegisterCommand(NewPendingHandler)
}

// maxPendingButtons caps the keyboard; Telegram rejects huge markups.
const maxPendingButtons = 20

type pendingHandler struct {
	log         zerolog.Logger
	attestation crew.Attester
	bot         ports.BotClientPort
}

// NewPendingHandler handles /pending.
func NewPendingHandler(deps crew.Deps, baseLogger *zerolog.Logger) ports.CommandHandler {
	return &pendingHandler{
		log:         baseLogger.With().Str("component", "pending_handler").Logger(),
		attestation: deps.Attestation,
		bot:         deps.Bot,
	}
}

func (h *pendingHandler) Command() string {
	return "pending"
}

func (h *pendingHandler) Handle(ctx context.Context, update *ports.BotUpdate, staff *domain.Staff) error {
	items, err := h.attestation.ListPending(ctx, staff)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	b := messages.NewBuilder(update.ChatID)
	if len(items) == 0 {
		_, err := h.bot.SendMessage(ctx, b.WithText("No guests are waiting for an ID check\\.").Build())
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*%d pending ID check\\(s\\)*\n", len(items))
	var rows [][]ports.Button
	for i, item := range items {
		label := messages.GuestLabel(
			strings.TrimSpace(item.GuestFirstName+" "+item.GuestLastName),
			item.GuestUsername,
		)
		fmt.Fprintf(&sb, "%d\\. %s \\- %s\n", i+1, messages.Escape(label), messages.Escape(item.EventName))
		if i < maxPendingButtons {
			rows = append(rows, []ports.Button{
				messages.VerifyButton("Verify @"+item.GuestUsername, item.Signature.ID),
			})
		}
	}

	_, err = h.bot.SendMessage(ctx, b.WithText(sb.String()).WithInlineButtons(rows).Build())
	return err
}
