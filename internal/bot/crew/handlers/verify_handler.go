package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/bot/crew"
	"github.com/thoknuts/nda-sm-platform/internal/bot/messages"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

func init() {
	crew.RegisterCallback(NewVerifyHandler)
}

// Callback answers shown to the crew member who pressed the button.
const (
	answerVerified        = "Verified ✅"
	answerAlreadyVerified = "Already verified by someone else."
	answerNoAccess        = "You do not have access to this event."
	answerNotFound        = "This signature no longer exists."
	answerFailed          = "Could not verify, please try again."
)

type verifyHandler struct {
	log         zerolog.Logger
	attestation crew.Attester
	bot         ports.BotClientPort
}

// NewVerifyHandler handles the verify_<signature_id> button.
func NewVerifyHandler(deps crew.Deps, baseLogger *zerolog.Logger) ports.CallbackHandler {
	return &verifyHandler{
		log:         baseLogger.With().Str("component", "verify_handler").Logger(),
		attestation: deps.Attestation,
		bot:         deps.Bot,
	}
}

func (h *verifyHandler) Prefix() string {
	return messages.VerifyPrefix
}

func (h *verifyHandler) Handle(ctx context.Context, update *ports.BotUpdate, staff *domain.Staff) error {
	log := h.log.With().Str("staff_id", staff.UserID.String()).Logger()

	// 1. Parse the callback data
	raw := strings.TrimPrefix(*update.CallbackData, messages.VerifyPrefix)
	signatureID, err := uuid.Parse(raw)
	if err != nil {
		log.Error().Str("data", *update.CallbackData).Msg("Invalid callback data format")
		return h.answer(ctx, update, answerNotFound)
	}
	log = log.With().Str("signature_id", signatureID.String()).Logger()

	// 2. Claim the verification
	res, err := h.attestation.Verify(ctx, staff, signatureID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyVerified):
		log.Info().Msg("Verify lost the race")
		if aerr := h.answer(ctx, update, answerAlreadyVerified); aerr != nil {
			return aerr
		}
		return h.closeMessage(ctx, update, "already verified")
	case errors.Is(err, domain.ErrSignatureNotFound):
		if aerr := h.answer(ctx, update, answerNotFound); aerr != nil {
			return aerr
		}
		return h.closeMessage(ctx, update, "signature deleted")
	case errors.Is(err, domain.ErrNoEventAccess), errors.Is(err, domain.ErrForbiddenRole):
		log.Warn().Err(err).Msg("Verify denied")
		return h.answer(ctx, update, answerNoAccess)
	default:
		_ = h.answer(ctx, update, answerFailed)
		return fmt.Errorf("verify %s: %w", signatureID, err)
	}

	log.Info().Bool("status_propagated", res.StatusPropagated).Msg("Signature verified from Telegram")

	// 3. Stop the spinner and replace the button with who verified it
	if err := h.answer(ctx, update, answerVerified); err != nil {
		return err
	}
	who := staff.Username
	if who == "" {
		who = staff.UserID.String()
	}
	return h.closeMessage(ctx, update, "verified by @"+who)
}

func (h *verifyHandler) answer(ctx context.Context, update *ports.BotUpdate, text string) error {
	return h.bot.AnswerCallbackQuery(ctx, ports.AnswerCallbackParams{
		CallbackQueryID: update.CallbackQueryID,
		Text:            text,
	})
}

// closeMessage appends a status line and removes the button.
func (h *verifyHandler) closeMessage(ctx context.Context, update *ports.BotUpdate, status string) error {
	text := update.Text
	if text != "" {
		text += "\n"
	}
	return h.bot.EditMessageText(ctx, ports.EditMessageParams{
		ChatID:    update.ChatID,
		MessageID: update.MessageID,
		Text:      text + "✅ " + status,
		ParseMode: "", // Plain text
	})
}
