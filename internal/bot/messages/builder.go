package messages

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// VerifyPrefix starts the callback data of every verify button.
const VerifyPrefix = "verify_"

// Builder helps construct complex SendMessageParams.
type Builder struct {
	params ports.SendMessageParams
}

// NewBuilder creates a new message builder.
func NewBuilder(chatID int64) *Builder {
	return &Builder{
		params: ports.SendMessageParams{
			ChatID:    chatID,
			ParseMode: tgbotapi.ModeMarkdownV2, // Default to Markdown
		},
	}
}

// WithText sets the message text.
func (b *Builder) WithText(text string) *Builder {
	b.params.Text = text
	return b
}

// WithParseMode overrides the default parse mode.
func (b *Builder) WithParseMode(mode string) *Builder {
	b.params.ParseMode = mode
	return b
}

// WithInlineButtons adds a set of inline buttons.
func (b *Builder) WithInlineButtons(buttons [][]ports.Button) *Builder {
	b.params.ReplyMarkup = &ports.ReplyMarkup{Buttons: buttons}
	return b
}

// WithVerifyButton adds a single "Verify ID" button for a signature.
func (b *Builder) WithVerifyButton(signatureID uuid.UUID) *Builder {
	return b.WithInlineButtons([][]ports.Button{{VerifyButton("✅ Verify ID", signatureID)}})
}

// Build returns the final SendMessageParams struct.
func (b *Builder) Build() ports.SendMessageParams {
	return b.params
}

// VerifyButton is an inline button that verifies the given signature.
func VerifyButton(text string, signatureID uuid.UUID) ports.Button {
	return ports.Button{Text: text, Data: VerifyPrefix + signatureID.String()}
}

// Escape makes user supplied text safe inside a MarkdownV2 message.
func Escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

// GuestLabel renders "Name (@username)", falling back to the bare handle.
func GuestLabel(name, username string) string {
	if name == "" {
		return "@" + username
	}
	return fmt.Sprintf("%s (@%s)", name, username)
}
