package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thoknuts/nda-sm-platform/internal/bot/crew"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/core/services"
)

// MockAttester
type MockAttester struct {
	mock.Mock
}

func (m *MockAttester) Verify(ctx context.Context, caller *domain.Staff, id uuid.UUID) (*services.VerifyResult, error) {
	args := m.Called(ctx, caller, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.VerifyResult), args.Error(1)
}
func (m *MockAttester) ListPending(ctx context.Context, caller *domain.Staff) ([]*domain.SignatureListItem, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SignatureListItem), args.Error(1)
}

// MockBotClient
type MockBotClient struct {
	mock.Mock
}

func (m *MockBotClient) SendMessage(ctx context.Context, params ports.SendMessageParams) (int, error) {
	args := m.Called(ctx, params)
	return args.Int(0), args.Error(1)
}
func (m *MockBotClient) SetMenuCommands(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockBotClient) EditMessageText(ctx context.Context, params ports.EditMessageParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
func (m *MockBotClient) AnswerCallbackQuery(ctx context.Context, params ports.AnswerCallbackParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func setup() (*MockAttester, *MockBotClient, crew.Deps, *zerolog.Logger) {
	nopLogger := zerolog.Nop()
	att := new(MockAttester)
	bot := new(MockBotClient)
	return att, bot, crew.Deps{Attestation: att, Bot: bot}, &nopLogger
}

func verifyUpdate(data string) *ports.BotUpdate {
	return &ports.BotUpdate{
		MessageID:       10,
		ChatID:          -100,
		UserID:          789,
		Text:            "Pending ID check: Ola (@ola) - Party",
		CallbackQueryID: "cb1",
		CallbackData:    &data,
	}
}

func TestVerifyHandler_Success(t *testing.T) {
	att, bot, deps, log := setup()
	h := NewVerifyHandler(deps, log)
	staff := &domain.Staff{UserID: uuid.New(), Role: domain.RoleCrew, Username: "kari"}
	sigID := uuid.New()

	att.On("Verify", mock.Anything, staff, sigID).Return(&services.VerifyResult{
		SignatureID: sigID, VerifiedAt: time.Now(), VerifiedBy: staff.UserID, StatusPropagated: true,
	}, nil).Once()
	bot.On("AnswerCallbackQuery", mock.Anything, ports.AnswerCallbackParams{CallbackQueryID: "cb1", Text: answerVerified}).Return(nil).Once()
	bot.On("EditMessageText", mock.Anything, mock.MatchedBy(func(p ports.EditMessageParams) bool {
		return p.MessageID == 10 && p.ReplyMarkup == nil && strings.HasSuffix(p.Text, "verified by @kari")
	})).Return(nil).Once()

	require.NoError(t, h.Handle(context.Background(), verifyUpdate("verify_"+sigID.String()), staff))
	att.AssertExpectations(t)
	bot.AssertExpectations(t)
}

func TestVerifyHandler_AlreadyVerified(t *testing.T) {
	att, bot, deps, log := setup()
	h := NewVerifyHandler(deps, log)
	staff := &domain.Staff{UserID: uuid.New(), Role: domain.RoleCrew}
	sigID := uuid.New()

	att.On("Verify", mock.Anything, staff, sigID).Return(nil, domain.ErrAlreadyVerified).Once()
	bot.On("AnswerCallbackQuery", mock.Anything, ports.AnswerCallbackParams{CallbackQueryID: "cb1", Text: answerAlreadyVerified}).Return(nil).Once()
	bot.On("EditMessageText", mock.Anything, mock.Anything).Return(nil).Once()

	require.NoError(t, h.Handle(context.Background(), verifyUpdate("verify_"+sigID.String()), staff))
	bot.AssertExpectations(t)
}

func TestVerifyHandler_NoAccessKeepsButton(t *testing.T) {
	att, bot, deps, log := setup()
	h := NewVerifyHandler(deps, log)
	staff := &domain.Staff{UserID: uuid.New(), Role: domain.RoleCrew}
	sigID := uuid.New()

	att.On("Verify", mock.Anything, staff, sigID).Return(nil, domain.ErrNoEventAccess).Once()
	bot.On("AnswerCallbackQuery", mock.Anything, ports.AnswerCallbackParams{CallbackQueryID: "cb1", Text: answerNoAccess}).Return(nil).Once()

	require.NoError(t, h.Handle(context.Background(), verifyUpdate("verify_"+sigID.String()), staff))
	bot.AssertNotCalled(t, "EditMessageText", mock.Anything, mock.Anything)
}

func TestVerifyHandler_TransientErrorIsReturned(t *testing.T) {
	att, bot, deps, log := setup()
	h := NewVerifyHandler(deps, log)
	staff := &domain.Staff{UserID: uuid.New(), Role: domain.RoleCrew}
	sigID := uuid.New()

	att.On("Verify", mock.Anything, staff, sigID).Return(nil, errors.New("db down")).Once()
	bot.On("AnswerCallbackQuery", mock.Anything, mock.Anything).Return(nil).Once()

	assert.Error(t, h.Handle(context.Background(), verifyUpdate("verify_"+sigID.String()), staff))
}

func TestVerifyHandler_BadData(t *testing.T) {
	att, bot, deps, log := setup()
	h := NewVerifyHandler(deps, log)

	bot.On("AnswerCallbackQuery", mock.Anything, ports.AnswerCallbackParams{CallbackQueryID: "cb1", Text: answerNotFound}).Return(nil).Once()

	require.NoError(t, h.Handle(context.Background(), verifyUpdate("verify_nope"), &domain.Staff{Role: domain.RoleCrew}))
	att.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestPendingHandler_ListsWithButtons(t *testing.T) {
	att, bot, deps, log := setup()
	h := NewPendingHandler(deps, log)
	staff := &domain.Staff{UserID: uuid.New(), Role: domain.RoleOrganizer}
	sigID := uuid.New()

	att.On("ListPending", mock.Anything, staff).Return([]*domain.SignatureListItem{{
		Signature:      domain.NdaSignature{ID: sigID},
		EventName:      "Party",
		GuestFirstName: "Ola",
		GuestUsername:  "ola",
	}}, nil).Once()
	bot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p ports.SendMessageParams) bool {
		return p.ChatID == -100 &&
			strings.Contains(p.Text, "Ola \\(@ola\\) \\- Party") &&
			p.ReplyMarkup.Buttons[0][0].Data == "verify_"+sigID.String()
	})).Return(1, nil).Once()

	update := &ports.BotUpdate{ChatID: -100, Command: "pending"}
	require.NoError(t, h.Handle(context.Background(), update, staff))
	bot.AssertExpectations(t)
}

func TestPendingHandler_Empty(t *testing.T) {
	att, bot, deps, log := setup()
	h := NewPendingHandler(deps, log)
	staff := &domain.Staff{UserID: uuid.New(), Role: domain.RoleCrew}

	att.On("ListPending", mock.Anything, staff).Return([]*domain.SignatureListItem{}, nil).Once()
	bot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p ports.SendMessageParams) bool {
		return p.ReplyMarkup == nil && strings.HasPrefix(p.Text, "No guests")
	})).Return(1, nil).Once()

	require.NoError(t, h.Handle(context.Background(), &ports.BotUpdate{ChatID: 5}, staff))
	bot.AssertExpectations(t)
}
