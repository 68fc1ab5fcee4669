package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

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

// MockEventBus
type MockEventBus struct {
	mock.Mock
	Handlers map[string]ports.EventHandler
}

func (m *MockEventBus) Publish(ctx context.Context, topic string, data interface{}) error {
	args := m.Called(ctx, topic, data)
	return args.Error(0)
}
func (m *MockEventBus) Subscribe(topic string, handler ports.EventHandler) {
	m.Called(topic, handler)
	if m.Handlers == nil {
		m.Handlers = make(map[string]ports.EventHandler)
	}
	m.Handlers[topic] = handler
}

func newTestNotifier(t *testing.T) (*MockBotClient, *MockEventBus) {
	t.Helper()
	nopLogger := zerolog.Nop()
	bot := new(MockBotClient)
	bus := new(MockEventBus)
	bus.On("Subscribe", ports.TopicSignaturePending, mock.Anything)
	bus.On("Subscribe", ports.TopicSignatureVerified, mock.Anything)

	NewCrewNotifier(bot, -1001, bus, &nopLogger).Start()
	return bot, bus
}

func TestCrewNotifier_PendingPostsVerifyButton(t *testing.T) {
	bot, bus := newTestNotifier(t)
	sigID := uuid.New()

	bot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p ports.SendMessageParams) bool {
		return p.ChatID == -1001 &&
			strings.HasPrefix(p.Text, "Pending ID check: Ola Nordmann \\(@ola\\_n\\) \\- Summer party") &&
			p.ReplyMarkup != nil &&
			p.ReplyMarkup.Buttons[0][0].Data == "verify_"+sigID.String()
	})).Return(77, nil).Once()

	err := bus.Handlers[ports.TopicSignaturePending](context.Background(), ports.Event{
		Topic: ports.TopicSignaturePending,
		Data: ports.SignaturePendingEvent{
			SignatureID: sigID,
			EventID:     uuid.New(),
			EventName:   "Summer party",
			GuestName:   "Ola Nordmann",
			Username:    "ola_n",
			SignedAt:    time.Now(),
		},
	})
	require.NoError(t, err)
	bot.AssertExpectations(t)
}

func TestCrewNotifier_SendFailureIsReported(t *testing.T) {
	bot, bus := newTestNotifier(t)
	bot.On("SendMessage", mock.Anything, mock.Anything).Return(0, errors.New("telegram down")).Once()

	err := bus.Handlers[ports.TopicSignatureVerified](context.Background(), ports.Event{
		Topic: ports.TopicSignatureVerified,
		Data:  ports.SignatureVerifiedEvent{SignatureID: uuid.New(), Username: "ola"},
	})
	assert.Error(t, err)
}

func TestCrewNotifier_IgnoresForeignPayload(t *testing.T) {
	bot, bus := newTestNotifier(t)

	err := bus.Handlers[ports.TopicSignaturePending](context.Background(), ports.Event{
		Topic: ports.TopicSignaturePending,
		Data:  "not an event",
	})
	assert.NoError(t, err)
	bot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

type fakeSender struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestClient_EditWithoutMarkupDropsKeyboard(t *testing.T) {
	nopLogger := zerolog.Nop()
	api := &fakeSender{}
	c := newClient(api, &nopLogger)

	id, err := c.SendMessage(context.Background(), ports.SendMessageParams{
		ChatID:      1,
		Text:        "hi",
		ReplyMarkup: &ports.ReplyMarkup{Buttons: [][]ports.Button{{{Text: "Go", Data: "verify_x"}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, msg.ReplyMarkup)

	require.NoError(t, c.EditMessageText(context.Background(), ports.EditMessageParams{ChatID: 1, MessageID: 1, Text: "done"}))
	edit, ok := api.sent[1].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Nil(t, edit.ReplyMarkup)
}
