package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Topics published on the in-process bus.
const (
	TopicSignaturePending     = "signature:pending"
	TopicSignatureVerified    = "signature:verified"
	TopicCrewBotCallbackQuery = "telegram:crew:callback_query"
	TopicCrewBotMessage       = "telegram:crew:message"
)

// Event is a generic wrapper for any event payload
type Event struct {
	Topic string
	Data  interface{}
}

// EventHandler is a function that can handle a specific event
type EventHandler func(ctx context.Context, event Event) error

// EventBus defines the interface for our in-process pub/sub system
type EventBus interface {
	// Publish sends an event to all subscribers of a topic
	Publish(ctx context.Context, topic string, data interface{}) error

	// Subscribe registers a handler for a specific topic
	Subscribe(topic string, handler EventHandler)
}

// SignaturePendingEvent is the payload of TopicSignaturePending.
type SignaturePendingEvent struct {
	SignatureID uuid.UUID
	EventID     uuid.UUID
	EventName   string
	GuestName   string
	Username    string
	GuestType   *string
	SignedAt    time.Time
}

// SignatureVerifiedEvent is the payload of TopicSignatureVerified.
type SignatureVerifiedEvent struct {
	SignatureID uuid.UUID
	EventID     uuid.UUID
	Username    string
	VerifiedBy  uuid.UUID
	VerifiedAt  time.Time
}
