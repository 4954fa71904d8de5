// Package notify carries change events from services to subscribed clients.
// LocalBroker fans out inside one process; RedisBroker fans out across
// server instances over Redis pub/sub.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types published by the services
const (
	EventWalletUpdated    = "wallet.updated"
	EventRechargeCreated  = "recharge.created"
	EventRechargeResolved = "recharge.resolved"
	EventImageCreated     = "image.created"
	EventChatMessage      = "chat.message"
	EventChatStatus       = "chat.status"
	EventSiren            = "admin.siren"
	EventRestored         = "admin.restored"
)

// AdminTopic receives every event an operator dashboard cares about
const AdminTopic = "admin"

// UserTopic is the topic of events concerning one user
func UserTopic(userID string) string {
	return "user:" + userID
}

// Event is one change notification
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with an id and the current time
func NewEvent(eventType string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher sends events to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

// Broker is a Publisher that can also be subscribed to.
// The returned channel closes once ctx is done.
type Broker interface {
	Publisher
	Subscribe(ctx context.Context, topics ...string) (<-chan Event, error)
}

// Sink receives operator alerts outside the event stream
type Sink interface {
	Alert(ctx context.Context, text string) error
}
