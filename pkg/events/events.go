package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a platform occurrence that can trigger webhook deliveries
type EventType string

const (
	EventTokenCreated     EventType = "TOKEN_CREATED"
	EventTokenSelfBurn    EventType = "TOKEN_SELF_BURN"
	EventTokenAdminBurn   EventType = "TOKEN_ADMIN_BURN"
	EventTokenBatchBurn   EventType = "TOKEN_BATCH_BURN"
	EventTokenClawback    EventType = "TOKEN_CLAWBACK"
	EventFactoryPaused    EventType = "FACTORY_PAUSED"
	EventFactoryUnpaused  EventType = "FACTORY_UNPAUSED"
	EventFeeUpdated       EventType = "FEE_UPDATED"
	EventAdminTransferred EventType = "ADMIN_TRANSFERRED"

	// EventWebhookTest is synthesized for manual subscription tests and is
	// never fired by the chain watcher.
	EventWebhookTest EventType = "WEBHOOK_TEST"
)

// All returns the full event vocabulary, including the synthetic
// WEBHOOK_TEST type.
func All() []EventType {
	return []EventType{
		EventTokenCreated,
		EventTokenSelfBurn,
		EventTokenAdminBurn,
		EventTokenBatchBurn,
		EventTokenClawback,
		EventFactoryPaused,
		EventFactoryUnpaused,
		EventFeeUpdated,
		EventAdminTransferred,
		EventWebhookTest,
	}
}

// Subscribable returns the event types a subscription may select.
// WEBHOOK_TEST is excluded: test envelopes are produced only by manual
// test deliveries and never fan out.
func Subscribable() []EventType {
	return []EventType{
		EventTokenCreated,
		EventTokenSelfBurn,
		EventTokenAdminBurn,
		EventTokenBatchBurn,
		EventTokenClawback,
		EventFactoryPaused,
		EventFactoryUnpaused,
		EventFeeUpdated,
		EventAdminTransferred,
	}
}

// Valid reports whether e names a known event type
func (e EventType) Valid() bool {
	for _, known := range All() {
		if e == known {
			return true
		}
	}
	return false
}

// Parse converts a string into a known EventType
func Parse(s string) (EventType, error) {
	e := EventType(s)
	if !e.Valid() {
		return "", fmt.Errorf("unknown event type: %s", s)
	}
	return e, nil
}

// Envelope is a domain event as produced by the platform. ID and
// Timestamp are assigned at construction; Data carries event-specific
// fields keyed by the names documented on each builder.
type Envelope struct {
	ID        string                 `json:"id"`
	Event     EventType              `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEnvelope wraps event data in a fresh envelope
func NewEnvelope(event EventType, data map[string]interface{}) Envelope {
	if data == nil {
		data = make(map[string]interface{})
	}
	return Envelope{
		ID:        "evt_" + uuid.New().String(),
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// TokenAddress returns the token contract address carried in the
// payload, or "" for events that are not token-scoped.
func (e Envelope) TokenAddress() string {
	if v, ok := e.Data["token_address"].(string); ok {
		return v
	}
	return ""
}
