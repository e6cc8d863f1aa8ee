package webhooks

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/soroforge/soroforge/pkg/events"
)

// ErrNotFound is returned for subscriptions that do not exist or are
// not visible to the caller. Ownership mismatches intentionally look
// identical to missing records.
var ErrNotFound = errors.New("subscription not found")

// ErrValidation marks errors caused by the caller's input. Handlers
// check it with errors.Is and answer 400; everything else is a 500.
var ErrValidation = errors.New("invalid request")

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

func validationErrorf(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// Format selects the delivery payload shape. The default JSON format
// carries the signed event envelope; slack and teams render the event
// for the respective chat webhook endpoints.
type Format string

const (
	FormatJSON  Format = "json"
	FormatSlack Format = "slack"
	FormatTeams Format = "teams"
)

// Valid reports whether f is a supported delivery format
func (f Format) Valid() bool {
	switch f {
	case "", FormatJSON, FormatSlack, FormatTeams:
		return true
	}
	return false
}

// Subscription registers a consumer endpoint for platform events.
// Secret is empty on every read after creation; only the truncated
// prefix is exposed.
type Subscription struct {
	ID              string             `json:"id"`
	URL             string             `json:"url"`
	Events          []events.EventType `json:"events"`
	TokenAddress    string             `json:"tokenAddress,omitempty"`
	Format          Format             `json:"format,omitempty"`
	Secret          string             `json:"secret,omitempty"`
	Active          bool               `json:"active"`
	CreatedBy       string             `json:"createdBy"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	LastTriggeredAt *time.Time         `json:"lastTriggeredAt,omitempty"`
}

// WantsEvent reports whether the subscription selected the event type
func (s *Subscription) WantsEvent(event events.EventType) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Matches reports whether an active subscription should receive the
// envelope: the event type must be selected and, when a token filter is
// set, the envelope must carry that token address.
func (s *Subscription) Matches(env events.Envelope) bool {
	if !s.Active {
		return false
	}
	if !s.WantsEvent(env.Event) {
		return false
	}
	if s.TokenAddress != "" && s.TokenAddress != env.TokenAddress() {
		return false
	}
	return true
}

// ValidateURL checks that raw parses as an absolute http or https URL
func ValidateURL(raw string) error {
	if raw == "" {
		return validationErrorf("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return validationErrorf("invalid url: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return validationErrorf("url scheme must be http or https")
	}
	if parsed.Host == "" {
		return validationErrorf("url host is required")
	}
	return nil
}

// ValidateEvents checks that the selection is non-empty and names only
// subscribable event types. WEBHOOK_TEST is valid vocabulary but never
// fans out, so subscribing to it is rejected.
func ValidateEvents(selected []events.EventType) error {
	if len(selected) == 0 {
		return validationErrorf("at least one event type is required")
	}
	seen := make(map[events.EventType]struct{}, len(selected))
	for _, e := range selected {
		if !e.Valid() {
			return validationErrorf("unknown event type: %s", e)
		}
		if e == events.EventWebhookTest {
			return validationErrorf("%s is not subscribable", e)
		}
		if _, dup := seen[e]; dup {
			return validationErrorf("duplicate event type: %s", e)
		}
		seen[e] = struct{}{}
	}
	return nil
}

// DeliveryLog is one delivery attempt, recorded whether it succeeded
// or not. HTTPStatus is zero when the request never produced a
// response. Rows are immutable once written.
type DeliveryLog struct {
	ID             string           `json:"id"`
	SubscriptionID string           `json:"subscriptionId"`
	EventID        string           `json:"eventId"`
	Event          events.EventType `json:"event"`
	URL            string           `json:"url"`
	Attempt        int              `json:"attempt"`
	Success        bool             `json:"succeeded"`
	HTTPStatus     int              `json:"httpStatus,omitempty"`
	Error          string           `json:"errorMessage,omitempty"`
	PayloadDigest  string           `json:"payloadDigest,omitempty"`
	Test           bool             `json:"test,omitempty"`
	DurationMS     int64            `json:"durationMs"`
	AttemptedAt    time.Time        `json:"attemptedAt"`
}

// DeliveryStats aggregates a subscription's delivery history
type DeliveryStats struct {
	Total       int        `json:"total"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	SuccessRate float64    `json:"successRate"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastFailure *time.Time `json:"lastFailure,omitempty"`
}
