package webhooks

import (
	"context"

	"github.com/soroforge/soroforge/pkg/events"
)

// Matcher selects the subscriptions an event envelope should reach
type Matcher struct {
	subs SubscriptionStore
}

// NewMatcher creates a matcher over the subscription store
func NewMatcher(subs SubscriptionStore) *Matcher {
	return &Matcher{subs: subs}
}

// FindMatching returns every active subscription whose event selection
// and token filter accept the envelope. Subscriptions carry their full
// secret; callers must not expose the result.
func (m *Matcher) FindMatching(ctx context.Context, env events.Envelope) ([]*Subscription, error) {
	candidates, err := m.subs.ListActiveByEvent(ctx, env.Event)
	if err != nil {
		return nil, err
	}

	matched := candidates[:0]
	for _, sub := range candidates {
		if sub.Matches(env) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}
