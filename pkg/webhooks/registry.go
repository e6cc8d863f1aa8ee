package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soroforge/soroforge/pkg/audit"
	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/observability"
)

// Registry manages the subscription lifecycle. It owns secret
// generation and redaction: the full signing secret leaves the
// registry exactly once, in the Create result, and every later read
// carries only a truncated prefix.
type Registry struct {
	subs    SubscriptionStore
	logs    DeliveryLogStore
	auditor audit.Logger
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRegistry creates a registry over the given stores. The auditor
// may be nil to disable audit recording.
func NewRegistry(subs SubscriptionStore, logs DeliveryLogStore, auditor audit.Logger, logger *observability.Logger, metrics *observability.Metrics) *Registry {
	if auditor == nil {
		auditor = audit.NewNoopLogger()
	}
	return &Registry{
		subs:    subs,
		logs:    logs,
		auditor: auditor,
		logger:  logger,
		metrics: metrics,
	}
}

// CreateParams are the caller-supplied fields of a new subscription
type CreateParams struct {
	URL          string
	Events       []events.EventType
	TokenAddress string
	Format       Format
	CreatedBy    string
}

// Create registers a new subscription and returns it with the full
// secret populated. This is the only time the secret is readable;
// store it on receipt.
func (reg *Registry) Create(ctx context.Context, params CreateParams) (*Subscription, error) {
	if err := ValidateURL(params.URL); err != nil {
		return nil, err
	}
	if err := ValidateEvents(params.Events); err != nil {
		return nil, err
	}
	if !params.Format.Valid() {
		return nil, validationErrorf("unknown format: %s", params.Format)
	}
	if params.CreatedBy == "" {
		return nil, validationErrorf("createdBy is required")
	}

	secret, err := GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}

	format := params.Format
	if format == "" {
		format = FormatJSON
	}

	now := time.Now().UTC()
	sub := &Subscription{
		ID:           "sub_" + uuid.New().String(),
		URL:          params.URL,
		Events:       append([]events.EventType(nil), params.Events...),
		TokenAddress: params.TokenAddress,
		Format:       format,
		Secret:       secret,
		Active:       true,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := reg.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("storing subscription: %w", err)
	}

	reg.audit(ctx, audit.ActionSubscriptionCreate, audit.StatusSuccess, sub.ID, fmt.Sprintf("subscribed %s to %d event types", sub.URL, len(sub.Events)))
	reg.refreshActiveGauge(ctx)

	if reg.logger != nil {
		reg.logger.WithFields(map[string]interface{}{
			"subscription_id": sub.ID,
			"url":             sub.URL,
			"events":          len(sub.Events),
		}).Info("webhook subscription created")
	}

	return cloneSubscription(sub), nil
}

// Get returns the subscription with its secret truncated
func (reg *Registry) Get(ctx context.Context, id string) (*Subscription, error) {
	sub, err := reg.subs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Secret = TruncateSecret(sub.Secret)
	return sub, nil
}

// GetForOwner returns the subscription when owner created it. A
// mismatch returns ErrNotFound so callers cannot probe for IDs they
// do not own.
func (reg *Registry) GetForOwner(ctx context.Context, id, owner string) (*Subscription, error) {
	sub, err := reg.subs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.CreatedBy != owner {
		return nil, ErrNotFound
	}
	sub.Secret = TruncateSecret(sub.Secret)
	return sub, nil
}

// List returns the owner's subscriptions with secrets truncated,
// newest first. A non-nil activeOnly filters by active state.
func (reg *Registry) List(ctx context.Context, owner string, activeOnly *bool) ([]*Subscription, error) {
	subs, err := reg.subs.ListByOwner(ctx, owner, activeOnly)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		sub.Secret = TruncateSecret(sub.Secret)
	}
	return subs, nil
}

// SetActive pauses or resumes a subscription. Toggling to the current
// state is a no-op, not an error.
func (reg *Registry) SetActive(ctx context.Context, id string, active bool) (*Subscription, error) {
	sub, err := reg.subs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Active != active {
		sub.Active = active
		sub.UpdatedAt = time.Now().UTC()
		if err := reg.subs.Update(ctx, sub); err != nil {
			return nil, fmt.Errorf("updating subscription: %w", err)
		}
		reg.audit(ctx, audit.ActionSubscriptionToggle, audit.StatusSuccess, sub.ID, fmt.Sprintf("active set to %t", active))
		reg.refreshActiveGauge(ctx)
	}

	sub.Secret = TruncateSecret(sub.Secret)
	return sub, nil
}

// Delete removes the owner's subscription and its delivery history.
// Ownership mismatches are audited and reported as ErrNotFound.
func (reg *Registry) Delete(ctx context.Context, id, owner string) error {
	sub, err := reg.subs.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.CreatedBy != owner {
		entry := audit.NewEntry(ctx, nil, audit.ActionSubscriptionDelete, audit.StatusDenied)
		entry.SubjectType = audit.SubjectSubscription
		entry.SubjectID = id
		entry.Actor = owner
		entry.Message = "caller does not own subscription"
		if recordErr := reg.auditor.Record(ctx, entry); recordErr != nil && reg.logger != nil {
			reg.logger.WithError(recordErr).Warn("audit record failed")
		}
		return ErrNotFound
	}

	if err := reg.subs.Delete(ctx, id); err != nil {
		return err
	}
	if err := reg.logs.DeleteBySubscription(ctx, id); err != nil && reg.logger != nil {
		reg.logger.WithError(err).WithField("subscription_id", id).Warn("deleting delivery logs failed")
	}

	reg.audit(ctx, audit.ActionSubscriptionDelete, audit.StatusSuccess, id, "subscription removed")
	reg.refreshActiveGauge(ctx)

	return nil
}

// Logs returns up to limit delivery attempts for the subscription,
// newest first. The subscription must exist.
func (reg *Registry) Logs(ctx context.Context, id string, limit int) ([]*DeliveryLog, error) {
	if _, err := reg.subs.Get(ctx, id); err != nil {
		return nil, err
	}
	return reg.logs.ListBySubscription(ctx, id, limit)
}

// Stats aggregates the subscription's delivery history
func (reg *Registry) Stats(ctx context.Context, id string) (*DeliveryStats, error) {
	if _, err := reg.subs.Get(ctx, id); err != nil {
		return nil, err
	}
	return reg.logs.Stats(ctx, id)
}

// RecordTriggered stamps the subscription's last successful delivery
// time. Concurrent deliveries race benignly; the last write wins.
func (reg *Registry) RecordTriggered(ctx context.Context, id string, at time.Time) error {
	sub, err := reg.subs.Get(ctx, id)
	if err != nil {
		return err
	}
	t := at.UTC()
	sub.LastTriggeredAt = &t
	sub.UpdatedAt = time.Now().UTC()
	return reg.subs.Update(ctx, sub)
}

func (reg *Registry) audit(ctx context.Context, action audit.Action, status audit.Status, subjectID, message string) {
	entry := audit.NewEntry(ctx, nil, action, status)
	entry.SubjectType = audit.SubjectSubscription
	entry.SubjectID = subjectID
	entry.Message = message
	if err := reg.auditor.Record(ctx, entry); err != nil && reg.logger != nil {
		reg.logger.WithError(err).Warn("audit record failed")
	}
}

func (reg *Registry) refreshActiveGauge(ctx context.Context) {
	if reg.metrics == nil {
		return
	}
	count, err := reg.subs.CountActive(ctx)
	if err != nil {
		return
	}
	reg.metrics.SubscriptionsActive.Set(float64(count))
}
