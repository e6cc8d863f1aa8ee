package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soroforge/soroforge/pkg/async"
	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/observability"
)

const (
	// userAgent identifies delivery requests to consumer endpoints
	userAgent = "SoroForge-Webhooks/1.0"

	// maxResponseDrain bounds how much of a consumer response body is
	// read before closing, enough to keep connections reusable.
	maxResponseDrain = 4 * 1024
)

// Delivery request headers
const (
	HeaderEvent     = "X-Soroforge-Event"
	HeaderEventID   = "X-Soroforge-Event-ID"
	HeaderDelivery  = "X-Soroforge-Delivery"
	HeaderSignature = "X-Soroforge-Signature"
)

// DispatcherConfig tunes delivery concurrency and retry behavior
type DispatcherConfig struct {
	Retry          RetryConfig
	AttemptTimeout time.Duration
	Workers        int
}

// DefaultDispatcherConfig returns the default dispatcher configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Retry:          DefaultRetryConfig(),
		AttemptTimeout: 10 * time.Second,
		Workers:        16,
	}
}

// Dispatcher fans events out to matching subscriptions. Each delivery
// runs as one worker task that retries in place with backoff, so a
// delivery's attempts are strictly sequential while deliveries to
// different subscriptions proceed concurrently.
type Dispatcher struct {
	subs           SubscriptionStore
	matcher        *Matcher
	registry       *Registry
	logs           DeliveryLogStore
	policy         *RetryPolicy
	client         *http.Client
	pool           *async.WorkerPool
	attemptTimeout time.Duration
	logger         *observability.Logger
	metrics        *observability.Metrics
	done           chan struct{}
	shutdownOnce   sync.Once
}

// NewDispatcher creates a dispatcher and starts its delivery workers.
// The worker task budget covers a full retry cycle, so retries are
// never cut off mid-delivery under normal operation.
func NewDispatcher(ctx context.Context, cfg DispatcherConfig, subs SubscriptionStore, registry *Registry, logs DeliveryLogStore, logger *observability.Logger, metrics *observability.Metrics) *Dispatcher {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 16
	}

	policy := NewRetryPolicy(cfg.Retry)
	taskBudget := policy.MaxElapsed(cfg.AttemptTimeout) + 5*time.Second

	d := &Dispatcher{
		subs:           subs,
		matcher:        NewMatcher(subs),
		registry:       registry,
		logs:           logs,
		policy:         policy,
		client:         &http.Client{Timeout: cfg.AttemptTimeout},
		pool:           async.NewWorkerPool(ctx, cfg.Workers, "webhook delivery", taskBudget),
		attemptTimeout: cfg.AttemptTimeout,
		logger:         logger,
		metrics:        metrics,
		done:           make(chan struct{}),
	}

	go d.drainErrors()

	return d
}

// Handle fans the envelope out to every matching subscription. It
// implements the event bus handler interface; delivery failures are
// logged and retried but never surface to the event producer.
func (d *Dispatcher) Handle(ctx context.Context, env events.Envelope) error {
	// Test envelopes are delivered synchronously via TestDelivery,
	// never fanned out.
	if env.Event == events.EventWebhookTest {
		return nil
	}

	matched, err := d.matcher.FindMatching(ctx, env)
	if err != nil {
		return fmt.Errorf("matching subscriptions: %w", err)
	}
	if len(matched) == 0 {
		if d.logger != nil {
			d.logger.WithFields(map[string]interface{}{
				"event":    string(env.Event),
				"event_id": env.ID,
			}).Debug("no matching subscriptions")
		}
		return nil
	}

	var rejected int
	for _, sub := range matched {
		sub := sub
		if d.metrics != nil {
			d.metrics.DeliveriesInFlight.Inc()
		}
		err := d.pool.Submit(func(taskCtx context.Context) error {
			defer func() {
				if d.metrics != nil {
					d.metrics.DeliveriesInFlight.Dec()
				}
			}()
			return d.deliver(taskCtx, sub, env)
		})
		if err != nil {
			if d.metrics != nil {
				d.metrics.DeliveriesInFlight.Dec()
			}
			rejected++
		}
	}

	if rejected > 0 {
		return fmt.Errorf("dispatcher rejected %d of %d deliveries for event %s", rejected, len(matched), env.ID)
	}
	return nil
}

// TestDelivery sends a synthetic test event to the subscription with a
// single attempt and no retries. The resulting log row is tagged as a
// test and the subscription's last-triggered time is left untouched.
func (d *Dispatcher) TestDelivery(ctx context.Context, subscriptionID string) (*DeliveryLog, error) {
	sub, err := d.subs.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	env := events.NewWebhookTest(sub.ID)
	body, signature, err := d.renderPayload(env, sub)
	if err != nil {
		return nil, err
	}

	entry := d.attempt(ctx, sub, env, body, signature, 1)
	entry.Test = true

	if err := d.logs.Append(ctx, entry); err != nil && d.logger != nil {
		d.logger.WithError(err).Warn("recording test delivery failed")
	}
	d.observeAttempt(entry)
	if d.metrics != nil {
		d.metrics.DeliveriesTotal.WithLabelValues(string(env.Event), deliveryStatus(entry.Success)).Inc()
	}

	return entry, nil
}

// Shutdown stops accepting deliveries and waits up to timeout for
// in-flight ones. Deliveries still backing off when the deadline
// passes are abandoned; their attempted rows remain in the log.
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	var err error
	d.shutdownOnce.Do(func() {
		err = d.pool.Shutdown(timeout)
		close(d.done)
	})
	return err
}

// deliver runs the full attempt cycle for one subscription. Every
// attempt writes an immutable log row; the first success stamps the
// subscription and stops the cycle.
func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, env events.Envelope) error {
	body, signature, err := d.renderPayload(env, sub)
	if err != nil {
		return fmt.Errorf("rendering payload for %s: %w", sub.ID, err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts(); attempt++ {
		entry := d.attempt(ctx, sub, env, body, signature, attempt)

		if err := d.logs.Append(ctx, entry); err != nil && d.logger != nil {
			d.logger.WithError(err).WithField("subscription_id", sub.ID).Warn("recording delivery attempt failed")
		}
		d.observeAttempt(entry)

		if entry.Success {
			if d.metrics != nil {
				d.metrics.DeliveriesTotal.WithLabelValues(string(env.Event), "success").Inc()
			}
			if err := d.registry.RecordTriggered(ctx, sub.ID, entry.AttemptedAt); err != nil && d.logger != nil {
				d.logger.WithError(err).WithField("subscription_id", sub.ID).Warn("stamping last trigger failed")
			}
			if d.logger != nil {
				d.logger.WithFields(map[string]interface{}{
					"subscription_id": sub.ID,
					"event_id":        env.ID,
					"attempt":         attempt,
					"status":          entry.HTTPStatus,
				}).Info("webhook delivered")
			}
			return nil
		}

		lastErr = fmt.Errorf("%s", entry.Error)
		if !d.policy.ShouldRetry(attempt, lastErr) {
			break
		}

		select {
		case <-time.After(d.policy.NextRetryDelay(attempt)):
		case <-ctx.Done():
			if d.metrics != nil {
				d.metrics.DeliveriesTotal.WithLabelValues(string(env.Event), "abandoned").Inc()
			}
			return fmt.Errorf("delivery %s to %s abandoned during backoff: %w", env.ID, sub.URL, ctx.Err())
		}
	}

	if d.metrics != nil {
		d.metrics.DeliveriesTotal.WithLabelValues(string(env.Event), "exhausted").Inc()
	}
	return fmt.Errorf("delivery %s to %s failed after %d attempts: %w", env.ID, sub.URL, d.policy.MaxAttempts(), lastErr)
}

// attempt performs one HTTP POST and returns its log row. A zero
// HTTPStatus means the request never produced a response.
func (d *Dispatcher) attempt(ctx context.Context, sub *Subscription, env events.Envelope, body []byte, signature string, attempt int) *DeliveryLog {
	deliveryID := "dlv_" + uuid.New().String()
	entry := &DeliveryLog{
		ID:             deliveryID,
		SubscriptionID: sub.ID,
		EventID:        env.ID,
		Event:          env.Event,
		URL:            sub.URL,
		Attempt:        attempt,
		PayloadDigest:  PayloadDigest(body),
		AttemptedAt:    time.Now().UTC(),
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	start := time.Now()
	status, err := d.post(attemptCtx, sub.URL, env, deliveryID, body, signature)
	entry.DurationMS = time.Since(start).Milliseconds()
	entry.HTTPStatus = status

	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	entry.Success = true
	return entry
}

func (d *Dispatcher) post(ctx context.Context, url string, env events.Envelope, deliveryID string, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderEvent, string(env.Event))
	req.Header.Set(HeaderEventID, env.ID)
	req.Header.Set(HeaderDelivery, deliveryID)
	req.Header.Set(HeaderSignature, signature)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// renderPayload serializes the envelope per the subscription's format
// and signs the exact bytes that go on the wire.
func (d *Dispatcher) renderPayload(env events.Envelope, sub *Subscription) ([]byte, string, error) {
	switch sub.Format {
	case FormatSlack:
		body, err := json.Marshal(FormatSlackMessage(env))
		if err != nil {
			return nil, "", fmt.Errorf("failed to serialize payload: %w", err)
		}
		return body, SignBytes(body, sub.Secret), nil
	case FormatTeams:
		body, err := json.Marshal(FormatTeamsMessage(env))
		if err != nil {
			return nil, "", fmt.Errorf("failed to serialize payload: %w", err)
		}
		return body, SignBytes(body, sub.Secret), nil
	default:
		payload, err := Sign(env, sub.Secret)
		if err != nil {
			return nil, "", err
		}
		return payload.Body, payload.Signature, nil
	}
}

func (d *Dispatcher) observeAttempt(entry *DeliveryLog) {
	if d.metrics == nil {
		return
	}
	status := deliveryStatus(entry.Success)
	d.metrics.DeliveryAttemptsTotal.WithLabelValues(status).Inc()
	d.metrics.DeliveryAttemptSeconds.WithLabelValues(status).Observe(float64(entry.DurationMS) / 1000)
}

// drainErrors surfaces worker errors in the service log
func (d *Dispatcher) drainErrors() {
	for {
		select {
		case err := <-d.pool.Errors():
			if d.logger != nil {
				d.logger.WithError(err).Warn("webhook delivery failed")
			}
		case <-d.done:
			return
		}
	}
}

func deliveryStatus(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
