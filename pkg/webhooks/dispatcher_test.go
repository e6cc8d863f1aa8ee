package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/observability"
)

func fastDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialDelay:      10 * time.Millisecond,
			MaxDelay:          50 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		AttemptTimeout: 2 * time.Second,
		Workers:        4,
	}
}

func newDispatcherFixture(t *testing.T, cfg DispatcherConfig) (*Dispatcher, *Registry, *MemoryDeliveryLogStore) {
	t.Helper()

	subs := NewMemorySubscriptionStore()
	logs := NewMemoryDeliveryLogStore(0)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	registry := NewRegistry(subs, logs, nil, logger, nil)
	dispatcher := NewDispatcher(context.Background(), cfg, subs, registry, logs, logger, nil)

	t.Cleanup(func() {
		dispatcher.Shutdown(time.Second)
	})

	return dispatcher, registry, logs
}

func subscribeTo(t *testing.T, registry *Registry, url string, format Format, eventTypes ...events.EventType) *Subscription {
	t.Helper()

	if len(eventTypes) == 0 {
		eventTypes = []events.EventType{events.EventTokenCreated}
	}
	sub, err := registry.Create(context.Background(), CreateParams{
		URL:       url,
		Events:    eventTypes,
		Format:    format,
		CreatedBy: "GALICE",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return sub
}

func tokenCreatedEnvelope() events.Envelope {
	return events.NewTokenCreated(
		"CTOKEN123", "GCREATOR", "Test Token", "TST", 7,
		"1000000000", "", "abcdef0123456789", 412345,
	)
}

// capturedRequest records what a consumer endpoint received
type capturedRequest struct {
	body      []byte
	signature string
	event     string
	eventID   string
	delivery  string
}

// captureServer is a consumer endpoint that records requests and
// answers with a scripted status sequence, repeating the last status.
type captureServer struct {
	mu       sync.Mutex
	statuses []int
	requests []capturedRequest
	server   *httptest.Server
}

func newCaptureServer(t *testing.T, statuses ...int) *captureServer {
	t.Helper()

	cs := &captureServer{statuses: statuses}
	cs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		cs.mu.Lock()
		cs.requests = append(cs.requests, capturedRequest{
			body:      body,
			signature: r.Header.Get(HeaderSignature),
			event:     r.Header.Get(HeaderEvent),
			eventID:   r.Header.Get(HeaderEventID),
			delivery:  r.Header.Get(HeaderDelivery),
		})
		idx := len(cs.requests) - 1
		if idx >= len(cs.statuses) {
			idx = len(cs.statuses) - 1
		}
		status := cs.statuses[idx]
		cs.mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(cs.server.Close)

	return cs
}

func (cs *captureServer) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.requests)
}

func (cs *captureServer) request(i int) capturedRequest {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.requests[i]
}

func waitForLogs(t *testing.T, logs *MemoryDeliveryLogStore, subscriptionID string, want int) []*DeliveryLog {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := logs.ListBySubscription(context.Background(), subscriptionID, 0)
		if err != nil {
			t.Fatalf("ListBySubscription failed: %v", err)
		}
		if len(entries) >= want {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d delivery logs", want)
	return nil
}

func TestDispatcher_DeliverSuccess(t *testing.T) {
	server := newCaptureServer(t, http.StatusOK)
	dispatcher, registry, logs := newDispatcherFixture(t, fastDispatcherConfig())

	sub := subscribeTo(t, registry, server.server.URL, FormatJSON)
	env := tokenCreatedEnvelope()

	if err := dispatcher.deliver(context.Background(), sub, env); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	if server.count() != 1 {
		t.Fatalf("Expected 1 request, got %d", server.count())
	}

	req := server.request(0)
	if req.event != string(events.EventTokenCreated) {
		t.Errorf("Expected event header %s, got %s", events.EventTokenCreated, req.event)
	}
	if req.eventID != env.ID {
		t.Errorf("Expected event ID header %s, got %s", env.ID, req.eventID)
	}
	if !strings.HasPrefix(req.delivery, "dlv_") {
		t.Errorf("Expected dlv_ delivery header prefix, got %q", req.delivery)
	}
	if !Verify(req.body, req.signature, sub.Secret) {
		t.Error("Expected the received signature to verify against the received body")
	}

	entries, _ := logs.ListBySubscription(context.Background(), sub.ID, 0)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log row, got %d", len(entries))
	}
	entry := entries[0]
	if !entry.Success || entry.HTTPStatus != http.StatusOK || entry.Attempt != 1 {
		t.Errorf("Expected successful first attempt with 200, got success=%v status=%d attempt=%d",
			entry.Success, entry.HTTPStatus, entry.Attempt)
	}
	if entry.PayloadDigest != PayloadDigest(req.body) {
		t.Error("Expected the log digest to match the delivered body")
	}

	got, _ := registry.Get(context.Background(), sub.ID)
	if got.LastTriggeredAt == nil {
		t.Error("Expected lastTriggeredAt to be set after a successful delivery")
	}
}

func TestDispatcher_RetryExhaustion(t *testing.T) {
	server := newCaptureServer(t, http.StatusInternalServerError)
	dispatcher, registry, logs := newDispatcherFixture(t, fastDispatcherConfig())

	sub := subscribeTo(t, registry, server.server.URL, FormatJSON)

	err := dispatcher.deliver(context.Background(), sub, tokenCreatedEnvelope())
	if err == nil {
		t.Fatal("Expected deliver to fail against an always-500 endpoint")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Expected exhaustion error, got %v", err)
	}

	if server.count() != 3 {
		t.Errorf("Expected exactly 3 requests, got %d", server.count())
	}

	entries, _ := logs.ListBySubscription(context.Background(), sub.ID, 0)
	if len(entries) != 3 {
		t.Fatalf("Expected exactly 3 log rows, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Success {
			t.Error("Expected every attempt to be recorded as failed")
		}
		if entry.HTTPStatus != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", entry.HTTPStatus)
		}
		if entry.Error == "" {
			t.Error("Expected an error message on failed attempts")
		}
	}
	// Newest first: attempts 3, 2, 1.
	for i, wantAttempt := range []int{3, 2, 1} {
		if entries[i].Attempt != wantAttempt {
			t.Errorf("Expected attempt %d at position %d, got %d", wantAttempt, i, entries[i].Attempt)
		}
	}

	got, _ := registry.Get(context.Background(), sub.ID)
	if got.LastTriggeredAt != nil {
		t.Error("Expected lastTriggeredAt to stay unset after exhausted retries")
	}
	if !got.Active {
		t.Error("Expected exhausted retries to never deactivate the subscription")
	}
}

func TestDispatcher_FailThenSuccess(t *testing.T) {
	server := newCaptureServer(t, http.StatusBadGateway, http.StatusOK)
	dispatcher, registry, logs := newDispatcherFixture(t, fastDispatcherConfig())

	sub := subscribeTo(t, registry, server.server.URL, FormatJSON)

	if err := dispatcher.deliver(context.Background(), sub, tokenCreatedEnvelope()); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	entries, _ := logs.ListBySubscription(context.Background(), sub.ID, 0)
	if len(entries) != 2 {
		t.Fatalf("Expected exactly 2 log rows, got %d", len(entries))
	}
	if !entries[0].Success || entries[0].Attempt != 2 {
		t.Errorf("Expected the second attempt to succeed, got success=%v attempt=%d",
			entries[0].Success, entries[0].Attempt)
	}
	if entries[1].Success || entries[1].Attempt != 1 {
		t.Errorf("Expected the first attempt to fail, got success=%v attempt=%d",
			entries[1].Success, entries[1].Attempt)
	}

	got, _ := registry.Get(context.Background(), sub.ID)
	if got.LastTriggeredAt == nil {
		t.Error("Expected lastTriggeredAt to be set after the recovery")
	}
}

func TestDispatcher_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	dispatcher, registry, logs := newDispatcherFixture(t, fastDispatcherConfig())
	sub := subscribeTo(t, registry, url, FormatJSON)

	if err := dispatcher.deliver(context.Background(), sub, tokenCreatedEnvelope()); err == nil {
		t.Fatal("Expected deliver to fail against an unreachable endpoint")
	}

	entries, _ := logs.ListBySubscription(context.Background(), sub.ID, 0)
	if len(entries) != 3 {
		t.Fatalf("Expected 3 log rows, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.HTTPStatus != 0 {
			t.Errorf("Expected zero status when no response was produced, got %d", entry.HTTPStatus)
		}
		if entry.Error == "" {
			t.Error("Expected an error message for the network failure")
		}
	}
}

func TestDispatcher_TestDelivery(t *testing.T) {
	t.Run("failure performs exactly one attempt", func(t *testing.T) {
		server := newCaptureServer(t, http.StatusInternalServerError)
		dispatcher, registry, logs := newDispatcherFixture(t, fastDispatcherConfig())
		sub := subscribeTo(t, registry, server.server.URL, FormatJSON)

		entry, err := dispatcher.TestDelivery(context.Background(), sub.ID)
		if err != nil {
			t.Fatalf("TestDelivery failed: %v", err)
		}

		if entry.Success {
			t.Error("Expected the test delivery to report failure")
		}
		if server.count() != 1 {
			t.Errorf("Expected exactly 1 request with no retries, got %d", server.count())
		}

		entries, _ := logs.ListBySubscription(context.Background(), sub.ID, 0)
		if len(entries) != 1 {
			t.Fatalf("Expected 1 log row, got %d", len(entries))
		}
		if !entries[0].Test {
			t.Error("Expected the log row to be tagged as a test")
		}
	})

	t.Run("success does not stamp lastTriggeredAt", func(t *testing.T) {
		server := newCaptureServer(t, http.StatusOK)
		dispatcher, registry, _ := newDispatcherFixture(t, fastDispatcherConfig())
		sub := subscribeTo(t, registry, server.server.URL, FormatJSON)

		entry, err := dispatcher.TestDelivery(context.Background(), sub.ID)
		if err != nil {
			t.Fatalf("TestDelivery failed: %v", err)
		}
		if !entry.Success {
			t.Errorf("Expected success, got error %q", entry.Error)
		}
		if entry.Event != events.EventWebhookTest {
			t.Errorf("Expected WEBHOOK_TEST event, got %s", entry.Event)
		}

		got, _ := registry.Get(context.Background(), sub.ID)
		if got.LastTriggeredAt != nil {
			t.Error("Expected test deliveries to leave lastTriggeredAt untouched")
		}
	})

	t.Run("missing subscription", func(t *testing.T) {
		dispatcher, _, _ := newDispatcherFixture(t, fastDispatcherConfig())

		if _, err := dispatcher.TestDelivery(context.Background(), "sub_ghost"); err == nil {
			t.Error("Expected TestDelivery to fail for a missing subscription")
		}
	})
}

func TestDispatcher_Handle(t *testing.T) {
	first := newCaptureServer(t, http.StatusOK)
	second := newCaptureServer(t, http.StatusOK)
	burns := newCaptureServer(t, http.StatusOK)

	dispatcher, registry, logs := newDispatcherFixture(t, fastDispatcherConfig())

	subA := subscribeTo(t, registry, first.server.URL, FormatJSON)
	subB := subscribeTo(t, registry, second.server.URL, FormatJSON)
	subBurns := subscribeTo(t, registry, burns.server.URL, FormatJSON, events.EventTokenSelfBurn)

	env := tokenCreatedEnvelope()
	if err := dispatcher.Handle(context.Background(), env); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	waitForLogs(t, logs, subA.ID, 1)
	waitForLogs(t, logs, subB.ID, 1)

	if first.count() != 1 || second.count() != 1 {
		t.Errorf("Expected both matching endpoints to be hit once, got %d and %d",
			first.count(), second.count())
	}
	if burns.count() != 0 {
		t.Errorf("Expected the non-matching endpoint to be skipped, got %d requests", burns.count())
	}

	// Each subscription is signed with its own secret.
	if !Verify(first.request(0).body, first.request(0).signature, subA.Secret) {
		t.Error("Expected subA's signature to verify with subA's secret")
	}
	if !Verify(second.request(0).body, second.request(0).signature, subB.Secret) {
		t.Error("Expected subB's signature to verify with subB's secret")
	}
	if Verify(first.request(0).body, first.request(0).signature, subB.Secret) {
		t.Error("Expected subA's signature to fail with subB's secret")
	}

	if entries, _ := logs.ListBySubscription(context.Background(), subBurns.ID, 0); len(entries) != 0 {
		t.Errorf("Expected no log rows for the non-matching subscription, got %d", len(entries))
	}
}

func TestDispatcher_HandleSkipsTestEnvelopes(t *testing.T) {
	server := newCaptureServer(t, http.StatusOK)
	dispatcher, registry, logs := newDispatcherFixture(t, fastDispatcherConfig())

	sub := subscribeTo(t, registry, server.server.URL, FormatJSON,
		events.EventTokenCreated, events.EventWebhookTest)

	if err := dispatcher.Handle(context.Background(), events.NewWebhookTest(sub.ID)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if server.count() != 0 {
		t.Errorf("Expected no fan-out for test envelopes, got %d requests", server.count())
	}
	if entries, _ := logs.ListBySubscription(context.Background(), sub.ID, 0); len(entries) != 0 {
		t.Errorf("Expected no log rows, got %d", len(entries))
	}
}

func TestDispatcher_SlackFormat(t *testing.T) {
	server := newCaptureServer(t, http.StatusOK)
	dispatcher, registry, _ := newDispatcherFixture(t, fastDispatcherConfig())

	sub := subscribeTo(t, registry, server.server.URL, FormatSlack)

	if err := dispatcher.deliver(context.Background(), sub, tokenCreatedEnvelope()); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	req := server.request(0)

	var message SlackMessage
	if err := json.Unmarshal(req.body, &message); err != nil {
		t.Fatalf("Expected a Slack message body, got unmarshal error: %v", err)
	}
	if len(message.Attachments) != 1 {
		t.Fatalf("Expected 1 attachment, got %d", len(message.Attachments))
	}
	if message.Attachments[0].Title != "Token Created" {
		t.Errorf("Expected attachment title Token Created, got %q", message.Attachments[0].Title)
	}

	// The signature covers the rendered Slack bytes, not the envelope.
	if !Verify(req.body, req.signature, sub.Secret) {
		t.Error("Expected the signature to verify over the wire bytes")
	}
}

func TestDispatcher_ShutdownAbandonsBackoff(t *testing.T) {
	server := newCaptureServer(t, http.StatusInternalServerError)

	cfg := fastDispatcherConfig()
	cfg.Retry.InitialDelay = 10 * time.Second // park the delivery in backoff
	dispatcher, registry, logs := newDispatcherFixture(t, cfg)

	sub := subscribeTo(t, registry, server.server.URL, FormatJSON)

	if err := dispatcher.Handle(context.Background(), tokenCreatedEnvelope()); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	waitForLogs(t, logs, sub.ID, 1)

	dispatcher.Shutdown(50 * time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	entries, _ := logs.ListBySubscription(context.Background(), sub.ID, 0)
	if len(entries) != 1 {
		t.Errorf("Expected the abandoned delivery to leave only its attempted row, got %d", len(entries))
	}
}
