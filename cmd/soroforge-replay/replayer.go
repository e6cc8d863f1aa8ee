package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// fixtureEvent is one entry in a fixture file: the same shape the
// ingest endpoint accepts
type fixtureEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// Replayer posts fixture files to the ingest endpoint. Queued paths are
// debounced so an editor writing a file in several chunks replays it
// once.
type Replayer struct {
	serverURL   string
	ingestToken string
	delay       time.Duration
	client      *http.Client

	mu      sync.Mutex
	pending map[string]time.Time

	stop chan struct{}
	done chan struct{}
}

// NewReplayer creates a replayer targeting the given API base URL
func NewReplayer(serverURL, ingestToken string, delay time.Duration) *Replayer {
	return &Replayer{
		serverURL:   serverURL,
		ingestToken: ingestToken,
		delay:       delay,
		client:      &http.Client{Timeout: 10 * time.Second},
		pending:     make(map[string]time.Time),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Queue schedules a fixture file for replay after the debounce delay
func (r *Replayer) Queue(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[path] = time.Now().Add(r.delay)
}

// Start launches the background replay loop
func (r *Replayer) Start() {
	go r.loop()
}

// Stop terminates the replay loop and waits for it to finish
func (r *Replayer) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Replayer) loop() {
	defer close(r.done)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			for _, path := range r.takeDue() {
				if err := r.replayFile(path); err != nil {
					logrus.Errorf("Replay of %s failed: %v", path, err)
				}
			}
		}
	}
}

// takeDue removes and returns every queued path whose debounce delay
// has elapsed
func (r *Replayer) takeDue() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var due []string
	for path, at := range r.pending {
		if !at.After(now) {
			due = append(due, path)
			delete(r.pending, path)
		}
	}
	return due
}

// replayFile parses a fixture file and posts each event it contains.
// A file holds either one event object or an array of them.
func (r *Replayer) replayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}

	events, err := parseFixture(raw)
	if err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	logrus.Infof("Replaying %d event(s) from %s", len(events), path)
	for i, ev := range events {
		if err := r.post(ev); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, ev.Event, err)
		}
		logrus.Debugf("Replayed %s event from %s", ev.Event, path)
	}
	return nil
}

func parseFixture(raw []byte) ([]fixtureEvent, error) {
	var list []fixtureEvent
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var single fixtureEvent
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []fixtureEvent{single}, nil
}

func (r *Replayer) post(ev fixtureEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, r.serverURL+"/internal/v1/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.ingestToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.ingestToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingest returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
