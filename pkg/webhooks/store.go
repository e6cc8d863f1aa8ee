package webhooks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soroforge/soroforge/pkg/events"
)

// SubscriptionStore persists webhook subscriptions
type SubscriptionStore interface {
	// Create stores a new subscription
	Create(ctx context.Context, sub *Subscription) error

	// Get returns the subscription with the given ID or ErrNotFound
	Get(ctx context.Context, id string) (*Subscription, error)

	// ListByOwner returns subscriptions created by owner, optionally
	// filtered by active state, newest first.
	ListByOwner(ctx context.Context, owner string, activeOnly *bool) ([]*Subscription, error)

	// ListActiveByEvent returns active subscriptions selecting the event
	ListActiveByEvent(ctx context.Context, event events.EventType) ([]*Subscription, error)

	// Update replaces the stored subscription with the same ID
	Update(ctx context.Context, sub *Subscription) error

	// Delete removes the subscription or returns ErrNotFound
	Delete(ctx context.Context, id string) error

	// CountActive returns the number of active subscriptions
	CountActive(ctx context.Context) (int, error)
}

// DeliveryLogStore persists per-attempt delivery records
type DeliveryLogStore interface {
	// Append records one delivery attempt, assigning its ID when empty
	Append(ctx context.Context, log *DeliveryLog) error

	// ListBySubscription returns up to limit attempts, newest first
	ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*DeliveryLog, error)

	// Stats aggregates the subscription's delivery history
	Stats(ctx context.Context, subscriptionID string) (*DeliveryStats, error)

	// DeleteOlderThan removes attempts before cutoff and returns the count
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteBySubscription removes all attempts for a subscription
	DeleteBySubscription(ctx context.Context, subscriptionID string) error
}

func cloneSubscription(sub *Subscription) *Subscription {
	if sub == nil {
		return nil
	}
	clone := *sub
	clone.Events = append([]events.EventType(nil), sub.Events...)
	if sub.LastTriggeredAt != nil {
		t := *sub.LastTriggeredAt
		clone.LastTriggeredAt = &t
	}
	return &clone
}

// MemorySubscriptionStore keeps subscriptions in memory
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewMemorySubscriptionStore creates an empty in-memory store
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		subs: make(map[string]*Subscription),
	}
}

// Create stores a new subscription
func (s *MemorySubscriptionStore) Create(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = cloneSubscription(sub)
	return nil
}

// Get returns the subscription with the given ID
func (s *MemorySubscriptionStore) Get(ctx context.Context, id string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSubscription(sub), nil
}

// ListByOwner returns the owner's subscriptions, newest first
func (s *MemorySubscriptionStore) ListByOwner(ctx context.Context, owner string, activeOnly *bool) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*Subscription, 0)
	for _, sub := range s.subs {
		if sub.CreatedBy != owner {
			continue
		}
		if activeOnly != nil && sub.Active != *activeOnly {
			continue
		}
		matched = append(matched, cloneSubscription(sub))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return matched, nil
}

// ListActiveByEvent returns active subscriptions selecting the event
func (s *MemorySubscriptionStore) ListActiveByEvent(ctx context.Context, event events.EventType) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*Subscription, 0)
	for _, sub := range s.subs {
		if sub.Active && sub.WantsEvent(event) {
			matched = append(matched, cloneSubscription(sub))
		}
	}
	return matched, nil
}

// Update replaces the stored subscription
func (s *MemorySubscriptionStore) Update(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; !ok {
		return ErrNotFound
	}
	s.subs[sub.ID] = cloneSubscription(sub)
	return nil
}

// Delete removes the subscription
func (s *MemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[id]; !ok {
		return ErrNotFound
	}
	delete(s.subs, id)
	return nil
}

// CountActive returns the number of active subscriptions
func (s *MemorySubscriptionStore) CountActive(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sub := range s.subs {
		if sub.Active {
			count++
		}
	}
	return count, nil
}

// MemoryDeliveryLogStore keeps delivery logs in memory with
// oldest-first eviction beyond maxLogs.
type MemoryDeliveryLogStore struct {
	mu      sync.RWMutex
	logs    []*DeliveryLog
	maxLogs int
}

// NewMemoryDeliveryLogStore creates an in-memory log store holding up
// to maxLogs rows (0 means 10000).
func NewMemoryDeliveryLogStore(maxLogs int) *MemoryDeliveryLogStore {
	if maxLogs <= 0 {
		maxLogs = 10000
	}
	return &MemoryDeliveryLogStore{maxLogs: maxLogs}
}

// Append records one delivery attempt
func (s *MemoryDeliveryLogStore) Append(ctx context.Context, log *DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log.ID == "" {
		log.ID = "dlv_" + uuid.New().String()
	}

	stored := *log
	s.logs = append(s.logs, &stored)

	if len(s.logs) > s.maxLogs {
		// Evict the oldest 10% to avoid shifting on every insert.
		evict := s.maxLogs / 10
		if evict < 1 {
			evict = 1
		}
		s.logs = s.logs[evict:]
	}

	return nil
}

// ListBySubscription returns up to limit attempts, newest first
func (s *MemoryDeliveryLogStore) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*DeliveryLog, 0)
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].SubscriptionID != subscriptionID {
			continue
		}
		entry := *s.logs[i]
		matched = append(matched, &entry)
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

// Stats aggregates the subscription's delivery history
func (s *MemoryDeliveryLogStore) Stats(ctx context.Context, subscriptionID string) (*DeliveryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &DeliveryStats{}
	for _, log := range s.logs {
		if log.SubscriptionID != subscriptionID {
			continue
		}
		stats.Total++
		at := log.AttemptedAt
		if log.Success {
			stats.Succeeded++
			if stats.LastSuccess == nil || at.After(*stats.LastSuccess) {
				t := at
				stats.LastSuccess = &t
			}
		} else {
			stats.Failed++
			if stats.LastFailure == nil || at.After(*stats.LastFailure) {
				t := at
				stats.LastFailure = &t
			}
		}
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
	}

	return stats, nil
}

// DeleteOlderThan removes attempts before cutoff
func (s *MemoryDeliveryLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.logs[:0]
	var removed int64
	for _, log := range s.logs {
		if log.AttemptedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, log)
	}
	s.logs = kept

	return removed, nil
}

// DeleteBySubscription removes all attempts for a subscription
func (s *MemoryDeliveryLogStore) DeleteBySubscription(ctx context.Context, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.logs[:0]
	for _, log := range s.logs {
		if log.SubscriptionID == subscriptionID {
			continue
		}
		kept = append(kept, log)
	}
	s.logs = kept

	return nil
}
