package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryLogger keeps audit entries in memory. It backs the memory
// storage mode and tests; entries beyond maxEntries evict oldest-first.
type MemoryLogger struct {
	mu         sync.RWMutex
	entries    []*Entry
	nextID     int64
	maxEntries int
}

// NewMemoryLogger creates an in-memory audit logger holding up to
// maxEntries entries (0 means 10000).
func NewMemoryLogger(maxEntries int) *MemoryLogger {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryLogger{
		nextID:     1,
		maxEntries: maxEntries,
	}
}

// Record stores a copy of the entry and assigns its ID
func (l *MemoryLogger) Record(ctx context.Context, entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.ID = l.nextID
	l.nextID++

	stored := *entry
	l.entries = append(l.entries, &stored)

	if len(l.entries) > l.maxEntries {
		// Evict the oldest 10% to avoid shifting on every insert.
		evict := l.maxEntries / 10
		if evict < 1 {
			evict = 1
		}
		l.entries = l.entries[evict:]
	}

	return nil
}

// Search filters stored entries, newest first
func (l *MemoryLogger) Search(ctx context.Context, filter SearchFilter) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]*Entry, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		if filter.Matches(l.entries[i]) {
			matched = append(matched, l.entries[i])
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*Entry{}, nil
		}
		matched = matched[filter.Offset:]
	}

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

// GetStats summarizes stored entries for the optional time range
func (l *MemoryLogger) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{
		ByAction: make(map[Action]int64),
		ByStatus: make(map[Status]int64),
	}
	if startTime != nil || endTime != nil {
		stats.TimeRange = &TimeRange{}
		if startTime != nil {
			stats.TimeRange.Start = *startTime
		}
		if endTime != nil {
			stats.TimeRange.End = *endTime
		}
	}

	actors := make(map[string]struct{})
	for _, e := range l.entries {
		if startTime != nil && e.Timestamp.Before(*startTime) {
			continue
		}
		if endTime != nil && e.Timestamp.After(*endTime) {
			continue
		}

		stats.TotalEntries++
		stats.ByAction[e.Action]++
		stats.ByStatus[e.Status]++
		if e.Actor != "" {
			actors[e.Actor] = struct{}{}
		}
		if e.Status == StatusFailure || e.Status == StatusDenied {
			stats.Failures++
		}
	}
	stats.UniqueActors = int64(len(actors))

	return stats, nil
}

// Cleanup removes entries older than the retention period
func (l *MemoryLogger) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -policy.RetentionDays)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	var removed int64
	for _, e := range l.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept

	return removed, nil
}

// Export renders matching entries in the requested format
func (l *MemoryLogger) Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error) {
	entries, err := l.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return renderExport(entries, format)
}

// Len returns the number of stored entries
func (l *MemoryLogger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close is a no-op
func (l *MemoryLogger) Close() error {
	return nil
}
