package audit

import (
	"context"
	"time"
)

// Store provides querying over the recorded audit trail
type Store interface {
	// Search returns entries matching the filter, newest first
	Search(ctx context.Context, filter SearchFilter) ([]*Entry, error)

	// GetStats summarizes the trail for the optional time range
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error)

	// Export renders matching entries in the requested format
	Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error)

	// Cleanup removes entries older than the retention period
	Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// DBStore adapts a DBLogger to the Store interface
type DBStore struct {
	logger *DBLogger
}

// NewDBStore creates a database-backed audit store
func NewDBStore(logger *DBLogger) *DBStore {
	return &DBStore{logger: logger}
}

// Search returns entries matching the filter
func (s *DBStore) Search(ctx context.Context, filter SearchFilter) ([]*Entry, error) {
	return s.logger.Search(ctx, filter)
}

// GetStats summarizes the audit trail
func (s *DBStore) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	return s.logger.GetStats(ctx, startTime, endTime)
}

// Export renders matching entries in the requested format
func (s *DBStore) Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error) {
	entries, err := s.logger.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return renderExport(entries, format)
}

// Cleanup removes entries older than the retention period
func (s *DBStore) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	return s.logger.Cleanup(ctx, policy)
}
