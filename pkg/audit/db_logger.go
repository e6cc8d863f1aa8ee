package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DBLogger persists audit entries to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures the
// audit_log table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_log table: %w", err)
	}

	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		action VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		actor VARCHAR(64),
		subject_type VARCHAR(50),
		subject_id VARCHAR(100),
		request_id VARCHAR(100),
		ip_address VARCHAR(45),
		user_agent TEXT,
		message TEXT,
		error_message TEXT,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_log_actor ON audit_log(actor);
	CREATE INDEX IF NOT EXISTS idx_audit_log_subject ON audit_log(subject_type, subject_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_status ON audit_log(status);
	`

	_, err := l.db.Exec(query)
	return err
}

// Record inserts one audit entry
func (l *DBLogger) Record(ctx context.Context, entry *Entry) error {
	var metadataJSON []byte
	var err error

	if entry.Metadata != nil {
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (
			timestamp, action, status,
			actor, subject_type, subject_id,
			request_id, ip_address, user_agent,
			message, error_message, metadata
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9,
			$10, $11, $12
		) RETURNING id
	`

	err = l.db.QueryRowContext(ctx, query,
		entry.Timestamp, entry.Action, entry.Status,
		entry.Actor, entry.SubjectType, entry.SubjectID,
		entry.RequestID, entry.IPAddress, entry.UserAgent,
		entry.Message, entry.ErrorMessage, metadataJSON,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// Search queries the audit trail with the given filters
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Entry, error) {
	query := `
		SELECT
			id, timestamp, action, status,
			actor, subject_type, subject_id,
			request_id, ip_address, user_agent,
			message, error_message, metadata
		FROM audit_log
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argCount)
		args = append(args, *filter.StartTime)
		argCount++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argCount)
		args = append(args, *filter.EndTime)
		argCount++
	}

	if filter.Actor != "" {
		query += fmt.Sprintf(" AND actor = $%d", argCount)
		args = append(args, filter.Actor)
		argCount++
	}

	if len(filter.Actions) > 0 {
		query += fmt.Sprintf(" AND action = ANY($%d)", argCount)
		actionStrs := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actionStrs[i] = string(a)
		}
		args = append(args, pq.Array(actionStrs))
		argCount++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, string(*filter.Status))
		argCount++
	}

	if filter.SubjectType != "" {
		query += fmt.Sprintf(" AND subject_type = $%d", argCount)
		args = append(args, string(filter.SubjectType))
		argCount++
	}

	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", argCount)
		args = append(args, filter.SubjectID)
		argCount++
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry := &Entry{}
		var metadataJSON []byte

		err := rows.Scan(
			&entry.ID, &entry.Timestamp, &entry.Action, &entry.Status,
			&entry.Actor, &entry.SubjectType, &entry.SubjectID,
			&entry.RequestID, &entry.IPAddress, &entry.UserAgent,
			&entry.Message, &entry.ErrorMessage, &metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if len(metadataJSON) > 0 {
			entry.Metadata = make(map[string]interface{})
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// GetStats summarizes the audit trail for the optional time range
func (l *DBLogger) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	stats := &Stats{
		ByAction: make(map[Action]int64),
		ByStatus: make(map[Status]int64),
	}

	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if startTime != nil {
		whereClause += fmt.Sprintf(" AND timestamp >= $%d", argCount)
		args = append(args, *startTime)
		argCount++
		if stats.TimeRange == nil {
			stats.TimeRange = &TimeRange{}
		}
		stats.TimeRange.Start = *startTime
	}

	if endTime != nil {
		whereClause += fmt.Sprintf(" AND timestamp <= $%d", argCount)
		args = append(args, *endTime)
		if stats.TimeRange == nil {
			stats.TimeRange = &TimeRange{}
		}
		stats.TimeRange.End = *endTime
	}

	err := l.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM audit_log %s", whereClause), args...).Scan(&stats.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, fmt.Sprintf("SELECT action, COUNT(*) FROM audit_log %s GROUP BY action", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries by action: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action Action
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		stats.ByAction[action] = count
	}

	rows, err = l.db.QueryContext(ctx, fmt.Sprintf("SELECT status, COUNT(*) FROM audit_log %s GROUP BY status", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
	}

	err = l.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT actor) FROM audit_log %s AND actor <> ''", whereClause), args...).Scan(&stats.UniqueActors)
	if err != nil {
		return nil, fmt.Errorf("failed to count unique actors: %w", err)
	}

	failureClause := whereClause + " AND status IN ('failure', 'denied')"
	err = l.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM audit_log %s", failureClause), args...).Scan(&stats.Failures)
	if err != nil {
		return nil, fmt.Errorf("failed to count failures: %w", err)
	}

	return stats, nil
}

// Cleanup removes entries older than the retention period and returns
// the number of deleted rows.
func (l *DBLogger) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -policy.RetentionDays)

	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_log WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Close is a no-op; the database connection is shared and owned by the
// caller.
func (l *DBLogger) Close() error {
	return nil
}
