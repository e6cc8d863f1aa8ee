package webhooks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/soroforge/soroforge/pkg/events"
)

// PostgresSubscriptionStore persists subscriptions in PostgreSQL
type PostgresSubscriptionStore struct {
	db *sql.DB
}

// NewPostgresSubscriptionStore creates the store and ensures its table
func NewPostgresSubscriptionStore(db *sql.DB) (*PostgresSubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	store := &PostgresSubscriptionStore{db: db}
	if err := store.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure webhook_subscriptions table: %w", err)
	}
	return store, nil
}

func (s *PostgresSubscriptionStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS webhook_subscriptions (
		id VARCHAR(50) PRIMARY KEY,
		url TEXT NOT NULL,
		events TEXT[] NOT NULL,
		token_address VARCHAR(64),
		format VARCHAR(10) NOT NULL DEFAULT 'json',
		secret VARCHAR(128) NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by VARCHAR(64) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
		last_triggered_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_webhook_subscriptions_owner ON webhook_subscriptions(created_by);
	CREATE INDEX IF NOT EXISTS idx_webhook_subscriptions_active ON webhook_subscriptions(active);
	CREATE INDEX IF NOT EXISTS idx_webhook_subscriptions_events ON webhook_subscriptions USING GIN (events);
	`

	_, err := s.db.Exec(query)
	return err
}

const subscriptionColumns = `id, url, events, token_address, format, secret, active, created_by, created_at, updated_at, last_triggered_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (*Subscription, error) {
	sub := &Subscription{}
	var eventStrs pq.StringArray
	var tokenAddress sql.NullString
	var lastTriggered sql.NullTime

	err := row.Scan(
		&sub.ID, &sub.URL, &eventStrs, &tokenAddress, &sub.Format,
		&sub.Secret, &sub.Active, &sub.CreatedBy, &sub.CreatedAt, &sub.UpdatedAt, &lastTriggered,
	)
	if err != nil {
		return nil, err
	}

	sub.Events = make([]events.EventType, len(eventStrs))
	for i, e := range eventStrs {
		sub.Events[i] = events.EventType(e)
	}
	if tokenAddress.Valid {
		sub.TokenAddress = tokenAddress.String
	}
	if lastTriggered.Valid {
		t := lastTriggered.Time
		sub.LastTriggeredAt = &t
	}

	return sub, nil
}

func eventStrings(selected []events.EventType) pq.StringArray {
	strs := make(pq.StringArray, len(selected))
	for i, e := range selected {
		strs[i] = string(e)
	}
	return strs
}

// Create stores a new subscription
func (s *PostgresSubscriptionStore) Create(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO webhook_subscriptions
			(id, url, events, token_address, format, secret, active, created_by, created_at, updated_at, last_triggered_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)
	`

	format := sub.Format
	if format == "" {
		format = FormatJSON
	}

	_, err := s.db.ExecContext(ctx, query,
		sub.ID, sub.URL, eventStrings(sub.Events), sub.TokenAddress, string(format),
		sub.Secret, sub.Active, sub.CreatedBy, sub.CreatedAt, sub.UpdatedAt, sub.LastTriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

// Get returns the subscription with the given ID
func (s *PostgresSubscriptionStore) Get(ctx context.Context, id string) (*Subscription, error) {
	query := fmt.Sprintf("SELECT %s FROM webhook_subscriptions WHERE id = $1", subscriptionColumns)

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	return sub, nil
}

// ListByOwner returns the owner's subscriptions, newest first
func (s *PostgresSubscriptionStore) ListByOwner(ctx context.Context, owner string, activeOnly *bool) ([]*Subscription, error) {
	query := fmt.Sprintf("SELECT %s FROM webhook_subscriptions WHERE created_by = $1", subscriptionColumns)
	args := []interface{}{owner}

	if activeOnly != nil {
		query += " AND active = $2"
		args = append(args, *activeOnly)
	}
	query += " ORDER BY created_at DESC"

	return s.queryList(ctx, query, args...)
}

// ListActiveByEvent returns active subscriptions selecting the event
func (s *PostgresSubscriptionStore) ListActiveByEvent(ctx context.Context, event events.EventType) ([]*Subscription, error) {
	query := fmt.Sprintf("SELECT %s FROM webhook_subscriptions WHERE active AND $1 = ANY(events)", subscriptionColumns)
	return s.queryList(ctx, query, string(event))
}

func (s *PostgresSubscriptionStore) queryList(ctx context.Context, query string, args ...interface{}) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]*Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}
	return subs, nil
}

// Update replaces the stored subscription
func (s *PostgresSubscriptionStore) Update(ctx context.Context, sub *Subscription) error {
	query := `
		UPDATE webhook_subscriptions SET
			url = $2, events = $3, token_address = NULLIF($4, ''), format = $5,
			secret = $6, active = $7, created_by = $8, created_at = $9, updated_at = $10, last_triggered_at = $11
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		sub.ID, sub.URL, eventStrings(sub.Events), sub.TokenAddress, string(sub.Format),
		sub.Secret, sub.Active, sub.CreatedBy, sub.CreatedAt, sub.UpdatedAt, sub.LastTriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the subscription
func (s *PostgresSubscriptionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM webhook_subscriptions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActive returns the number of active subscriptions
func (s *PostgresSubscriptionStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM webhook_subscriptions WHERE active").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}

// PostgresDeliveryLogStore persists delivery logs in PostgreSQL
type PostgresDeliveryLogStore struct {
	db *sql.DB
}

// NewPostgresDeliveryLogStore creates the store and ensures its table
func NewPostgresDeliveryLogStore(db *sql.DB) (*PostgresDeliveryLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	store := &PostgresDeliveryLogStore{db: db}
	if err := store.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure webhook_delivery_logs table: %w", err)
	}
	return store, nil
}

func (s *PostgresDeliveryLogStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS webhook_delivery_logs (
		id VARCHAR(50) PRIMARY KEY,
		subscription_id VARCHAR(50) NOT NULL,
		event_id VARCHAR(50) NOT NULL,
		event VARCHAR(50) NOT NULL,
		url TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		succeeded BOOLEAN NOT NULL,
		http_status INTEGER,
		error_message TEXT,
		payload_digest VARCHAR(64),
		is_test BOOLEAN NOT NULL DEFAULT FALSE,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		attempted_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_webhook_delivery_logs_subscription
		ON webhook_delivery_logs(subscription_id, attempted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_webhook_delivery_logs_attempted_at
		ON webhook_delivery_logs(attempted_at);
	`

	_, err := s.db.Exec(query)
	return err
}

// Append records one delivery attempt
func (s *PostgresDeliveryLogStore) Append(ctx context.Context, log *DeliveryLog) error {
	if log.ID == "" {
		log.ID = "dlv_" + uuid.New().String()
	}

	var httpStatus sql.NullInt32
	if log.HTTPStatus != 0 {
		httpStatus = sql.NullInt32{Int32: int32(log.HTTPStatus), Valid: true}
	}

	query := `
		INSERT INTO webhook_delivery_logs
			(id, subscription_id, event_id, event, url, attempt, succeeded,
			 http_status, error_message, payload_digest, is_test, duration_ms, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		log.ID, log.SubscriptionID, log.EventID, string(log.Event), log.URL,
		log.Attempt, log.Success, httpStatus, log.Error, log.PayloadDigest,
		log.Test, log.DurationMS, log.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery log: %w", err)
	}
	return nil
}

// ListBySubscription returns up to limit attempts, newest first
func (s *PostgresDeliveryLogStore) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*DeliveryLog, error) {
	query := `
		SELECT id, subscription_id, event_id, event, url, attempt, succeeded,
		       http_status, error_message, payload_digest, is_test, duration_ms, attempted_at
		FROM webhook_delivery_logs
		WHERE subscription_id = $1
		ORDER BY attempted_at DESC
	`
	args := []interface{}{subscriptionID}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*DeliveryLog, 0)
	for rows.Next() {
		log := &DeliveryLog{}
		var httpStatus sql.NullInt32
		var errorMessage, payloadDigest sql.NullString

		err := rows.Scan(
			&log.ID, &log.SubscriptionID, &log.EventID, &log.Event, &log.URL,
			&log.Attempt, &log.Success, &httpStatus, &errorMessage, &payloadDigest,
			&log.Test, &log.DurationMS, &log.AttemptedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery log: %w", err)
		}

		if httpStatus.Valid {
			log.HTTPStatus = int(httpStatus.Int32)
		}
		if errorMessage.Valid {
			log.Error = errorMessage.String
		}
		if payloadDigest.Valid {
			log.PayloadDigest = payloadDigest.String
		}

		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery logs: %w", err)
	}

	return logs, nil
}

// Stats aggregates the subscription's delivery history
func (s *PostgresDeliveryLogStore) Stats(ctx context.Context, subscriptionID string) (*DeliveryStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE succeeded),
			MAX(attempted_at) FILTER (WHERE succeeded),
			MAX(attempted_at) FILTER (WHERE NOT succeeded)
		FROM webhook_delivery_logs
		WHERE subscription_id = $1
	`

	stats := &DeliveryStats{}
	var lastSuccess, lastFailure sql.NullTime

	err := s.db.QueryRowContext(ctx, query, subscriptionID).Scan(
		&stats.Total, &stats.Succeeded, &lastSuccess, &lastFailure,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate delivery stats: %w", err)
	}

	stats.Failed = stats.Total - stats.Succeeded
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
	}
	if lastSuccess.Valid {
		t := lastSuccess.Time
		stats.LastSuccess = &t
	}
	if lastFailure.Valid {
		t := lastFailure.Time
		stats.LastFailure = &t
	}

	return stats, nil
}

// DeleteOlderThan removes attempts before cutoff
func (s *PostgresDeliveryLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM webhook_delivery_logs WHERE attempted_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete delivery logs: %w", err)
	}
	return result.RowsAffected()
}

// DeleteBySubscription removes all attempts for a subscription
func (s *PostgresDeliveryLogStore) DeleteBySubscription(ctx context.Context, subscriptionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM webhook_delivery_logs WHERE subscription_id = $1", subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to delete delivery logs: %w", err)
	}
	return nil
}
