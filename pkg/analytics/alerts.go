package analytics

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/soroforge/soroforge/pkg/observability"
)

// Alert check defaults used by CheckAll. The worker runs the checks
// hourly; findings are logged, not acted on.
const (
	defaultFailureWindow = 24 * time.Hour
	defaultMinAttempts   = 5
	defaultFailureRate   = 0.5
	defaultIdlePeriod    = 7 * 24 * time.Hour
)

// Alerter scans delivery history for subscriptions that need operator
// attention
type Alerter struct {
	db     DB
	logger *observability.Logger
}

// NewAlerter creates a new Alerter
func NewAlerter(db DB, logger *observability.Logger) *Alerter {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stderr)
	}
	return &Alerter{db: db, logger: logger.WithField("component", "alerts")}
}

// FailingSubscription is an active subscription whose recent delivery
// attempts are mostly failing
type FailingSubscription struct {
	SubscriptionID string  `json:"subscriptionId"`
	URL            string  `json:"url"`
	Attempts       int64   `json:"attempts"`
	Failures       int64   `json:"failures"`
	FailureRate    float64 `json:"failureRate"`
}

// IdleSubscription is an active subscription that has not been
// triggered for a long stretch
type IdleSubscription struct {
	SubscriptionID  string     `json:"subscriptionId"`
	URL             string     `json:"url"`
	LastTriggeredAt *time.Time `json:"lastTriggeredAt"`
}

// CheckFailingSubscriptions finds active subscriptions whose failure
// rate over the window meets the threshold, worst first. Test
// deliveries are excluded.
func (a *Alerter) CheckFailingSubscriptions(ctx context.Context, window time.Duration, minAttempts int64, threshold float64) ([]FailingSubscription, error) {
	query := `
		SELECT
			l.subscription_id,
			s.url,
			COUNT(*) AS attempts,
			COUNT(*) FILTER (WHERE NOT l.succeeded) AS failures,
			COUNT(*) FILTER (WHERE NOT l.succeeded)::float / COUNT(*) AS failure_rate
		FROM webhook_delivery_logs l
		JOIN webhook_subscriptions s ON s.id = l.subscription_id
		WHERE l.attempted_at >= $1
		  AND NOT l.is_test
		  AND s.active
		GROUP BY l.subscription_id, s.url
		HAVING COUNT(*) >= $2
		   AND COUNT(*) FILTER (WHERE NOT l.succeeded)::float / COUNT(*) >= $3
		ORDER BY failure_rate DESC, attempts DESC
		LIMIT 20
	`

	cutoff := time.Now().UTC().Add(-window)
	rows, err := a.db.Replica().QueryContext(ctx, query, cutoff, minAttempts, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query failing subscriptions: %w", err)
	}
	defer rows.Close()

	var alerts []FailingSubscription
	for rows.Next() {
		var alert FailingSubscription
		if err := rows.Scan(&alert.SubscriptionID, &alert.URL,
			&alert.Attempts, &alert.Failures, &alert.FailureRate); err != nil {
			return nil, fmt.Errorf("failed to scan failing subscription: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failing subscriptions: %w", err)
	}

	return alerts, nil
}

// CheckIdleSubscriptions finds active subscriptions with no trigger
// since the cutoff. Subscriptions younger than the idle period are
// skipped so a fresh registration never alerts.
func (a *Alerter) CheckIdleSubscriptions(ctx context.Context, idleFor time.Duration) ([]IdleSubscription, error) {
	query := `
		SELECT id, url, last_triggered_at
		FROM webhook_subscriptions
		WHERE active
		  AND (last_triggered_at IS NULL OR last_triggered_at < $1)
		  AND created_at < $1
		ORDER BY last_triggered_at ASC NULLS FIRST
		LIMIT 20
	`

	cutoff := time.Now().UTC().Add(-idleFor)
	rows, err := a.db.Replica().QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query idle subscriptions: %w", err)
	}
	defer rows.Close()

	var alerts []IdleSubscription
	for rows.Next() {
		var alert IdleSubscription
		if err := rows.Scan(&alert.SubscriptionID, &alert.URL, &alert.LastTriggeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan idle subscription: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating idle subscriptions: %w", err)
	}

	return alerts, nil
}

// CheckAll runs every alert check with the default thresholds and logs
// the findings. Check errors are logged and skipped so one broken
// query does not silence the rest.
func (a *Alerter) CheckAll(ctx context.Context) error {
	failing, err := a.CheckFailingSubscriptions(ctx, defaultFailureWindow, defaultMinAttempts, defaultFailureRate)
	if err != nil {
		a.logger.WithError(err).Errorf("failing subscription check failed")
	} else if len(failing) > 0 {
		for _, alert := range failing {
			a.logger.WithFields(map[string]interface{}{
				"subscriptionId": alert.SubscriptionID,
				"url":            alert.URL,
				"attempts":       alert.Attempts,
				"failureRate":    alert.FailureRate,
			}).Warnf("subscription is failing deliveries")
		}
	} else {
		a.logger.Debugf("no failing subscriptions")
	}

	idle, err := a.CheckIdleSubscriptions(ctx, defaultIdlePeriod)
	if err != nil {
		a.logger.WithError(err).Errorf("idle subscription check failed")
	} else if len(idle) > 0 {
		for _, alert := range idle {
			a.logger.WithFields(map[string]interface{}{
				"subscriptionId": alert.SubscriptionID,
				"url":            alert.URL,
			}).Warnf("active subscription has no recent deliveries")
		}
	} else {
		a.logger.Debugf("no idle subscriptions")
	}

	return nil
}
