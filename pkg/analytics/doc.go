// Package analytics computes and serves platform-wide statistics for
// the SoroForge dashboard.
//
// # Overview
//
// A nightly rollup folds token creations, burn activity, and webhook
// delivery outcomes into one analytics_daily row per day. The API
// serves a live snapshot (totals, 24h activity, the recent daily
// series) from a short-lived Redis cache so dashboard polling stays
// off the database.
//
// # Key Metrics
//
// Snapshot:
//   - Total tokens, burn events, amount burned
//   - Active subscriptions
//   - Tokens created and deliveries over the last 24h
//   - Delivery success rate (test deliveries excluded)
//
// Daily series:
//   - Tokens created, burn events, deliveries, failures per day
//
// # Aggregation
//
// The worker binary drives the rollup on a cron schedule:
//
//	aggregator.AggregateDaily(ctx, yesterday)
//	aggregator.Backfill(ctx, 7) // recompute a gap
//
// Burn events per day are the delta of the registry's cumulative burn
// counter between consecutive rollups, so backfills attribute missed
// burns to the oldest recomputed day.
//
// # Alerting
//
// The Alerter scans delivery history for active subscriptions that are
// mostly failing, or that have gone quiet entirely, and logs findings
// for operators. It takes no action on its own.
package analytics
