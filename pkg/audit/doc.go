// Package audit records who did what to subscription, token, and asset
// records.
//
// Every mutation on the public API produces an Entry naming the action,
// the outcome, the acting wallet address, and the affected record.
// Delivery attempts are not audited here; the webhook delivery log and
// Prometheus metrics cover those.
//
// Loggers are pluggable: DBLogger persists to PostgreSQL, FileLogger
// appends newline-delimited JSON with rotation, MemoryLogger backs the
// memory storage mode, and MultiLogger fans out to several at once.
// Handlers that want to audit pull the logger from the request context:
//
//	entry := audit.NewEntry(ctx, r, audit.ActionSubscriptionCreate, audit.StatusSuccess)
//	entry.SubjectType = audit.SubjectSubscription
//	entry.SubjectID = sub.ID
//	audit.FromContext(ctx).Record(ctx, entry)
//
// The Store interface exposes the recorded trail for the internal query
// and export API.
package audit
