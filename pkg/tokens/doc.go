// Package tokens maintains the registry of factory-deployed tokens.
//
// The registry is fed by platform events: TOKEN_CREATED inserts a
// record, the burn events fold amounts into running totals, and
// TOKEN_CLAWBACK tracks the clawback flag. Reads go through an
// optional in-process LRU (token lookups, burn leaderboard) and an
// optional Redis-backed page cache for search results.
//
// Amounts are decimal strings end to end because token quantities are
// 128-bit on chain; NUMERIC(39, 0) columns hold them in PostgreSQL and
// math/big folds them in memory.
package tokens
