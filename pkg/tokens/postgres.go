package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// DB pairs a write handle with a read handle so deployments with
// replicas keep registry queries off the primary.
// *postgres.ConnectionManager satisfies it; SingleDB adapts a lone
// handle.
type DB interface {
	Primary() *sql.DB
	Replica() *sql.DB
}

// SingleDB serves reads and writes from one database handle
type SingleDB struct {
	Handle *sql.DB
}

// Primary returns the wrapped handle
func (s SingleDB) Primary() *sql.DB { return s.Handle }

// Replica returns the wrapped handle
func (s SingleDB) Replica() *sql.DB { return s.Handle }

// PostgresStore persists tokens in PostgreSQL
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates the store and ensures its table
func NewPostgresStore(db DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	store := &PostgresStore{db: db}
	if err := store.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure tokens table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tokens (
		address VARCHAR(64) PRIMARY KEY,
		creator VARCHAR(64) NOT NULL,
		name TEXT NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		decimals INTEGER NOT NULL DEFAULT 7,
		total_supply NUMERIC(39, 0) NOT NULL DEFAULT 0,
		metadata_uri TEXT NOT NULL DEFAULT '',
		total_burned NUMERIC(39, 0) NOT NULL DEFAULT 0,
		burn_count BIGINT NOT NULL DEFAULT 0,
		clawback_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		tx_hash VARCHAR(64) NOT NULL DEFAULT '',
		ledger_seq BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tokens_creator ON tokens(creator, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_tokens_burned ON tokens(total_burned DESC) WHERE burn_count > 0;
	`

	_, err := s.db.Primary().Exec(query)
	return err
}

const tokenColumns = `address, creator, name, symbol, decimals, total_supply, metadata_uri, total_burned, burn_count, clawback_enabled, tx_hash, ledger_seq, created_at`

func scanToken(row interface{ Scan(...interface{}) error }) (*Token, error) {
	token := &Token{}
	err := row.Scan(
		&token.Address, &token.Creator, &token.Name, &token.Symbol, &token.Decimals,
		&token.TotalSupply, &token.MetadataURI, &token.TotalBurned, &token.BurnCount,
		&token.ClawbackEnabled, &token.TxHash, &token.LedgerSeq, &token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Create records a new token. ErrExists when the address is taken.
func (s *PostgresStore) Create(ctx context.Context, token *Token) error {
	query := `
		INSERT INTO tokens
			(address, creator, name, symbol, decimals, total_supply, metadata_uri,
			 total_burned, burn_count, clawback_enabled, tx_hash, ledger_seq, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (address) DO NOTHING
	`

	totalSupply := token.TotalSupply
	if totalSupply == "" {
		totalSupply = "0"
	}
	totalBurned := token.TotalBurned
	if totalBurned == "" {
		totalBurned = "0"
	}

	result, err := s.db.Primary().ExecContext(ctx, query,
		token.Address, token.Creator, token.Name, token.Symbol, token.Decimals,
		totalSupply, token.MetadataURI, totalBurned, token.BurnCount,
		token.ClawbackEnabled, token.TxHash, int64(token.LedgerSeq), token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrExists
	}
	return nil
}

// Get returns the token at the given address
func (s *PostgresStore) Get(ctx context.Context, address string) (*Token, error) {
	query := fmt.Sprintf("SELECT %s FROM tokens WHERE address = $1", tokenColumns)

	token, err := scanToken(s.db.Replica().QueryRowContext(ctx, query, address))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}
	return token, nil
}

// ListByCreator returns the creator's tokens, newest first
func (s *PostgresStore) ListByCreator(ctx context.Context, creator string) ([]*Token, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM tokens WHERE creator = $1 ORDER BY created_at DESC, address ASC",
		tokenColumns,
	)

	rows, err := s.db.Replica().QueryContext(ctx, query, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	list := make([]*Token, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		list = append(list, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}
	return list, nil
}

// Search returns a filtered page plus the unpaged total
func (s *PostgresStore) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	where, args := buildSearchFilter(req)

	query := fmt.Sprintf("SELECT %s FROM tokens%s ORDER BY created_at DESC, address ASC", tokenColumns, where)
	if req.Limit > 0 {
		argIndex := len(args) + 1
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := s.db.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search tokens: %w", err)
	}
	defer rows.Close()

	page := make([]Token, 0, req.Limit)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		page = append(page, *token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}

	countWhere, countArgs := buildSearchFilter(req)
	var total int64
	err = s.db.Replica().QueryRowContext(ctx, "SELECT COUNT(*) FROM tokens"+countWhere, countArgs...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count tokens: %w", err)
	}

	return &SearchResponse{
		Tokens: page,
		Total:  total,
		Limit:  req.Limit,
		Offset: req.Offset,
	}, nil
}

// buildSearchFilter renders the WHERE clause shared by the page and
// count queries. LOWER(...) LIKE keeps the match case-insensitive
// without leaning on ILIKE.
func buildSearchFilter(req SearchRequest) (string, []interface{}) {
	clauses := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	argIndex := 1

	if req.Creator != "" {
		clauses = append(clauses, fmt.Sprintf("creator = $%d", argIndex))
		args = append(args, req.Creator)
		argIndex++
	}
	if req.Query != "" {
		pattern := "%" + strings.ToLower(req.Query) + "%"
		clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(symbol) LIKE $%d)", argIndex, argIndex+1))
		args = append(args, pattern, pattern)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// AddBurn folds a burn into the token's running totals
func (s *PostgresStore) AddBurn(ctx context.Context, address, amount string, burns int64) error {
	if _, err := ParseAmount(amount); err != nil {
		return err
	}
	if burns < 1 {
		burns = 1
	}

	result, err := s.db.Primary().ExecContext(ctx, `
		UPDATE tokens
		SET total_burned = total_burned + $2, burn_count = burn_count + $3
		WHERE address = $1
	`, address, amount, burns)
	if err != nil {
		return fmt.Errorf("failed to record burn: %w", err)
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

// SetClawback records the token's clawback flag
func (s *PostgresStore) SetClawback(ctx context.Context, address string, enabled bool) error {
	result, err := s.db.Primary().ExecContext(ctx,
		"UPDATE tokens SET clawback_enabled = $2 WHERE address = $1", address, enabled)
	if err != nil {
		return fmt.Errorf("failed to update clawback flag: %w", err)
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

// BurnLeaderboard returns up to limit tokens ranked by amount burned
func (s *PostgresStore) BurnLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	rows, err := s.db.Replica().QueryContext(ctx, `
		SELECT address, name, symbol, total_burned, burn_count
		FROM tokens
		WHERE burn_count > 0
		ORDER BY total_burned DESC, burn_count DESC, address ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		entry := LeaderboardEntry{Rank: len(entries) + 1}
		err := rows.Scan(&entry.Address, &entry.Name, &entry.Symbol, &entry.TotalBurned, &entry.BurnCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}

// Count returns the number of registered tokens
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.Replica().QueryRowContext(ctx, "SELECT COUNT(*) FROM tokens").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return count, nil
}
