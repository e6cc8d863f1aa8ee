package tokens

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrNotFound is returned for token addresses the registry has never
// recorded.
var ErrNotFound = errors.New("token not found")

// ErrExists is returned when a token address is recorded twice. Event
// replays hit this path; callers treat it as already done.
var ErrExists = errors.New("token already registered")

// Search and leaderboard page bounds
const (
	DefaultSearchLimit      = 20
	MaxSearchLimit          = 100
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// Token is one factory-deployed token as recorded by the registry.
// Supply and burn totals are decimal strings because token amounts are
// 128-bit on chain.
type Token struct {
	Address         string    `json:"address"`
	Creator         string    `json:"creator"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	Decimals        uint32    `json:"decimals"`
	TotalSupply     string    `json:"totalSupply"`
	MetadataURI     string    `json:"metadataUri,omitempty"`
	TotalBurned     string    `json:"totalBurned"`
	BurnCount       int64     `json:"burnCount"`
	ClawbackEnabled bool      `json:"clawbackEnabled"`
	TxHash          string    `json:"txHash,omitempty"`
	LedgerSeq       uint32    `json:"ledgerSeq,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SearchRequest filters the token registry. Query matches name or
// symbol case-insensitively; Creator is an exact address match.
type SearchRequest struct {
	Query   string `json:"query,omitempty"`
	Creator string `json:"creator,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// Clamp normalizes the page bounds in place
func (r *SearchRequest) Clamp() {
	if r.Limit <= 0 {
		r.Limit = DefaultSearchLimit
	}
	if r.Limit > MaxSearchLimit {
		r.Limit = MaxSearchLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
}

// SearchResponse is one page of matching tokens plus the unpaged total
type SearchResponse struct {
	Tokens []Token `json:"tokens"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// LeaderboardEntry is one row of the burn leaderboard, ranked by total
// amount burned.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalBurned string `json:"totalBurned"`
	BurnCount   int64  `json:"burnCount"`
}

// ParseAmount converts a decimal string amount into a big integer.
// Amounts must be non-negative.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative: %s", s)
	}
	return n, nil
}
