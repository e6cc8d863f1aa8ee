package tokens

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"
)

// Store persists token records
type Store interface {
	// Create records a new token. ErrExists when the address is taken.
	Create(ctx context.Context, token *Token) error

	// Get returns the token at the given contract address
	Get(ctx context.Context, address string) (*Token, error)

	// ListByCreator returns the creator's tokens, newest first
	ListByCreator(ctx context.Context, creator string) ([]*Token, error)

	// Search returns a filtered page plus the unpaged total
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)

	// AddBurn folds a burn of amount into the token's running totals.
	// burns is the number of individual burns folded (batch events fold
	// several at once).
	AddBurn(ctx context.Context, address, amount string, burns int64) error

	// SetClawback records the token's clawback flag
	SetClawback(ctx context.Context, address string, enabled bool) error

	// BurnLeaderboard returns up to limit tokens ranked by amount burned
	BurnLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	// Count returns the number of registered tokens
	Count(ctx context.Context) (int64, error)
}

// MemoryStore keeps the registry in process memory. It backs the
// default dev mode and unit tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*Token)}
}

func cloneToken(t *Token) *Token {
	clone := *t
	return &clone
}

// Create records a new token
func (s *MemoryStore) Create(ctx context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token.Address]; exists {
		return ErrExists
	}

	clone := cloneToken(token)
	if clone.TotalSupply == "" {
		clone.TotalSupply = "0"
	}
	if clone.TotalBurned == "" {
		clone.TotalBurned = "0"
	}
	s.tokens[token.Address] = clone
	return nil
}

// Get returns the token at the given address
func (s *MemoryStore) Get(ctx context.Context, address string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[address]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneToken(token), nil
}

// ListByCreator returns the creator's tokens, newest first
func (s *MemoryStore) ListByCreator(ctx context.Context, creator string) ([]*Token, error) {
	s.mu.RLock()
	list := make([]*Token, 0)
	for _, token := range s.tokens {
		if token.Creator == creator {
			list = append(list, cloneToken(token))
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(list)
	return list, nil
}

// Search returns a filtered page plus the unpaged total
func (s *MemoryStore) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	query := strings.ToLower(req.Query)

	s.mu.RLock()
	matched := make([]*Token, 0)
	for _, token := range s.tokens {
		if req.Creator != "" && token.Creator != req.Creator {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(token.Name), query) &&
			!strings.Contains(strings.ToLower(token.Symbol), query) {
			continue
		}
		matched = append(matched, cloneToken(token))
	}
	s.mu.RUnlock()

	sortNewestFirst(matched)

	total := int64(len(matched))
	start := req.Offset
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if req.Limit > 0 && start+req.Limit < end {
		end = start + req.Limit
	}

	page := make([]Token, 0, end-start)
	for _, token := range matched[start:end] {
		page = append(page, *token)
	}

	return &SearchResponse{
		Tokens: page,
		Total:  total,
		Limit:  req.Limit,
		Offset: req.Offset,
	}, nil
}

// AddBurn folds a burn into the token's running totals
func (s *MemoryStore) AddBurn(ctx context.Context, address, amount string, burns int64) error {
	parsed, err := ParseAmount(amount)
	if err != nil {
		return err
	}
	if burns < 1 {
		burns = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[address]
	if !ok {
		return ErrNotFound
	}

	token.TotalBurned = new(big.Int).Add(burnTotal(token), parsed).String()
	token.BurnCount += burns
	return nil
}

// SetClawback records the token's clawback flag
func (s *MemoryStore) SetClawback(ctx context.Context, address string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[address]
	if !ok {
		return ErrNotFound
	}
	token.ClawbackEnabled = enabled
	return nil
}

// BurnLeaderboard returns up to limit tokens ranked by amount burned.
// Tokens that have never been burned are excluded.
func (s *MemoryStore) BurnLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	s.mu.RLock()
	burned := make([]*Token, 0)
	for _, token := range s.tokens {
		if token.BurnCount > 0 {
			burned = append(burned, cloneToken(token))
		}
	}
	s.mu.RUnlock()

	sort.Slice(burned, func(i, j int) bool {
		if cmp := burnTotal(burned[i]).Cmp(burnTotal(burned[j])); cmp != 0 {
			return cmp > 0
		}
		if burned[i].BurnCount != burned[j].BurnCount {
			return burned[i].BurnCount > burned[j].BurnCount
		}
		return burned[i].Address < burned[j].Address
	})

	if len(burned) > limit {
		burned = burned[:limit]
	}

	entries := make([]LeaderboardEntry, len(burned))
	for i, token := range burned {
		entries[i] = LeaderboardEntry{
			Rank:        i + 1,
			Address:     token.Address,
			Name:        token.Name,
			Symbol:      token.Symbol,
			TotalBurned: token.TotalBurned,
			BurnCount:   token.BurnCount,
		}
	}
	return entries, nil
}

// Count returns the number of registered tokens
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.tokens)), nil
}

func sortNewestFirst(list []*Token) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Address < list[j].Address
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func burnTotal(t *Token) *big.Int {
	n, ok := new(big.Int).SetString(t.TotalBurned, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}
