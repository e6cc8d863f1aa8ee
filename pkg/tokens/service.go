package tokens

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/observability"
)

// SearchCache caches serialized search pages outside process memory.
// *postgres.RedisClient satisfies it; a nil cache disables the layer.
type SearchCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePatterns(ctx context.Context, patterns ...string) error
}

const (
	searchKeyPrefix  = "tokens:search:"
	defaultSearchTTL = 5 * time.Minute
)

// Service maintains the token registry from platform events and serves
// reads. It consumes the event stream as a bus handler; the registry
// trails chain state only by the deployer's ingest feed.
type Service struct {
	store       Store
	searchCache SearchCache
	searchTTL   time.Duration
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewService creates a token service. searchCache and metrics may be
// nil; searchTTL of zero means 5 minutes.
func NewService(store Store, searchCache SearchCache, searchTTL time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if searchTTL <= 0 {
		searchTTL = defaultSearchTTL
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stderr)
	}
	return &Service{
		store:       store,
		searchCache: searchCache,
		searchTTL:   searchTTL,
		logger:      logger.WithField("component", "tokens"),
		metrics:     metrics,
	}
}

// Handle folds a platform event into the registry. Events that are not
// token-scoped are ignored. Replayed envelopes must not fail the bus:
// duplicate creations and burns against unknown tokens are logged and
// swallowed.
func (s *Service) Handle(ctx context.Context, env events.Envelope) error {
	switch env.Event {
	case events.EventTokenCreated:
		return s.recordCreated(ctx, env)
	case events.EventTokenSelfBurn, events.EventTokenAdminBurn:
		return s.recordBurn(ctx, env, "amount", 1)
	case events.EventTokenBatchBurn:
		count := dataInt64(env.Data, "count")
		return s.recordBurn(ctx, env, "total_amount", count)
	case events.EventTokenClawback:
		return s.recordClawback(ctx, env)
	default:
		return nil
	}
}

func (s *Service) recordCreated(ctx context.Context, env events.Envelope) error {
	token := &Token{
		Address:     env.TokenAddress(),
		Creator:     dataString(env.Data, "creator"),
		Name:        dataString(env.Data, "name"),
		Symbol:      dataString(env.Data, "symbol"),
		Decimals:    uint32(dataInt64(env.Data, "decimals")),
		TotalSupply: dataString(env.Data, "total_supply"),
		MetadataURI: dataString(env.Data, "metadata_uri"),
		TotalBurned: "0",
		TxHash:      dataString(env.Data, "tx_hash"),
		LedgerSeq:   uint32(dataInt64(env.Data, "ledger")),
		CreatedAt:   env.Timestamp,
	}
	if token.Address == "" {
		s.logger.Warnf("creation event %s carries no token address", env.ID)
		return nil
	}
	if token.TotalSupply == "" {
		token.TotalSupply = "0"
	}

	err := s.store.Create(ctx, token)
	if errors.Is(err, ErrExists) {
		s.logger.Debugf("token %s already registered, skipping event %s", token.Address, env.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to register token %s: %w", token.Address, err)
	}

	s.invalidateSearch(ctx)
	s.logger.Infof("registered token %s (%s) created by %s", token.Address, token.Symbol, token.Creator)
	return nil
}

func (s *Service) recordBurn(ctx context.Context, env events.Envelope, amountKey string, burns int64) error {
	address := env.TokenAddress()
	if address == "" {
		s.logger.Warnf("burn event %s carries no token address", env.ID)
		return nil
	}

	amount := dataString(env.Data, amountKey)
	if _, err := ParseAmount(amount); err != nil {
		s.logger.WithError(err).Warnf("burn event %s carries an invalid amount", env.ID)
		return nil
	}

	err := s.store.AddBurn(ctx, address, amount, burns)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warnf("burn event %s references unknown token %s", env.ID, address)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record burn for %s: %w", address, err)
	}

	s.invalidateSearch(ctx)
	return nil
}

func (s *Service) recordClawback(ctx context.Context, env events.Envelope) error {
	address := env.TokenAddress()
	if address == "" {
		s.logger.Warnf("clawback event %s carries no token address", env.ID)
		return nil
	}

	err := s.store.SetClawback(ctx, address, dataBool(env.Data, "enabled"))
	if errors.Is(err, ErrNotFound) {
		s.logger.Warnf("clawback event %s references unknown token %s", env.ID, address)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record clawback for %s: %w", address, err)
	}

	s.invalidateSearch(ctx)
	return nil
}

// Get returns the token at the given contract address
func (s *Service) Get(ctx context.Context, address string) (*Token, error) {
	if address == "" {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, address)
}

// ListByCreator returns the creator's tokens, newest first
func (s *Service) ListByCreator(ctx context.Context, creator string) ([]*Token, error) {
	return s.store.ListByCreator(ctx, creator)
}

// Search returns a filtered, clamped page of tokens. Pages are served
// cache-aside when a search cache is configured; registry writes clear
// the cached pages.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	req.Clamp()
	key := searchKey(req)

	if s.searchCache != nil {
		var cached SearchResponse
		if hit, err := s.searchCache.GetJSON(ctx, key, &cached); err == nil && hit {
			s.observeSearchCache(true)
			return &cached, nil
		}
		s.observeSearchCache(false)
	}

	resp, err := s.store.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.searchCache != nil {
		// Best effort: a failed cache write only costs the next reader
		// a database round trip.
		_ = s.searchCache.SetJSON(ctx, key, resp, s.searchTTL)
	}
	return resp, nil
}

// BurnLeaderboard returns up to limit tokens ranked by amount burned
func (s *Service) BurnLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	return s.store.BurnLeaderboard(ctx, limit)
}

// Count returns the number of registered tokens
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

func (s *Service) invalidateSearch(ctx context.Context) {
	if s.searchCache == nil {
		return
	}
	if err := s.searchCache.InvalidatePatterns(ctx, searchKeyPrefix+"*"); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate token search cache")
	}
}

func (s *Service) observeSearchCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues("token_search").Inc()
	} else {
		s.metrics.CacheMissesTotal.WithLabelValues("token_search").Inc()
	}
}

func searchKey(req SearchRequest) string {
	return fmt.Sprintf("%s%s:%s:%d:%d", searchKeyPrefix, req.Creator, strings.ToLower(req.Query), req.Limit, req.Offset)
}

// Event data arrives either typed from in-process builders or as
// float64 from JSON ingest.
func dataString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func dataInt64(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func dataBool(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}
