package tokens

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/observability"
)

func testServiceLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// fakeSearchCache is an in-memory SearchCache that records invalidations
type fakeSearchCache struct {
	mu            sync.Mutex
	entries       map[string][]byte
	invalidations int
}

func newFakeSearchCache() *fakeSearchCache {
	return &fakeSearchCache{entries: make(map[string][]byte)}
}

func (f *fakeSearchCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeSearchCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = raw
	return nil
}

func (f *fakeSearchCache) InvalidatePatterns(ctx context.Context, patterns ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string][]byte)
	f.invalidations++
	return nil
}

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	service := NewService(store, nil, 0, testServiceLogger(), nil)
	return service, store
}

func TestService_HandleTokenCreated(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	env := events.NewTokenCreated(
		"CTOKEN1", "GALICE", "Moon Token", "MOON", 7,
		"1000000000", "https://assets.example.com/moon.json", "deadbeef", 4242,
	)
	require.NoError(t, service.Handle(ctx, env))

	got, err := service.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, "GALICE", got.Creator)
	assert.Equal(t, "Moon Token", got.Name)
	assert.Equal(t, "MOON", got.Symbol)
	assert.Equal(t, uint32(7), got.Decimals)
	assert.Equal(t, "1000000000", got.TotalSupply)
	assert.Equal(t, "https://assets.example.com/moon.json", got.MetadataURI)
	assert.Equal(t, "0", got.TotalBurned)
	assert.Equal(t, "deadbeef", got.TxHash)
	assert.Equal(t, uint32(4242), got.LedgerSeq)
	assert.Equal(t, env.Timestamp, got.CreatedAt)
}

func TestService_HandleTokenCreatedReplay(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	env := events.NewTokenCreated("CTOKEN1", "GALICE", "Moon", "MOON", 7, "1000", "", "deadbeef", 1)
	require.NoError(t, service.Handle(ctx, env))

	// Replaying the same envelope must not fail the bus or duplicate
	// the record.
	require.NoError(t, service.Handle(ctx, env))

	count, err := service.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestService_HandleBurnEvents(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.Handle(ctx, events.NewTokenCreated("CTOKEN1", "GALICE", "Moon", "MOON", 7, "10000", "", "aa", 1)))

	require.NoError(t, service.Handle(ctx, events.NewTokenSelfBurn("CTOKEN1", "GBOB", "300", "bb", 2)))
	require.NoError(t, service.Handle(ctx, events.NewTokenAdminBurn("CTOKEN1", "GALICE", "GBOB", "200", "cc", 3)))

	batch, err := events.NewTokenBatchBurn("CTOKEN1", "GALICE", []events.BurnEntry{
		{From: "GBOB", Amount: "400"},
		{From: "GCAROL", Amount: "300"},
	}, "700", "dd", 4)
	require.NoError(t, err)
	require.NoError(t, service.Handle(ctx, batch))

	got, err := service.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, "1200", got.TotalBurned)
	assert.Equal(t, int64(4), got.BurnCount)
}

func TestService_HandleBurnUnknownToken(t *testing.T) {
	service, _ := newTestService(t)

	// Burns against tokens the registry never saw are dropped, not
	// surfaced as handler failures.
	env := events.NewTokenSelfBurn("CUNKNOWN", "GBOB", "100", "ee", 5)
	assert.NoError(t, service.Handle(context.Background(), env))
}

func TestService_HandleBurnInvalidAmount(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.Handle(ctx, events.NewTokenCreated("CTOKEN1", "GALICE", "Moon", "MOON", 7, "10000", "", "aa", 1)))
	require.NoError(t, service.Handle(ctx, events.NewTokenSelfBurn("CTOKEN1", "GBOB", "not-a-number", "bb", 2)))

	got, err := service.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, "0", got.TotalBurned)
	assert.Equal(t, int64(0), got.BurnCount)
}

func TestService_HandleClawback(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.Handle(ctx, events.NewTokenCreated("CTOKEN1", "GALICE", "Moon", "MOON", 7, "10000", "", "aa", 1)))
	require.NoError(t, service.Handle(ctx, events.NewTokenClawback("CTOKEN1", "GALICE", true, "bb", 2)))

	got, err := service.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.True(t, got.ClawbackEnabled)

	// Unknown targets are dropped like unknown burns.
	assert.NoError(t, service.Handle(ctx, events.NewTokenClawback("CUNKNOWN", "GALICE", true, "cc", 3)))
}

func TestService_HandleIgnoresNonTokenEvents(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.Handle(ctx, events.NewFactoryPaused("GALICE", "aa", 1)))
	require.NoError(t, service.Handle(ctx, events.NewFeeUpdated("100", "50", "bb", 2)))
	require.NoError(t, service.Handle(ctx, events.NewWebhookTest("sub_test")))

	count, err := service.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestService_HandleIngestedNumbers(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	// Envelopes arriving over the ingest endpoint have been through
	// JSON, so numbers show up as float64.
	env := events.Envelope{
		ID:        "evt_ingested",
		Event:     events.EventTokenCreated,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"token_address": "CTOKEN1",
			"creator":       "GALICE",
			"name":          "Moon",
			"symbol":        "MOON",
			"decimals":      float64(7),
			"total_supply":  "1000",
			"tx_hash":       "aa",
			"ledger":        float64(4242),
		},
	}
	require.NoError(t, service.Handle(ctx, env))

	got, err := service.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.Decimals)
	assert.Equal(t, uint32(4242), got.LedgerSeq)
}

func TestService_HandleMissingAddress(t *testing.T) {
	service, _ := newTestService(t)

	env := events.Envelope{
		ID:        "evt_broken",
		Event:     events.EventTokenCreated,
		Timestamp: time.Now().UTC(),
		Data:      map[string]interface{}{"creator": "GALICE"},
	}
	assert.NoError(t, service.Handle(context.Background(), env))
}

func TestService_SearchClampsLimit(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.Handle(ctx, events.NewTokenCreated("CTOKEN1", "GALICE", "Moon", "MOON", 7, "1000", "", "aa", 1)))

	resp, err := service.Search(ctx, SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSearchLimit, resp.Limit)

	resp, err = service.Search(ctx, SearchRequest{Limit: 9999})
	require.NoError(t, err)
	assert.Equal(t, MaxSearchLimit, resp.Limit)
}

func TestService_SearchUsesCache(t *testing.T) {
	store := NewMemoryStore()
	cache := newFakeSearchCache()
	service := NewService(store, cache, time.Minute, testServiceLogger(), nil)
	ctx := context.Background()

	require.NoError(t, service.Handle(ctx, events.NewTokenCreated("CTOKEN1", "GALICE", "Moon", "MOON", 7, "1000", "", "aa", 1)))

	first, err := service.Search(ctx, SearchRequest{Query: "moon"})
	require.NoError(t, err)
	require.Len(t, first.Tokens, 1)

	// A second identical search is served from cache: a record added
	// behind the service's back stays invisible.
	require.NoError(t, store.Create(ctx, testToken("CTOKEN2", "GBOB", "Moonshot", "SHOT", time.Now().UTC())))

	second, err := service.Search(ctx, SearchRequest{Query: "moon"})
	require.NoError(t, err)
	assert.Len(t, second.Tokens, 1)
}

func TestService_WritesInvalidateSearchCache(t *testing.T) {
	store := NewMemoryStore()
	cache := newFakeSearchCache()
	service := NewService(store, cache, time.Minute, testServiceLogger(), nil)
	ctx := context.Background()

	require.NoError(t, service.Handle(ctx, events.NewTokenCreated("CTOKEN1", "GALICE", "Moon", "MOON", 7, "1000", "", "aa", 1)))

	_, err := service.Search(ctx, SearchRequest{Query: "moon"})
	require.NoError(t, err)

	// A newly registered token clears the cached pages, so the next
	// search sees it.
	require.NoError(t, service.Handle(ctx, events.NewTokenCreated("CTOKEN2", "GBOB", "Moonshot", "SHOT", 7, "1000", "", "bb", 2)))

	resp, err := service.Search(ctx, SearchRequest{Query: "moon"})
	require.NoError(t, err)
	assert.Len(t, resp.Tokens, 2)
	assert.GreaterOrEqual(t, cache.invalidations, 2)
}

func TestService_BurnLeaderboardClampsLimit(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 12; i++ {
		address := "CTOKEN" + string(rune('A'+i))
		require.NoError(t, store.Create(ctx, testToken(address, "GALICE", "Token", "TK", now)))
		require.NoError(t, store.AddBurn(ctx, address, "100", 1))
	}

	entries, err := service.BurnLeaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, DefaultLeaderboardLimit)
}

func TestService_GetEmptyAddress(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}
