package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlersFixture(t *testing.T) (*MemoryStore, *mux.Router) {
	t.Helper()

	store := NewMemoryStore()
	service := NewService(store, nil, 0, testServiceLogger(), nil)
	handlers := NewHandlers(service, testServiceLogger())

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	handlers.RegisterRoutes(api)

	return store, router
}

func TestHandlers_GetToken(t *testing.T) {
	store, router := newHandlersFixture(t)
	require.NoError(t, store.Create(context.Background(), testToken("CTOKEN1", "GALICE", "Moon Token", "MOON", time.Now().UTC())))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/CTOKEN1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var token Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	assert.Equal(t, "CTOKEN1", token.Address)
	assert.Equal(t, "Moon Token", token.Name)
	assert.Equal(t, "MOON", token.Symbol)
}

func TestHandlers_GetTokenMissing(t *testing.T) {
	_, router := newHandlersFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/CUNKNOWN", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_ListByCreator(t *testing.T) {
	store, router := newHandlersFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, testToken("CTOKEN1", "GALICE", "Moon", "MOON", now)))
	require.NoError(t, store.Create(ctx, testToken("CTOKEN2", "GALICE", "Star", "STAR", now.Add(time.Second))))
	require.NoError(t, store.Create(ctx, testToken("CTOKEN3", "GBOB", "Comet", "CMT", now)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens?creator=GALICE", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tokens []Token `json:"tokens"`
		Count  int     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Tokens, 2)
	assert.Equal(t, "CTOKEN2", resp.Tokens[0].Address)
	assert.Equal(t, "CTOKEN1", resp.Tokens[1].Address)
}

func TestHandlers_ListRequiresCreator(t *testing.T) {
	_, router := newHandlersFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_Search(t *testing.T) {
	store, router := newHandlersFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, testToken("CTOKEN1", "GALICE", "Moon Token", "MOON", now)))
	require.NoError(t, store.Create(ctx, testToken("CTOKEN2", "GBOB", "Star Token", "STAR", now)))

	body, err := json.Marshal(SearchRequest{Query: "moon"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Tokens, 1)
	assert.Equal(t, "CTOKEN1", resp.Tokens[0].Address)
	assert.Equal(t, DefaultSearchLimit, resp.Limit)
}

func TestHandlers_SearchInvalidBody(t *testing.T) {
	_, router := newHandlersFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens/search", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_Leaderboard(t *testing.T) {
	store, router := newHandlersFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, testToken("CTOKEN1", "GALICE", "Moon", "MOON", now)))
	require.NoError(t, store.Create(ctx, testToken("CTOKEN2", "GBOB", "Star", "STAR", now)))
	require.NoError(t, store.AddBurn(ctx, "CTOKEN1", "100", 1))
	require.NoError(t, store.AddBurn(ctx, "CTOKEN2", "900", 1))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/leaderboard/burns", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Leaderboard []LeaderboardEntry `json:"leaderboard"`
		Count       int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, "CTOKEN2", resp.Leaderboard[0].Address)
	assert.Equal(t, 1, resp.Leaderboard[0].Rank)
}

func TestHandlers_LeaderboardRejectsBadLimit(t *testing.T) {
	_, router := newHandlersFixture(t)

	for _, limit := range []string{"0", "-3", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/leaderboard/burns?limit="+limit, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}
