package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
)

func newHandlersFixture(t *testing.T, db DB, cache SnapshotCache) *mux.Router {
	t.Helper()

	service := NewService(db, cache, time.Minute, quietLogger(), nil)
	handlers := NewHandlers(service, quietLogger())

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	handlers.RegisterRoutes(api)
	return router
}

func TestPlatformEndpoint(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	cache := newFakeSnapshotCache()
	primed := &PlatformSnapshot{
		GeneratedAt:         time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		TotalTokens:         9,
		TotalBurned:         "1234",
		ActiveSubscriptions: 2,
	}
	if err := cache.SetJSON(context.Background(), platformCacheKey, primed, time.Minute); err != nil {
		t.Fatalf("Failed to prime cache: %v", err)
	}

	router := newHandlersFixture(t, SingleDB{Handle: db}, cache)

	req := httptest.NewRequest("GET", "/api/v1/analytics/platform", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var snap PlatformSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if snap.TotalTokens != 9 {
		t.Errorf("Expected TotalTokens=9, got %d", snap.TotalTokens)
	}
	if snap.TotalBurned != "1234" {
		t.Errorf("Expected TotalBurned=1234, got %s", snap.TotalBurned)
	}
	if snap.ActiveSubscriptions != 2 {
		t.Errorf("Expected ActiveSubscriptions=2, got %d", snap.ActiveSubscriptions)
	}
}

func TestPlatformEndpointError(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	// No cache and no expected queries, so the snapshot build fails.
	router := newHandlersFixture(t, SingleDB{Handle: db}, nil)

	req := httptest.NewRequest("GET", "/api/v1/analytics/platform", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
}

func TestPlatformEndpointWithoutDatabase(t *testing.T) {
	router := newHandlersFixture(t, nil, nil)

	req := httptest.NewRequest("GET", "/api/v1/analytics/platform", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["error"] != ErrNoDatabase.Error() {
		t.Errorf("Expected memory-mode error message, got %q", body["error"])
	}
}
