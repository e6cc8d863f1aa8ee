package swagger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRegisterRoutes(t *testing.T) {
	router := mux.NewRouter()
	NewHandlers().RegisterRoutes(router)

	tests := []struct {
		name        string
		path        string
		contentType string
	}{
		{
			name:        "OpenAPI YAML endpoint",
			path:        "/openapi.yaml",
			contentType: "application/x-yaml",
		},
		{
			name:        "OpenAPI JSON endpoint",
			path:        "/openapi.json",
			contentType: "application/json",
		},
		{
			name:        "Swagger UI endpoint",
			path:        "/swagger-ui",
			contentType: "text/html; charset=utf-8",
		},
		{
			name:        "API docs alias endpoint",
			path:        "/api-docs",
			contentType: "text/html; charset=utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.NotEmpty(t, w.Body.Bytes())
		})
	}
}

func TestServeSpec(t *testing.T) {
	req := httptest.NewRequest("GET", "/openapi.yaml", nil)
	w := httptest.NewRecorder()

	NewHandlers().serveSpec(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, openapiSpec, w.Body.Bytes())
	assert.Contains(t, w.Body.String(), "openapi: 3.0")
}

func TestServeSpecJSON(t *testing.T) {
	handlers := NewHandlers()
	req := httptest.NewRequest("GET", "/openapi.json", nil)
	w := httptest.NewRecorder()

	handlers.serveSpecJSON(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.NotEmpty(t, doc["paths"])

	info, ok := doc["info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "SoroForge API", info["title"])
}

func TestServeSpecJSONCached(t *testing.T) {
	handlers := NewHandlers()

	first, err := handlers.specJSON()
	require.NoError(t, err)
	second, err := handlers.specJSON()
	require.NoError(t, err)

	// Same backing slice, not a re-conversion
	assert.Same(t, &first[0], &second[0])
}

func TestSpecCoversPublicRoutes(t *testing.T) {
	var doc struct {
		Paths map[string]interface{} `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(openapiSpec, &doc))

	// Every route the handlers actually register must be documented.
	routes := []string{
		"/webhooks/subscribe",
		"/webhooks/unsubscribe/{id}",
		"/webhooks/list",
		"/webhooks/{id}",
		"/webhooks/{id}/toggle",
		"/webhooks/{id}/logs",
		"/webhooks/{id}/stats",
		"/webhooks/{id}/test",
		"/tokens",
		"/tokens/search",
		"/tokens/leaderboard/burns",
		"/tokens/{address}",
		"/events",
		"/events/types",
		"/analytics/platform",
		"/docs/events",
		"/docs/events/json",
		"/docs/events/markdown",
		"/docs/events/verify/{language}",
		"/docs/events/{event}",
	}
	for _, route := range routes {
		assert.Contains(t, doc.Paths, route)
	}
}

func TestServeSwaggerUI(t *testing.T) {
	req := httptest.NewRequest("GET", "/swagger-ui", nil)
	w := httptest.NewRecorder()

	NewHandlers().serveSwaggerUI(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, "SoroForge API - Swagger UI")
	assert.Contains(t, body, "SwaggerUIBundle")
	assert.Contains(t, body, "/openapi.yaml")
	assert.Contains(t, body, "soroforge_ingest_token")
}

func TestRouterMethodRestrictions(t *testing.T) {
	router := mux.NewRouter()
	NewHandlers().RegisterRoutes(router)

	for _, path := range []string{"/openapi.yaml", "/openapi.json", "/swagger-ui", "/api-docs"} {
		t.Run("POST "+path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}

func BenchmarkServeSpecJSON(b *testing.B) {
	handlers := NewHandlers()
	req := httptest.NewRequest("GET", "/openapi.json", nil)

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		handlers.serveSpecJSON(w, req)
	}
}
