package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/webhooks/list", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "GCREATOR", body["createdBy"])
		assert.Equal(t, true, body["active"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"subscriptions": []map[string]interface{}{
				{"id": "sub_1", "url": "https://a.example.com", "events": []string{"TOKEN_CREATED"}, "active": true},
			},
			"count": 1,
		})
	}))
	defer server.Close()

	err := runList([]string{"-created-by", "GCREATOR", "-active", "true", "-server", server.URL})
	require.NoError(t, err)
}

func TestListCommandValidatesActive(t *testing.T) {
	err := runList([]string{"-created-by", "GCREATOR", "-active", "maybe"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "active must be true or false")
}

func TestLogsCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/webhooks/sub_1/logs", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"logs": []map[string]interface{}{
				{"id": "dlv_1", "subscriptionId": "sub_1", "event": "TOKEN_CREATED", "attempt": 1, "succeeded": true, "httpStatus": 200, "attemptedAt": "2025-06-01T12:00:00Z"},
			},
			"count": 1,
			"limit": 5,
		})
	}))
	defer server.Close()

	err := runLogs([]string{"-id", "sub_1", "-limit", "5", "-server", server.URL})
	require.NoError(t, err)
}

func TestTestCommandReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/webhooks/sub_1/test", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "test delivery failed: connection refused",
		})
	}))
	defer server.Close()

	err := runTest([]string{"-id", "sub_1", "-server", server.URL})
	require.Error(t, err)
}
