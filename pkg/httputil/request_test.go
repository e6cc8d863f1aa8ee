package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestParseJSON(t *testing.T) {
	body := `{"url": "https://example.com/hook", "events": ["TOKEN_CREATED"]}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dest struct {
		URL    string   `json:"url"`
		Events []string `json:"events"`
	}
	if err := ParseJSON(r, &dest); err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if dest.URL != "https://example.com/hook" {
		t.Errorf("Expected url parsed, got %s", dest.URL)
	}
	if len(dest.Events) != 1 || dest.Events[0] != "TOKEN_CREATED" {
		t.Errorf("Expected events parsed, got %v", dest.Events)
	}
}

func TestParseJSONInvalid(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))

	var dest map[string]interface{}
	if err := ParseJSON(r, &dest); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestParseJSONStrict(t *testing.T) {
	body := `{"url": "https://example.com/hook", "surprise": true}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dest struct {
		URL string `json:"url"`
	}
	if err := ParseJSONStrict(r, &dest); err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestParseJSONOrError(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a": 1}`))
		w := httptest.NewRecorder()

		var dest map[string]int
		if ok := ParseJSONOrError(w, r, &dest); !ok {
			t.Error("Expected true for valid JSON")
		}
	})

	t.Run("invalid writes 400", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("nope"))
		w := httptest.NewRecorder()

		var dest map[string]int
		if ok := ParseJSONOrError(w, r, &dest); ok {
			t.Error("Expected false for invalid JSON")
		}
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestParsePathString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/webhooks/sub_abc", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "sub_abc"})

	val, err := ParsePathString(r, "id")
	if err != nil {
		t.Fatalf("ParsePathString failed: %v", err)
	}
	if val != "sub_abc" {
		t.Errorf("Expected sub_abc, got %s", val)
	}

	if _, err := ParsePathString(r, "missing"); err == nil {
		t.Error("Expected error for missing parameter")
	}
}

func TestParseQueryInt(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		defaultVal int
		want       int
		wantErr    bool
	}{
		{"present", "limit=25", 50, 25, false},
		{"absent uses default", "", 50, 50, false},
		{"invalid", "limit=abc", 50, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			got, err := ParseQueryInt(r, "limit", tt.defaultVal)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQueryInt failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestParseQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?event=TOKEN_CREATED", nil)

	if got := ParseQueryString(r, "event", "ALL"); got != "TOKEN_CREATED" {
		t.Errorf("Expected TOKEN_CREATED, got %s", got)
	}
	if got := ParseQueryString(r, "missing", "ALL"); got != "ALL" {
		t.Errorf("Expected default ALL, got %s", got)
	}
}

func TestParseQueryBool(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?active=true", nil)

	got, err := ParseQueryBool(r, "active", false)
	if err != nil {
		t.Fatalf("ParseQueryBool failed: %v", err)
	}
	if !got {
		t.Error("Expected true")
	}

	r = httptest.NewRequest(http.MethodGet, "/?active=banana", nil)
	if _, err := ParseQueryBool(r, "active", false); err == nil {
		t.Error("Expected error for invalid boolean")
	}
}

func TestRequireNonEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	if ok := RequireNonEmpty(w, "value", "field"); !ok {
		t.Error("Expected true for non-empty value")
	}

	w = httptest.NewRecorder()
	if ok := RequireNonEmpty(w, "", "url"); ok {
		t.Error("Expected false for empty value")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "url is required") {
		t.Errorf("Expected field name in error, got %s", w.Body.String())
	}
}

func TestValidateAll(t *testing.T) {
	w := httptest.NewRecorder()

	ok := ValidateAll(w,
		func() (bool, string) { return true, "" },
		func() (bool, string) { return false, "events must not be empty" },
		func() (bool, string) { return true, "" },
	)
	if ok {
		t.Error("Expected false when a validator fails")
	}
	if !strings.Contains(w.Body.String(), "events must not be empty") {
		t.Errorf("Expected first failing message, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	ok = ValidateAll(w,
		func() (bool, string) { return true, "" },
	)
	if !ok {
		t.Error("Expected true when all validators pass")
	}
}
