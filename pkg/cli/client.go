package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// defaultServer is used when neither the flag nor SOROFORGE_SERVER is set
const defaultServer = "http://localhost:8080"

// serverURL resolves the API base URL: flag value first, then the
// SOROFORGE_SERVER environment variable, then the local default
func serverURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("SOROFORGE_SERVER"); env != "" {
		return env
	}
	return defaultServer
}

// apiClient is a thin JSON client over the registry API
type apiClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		token:   os.Getenv("SOROFORGE_INGEST_TOKEN"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// doJSON performs one request. A non-nil body is sent as JSON; a
// non-nil out receives the decoded response body. Error responses are
// surfaced as the server's {"error": ...} message.
func (c *apiClient) doJSON(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
