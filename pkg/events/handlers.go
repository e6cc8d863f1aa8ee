package events

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/soroforge/soroforge/pkg/httputil"
	"github.com/soroforge/soroforge/pkg/observability"
)

// Handlers exposes the internal event ingestion endpoint used by the
// chain watcher and the replay tool.
type Handlers struct {
	bus         *Bus
	ingestToken string
	logger      *observability.Logger
}

// NewHandlers creates event HTTP handlers. An empty ingestToken
// disables authentication, which is only sensible in development.
func NewHandlers(bus *Bus, ingestToken string, logger *observability.Logger) *Handlers {
	return &Handlers{
		bus:         bus,
		ingestToken: ingestToken,
		logger:      logger,
	}
}

// RegisterRoutes registers the internal ingestion route
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/events", h.ingestEvent).Methods("POST")
}

// RegisterPublicRoutes registers routes safe to expose on the public API
func (h *Handlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/events/types", h.listTypes).Methods("GET")
}

// IngestRequest is the body accepted by the ingestion endpoint. A
// top-level TokenAddress is folded into the payload's token_address
// key so token-filtered subscriptions match either spelling.
type IngestRequest struct {
	Event        string                 `json:"event"`
	TokenAddress string                 `json:"tokenAddress"`
	Data         map[string]interface{} `json:"data"`
}

func (h *Handlers) ingestEvent(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid or missing ingest token")
		return
	}

	var req IngestRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	event, err := Parse(req.Event)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if event == EventWebhookTest {
		httputil.WriteValidationError(w, "WEBHOOK_TEST cannot be ingested")
		return
	}

	data := req.Data
	if req.TokenAddress != "" {
		if data == nil {
			data = make(map[string]interface{})
		}
		if _, present := data["token_address"]; !present {
			data["token_address"] = req.TokenAddress
		}
	}

	env := NewEnvelope(event, data)
	if !h.bus.Publish(env) {
		httputil.WriteServiceUnavailable(w, "event bus saturated")
		return
	}

	h.logger.Debugf("ingested event %s (%s)", env.ID, env.Event)

	httputil.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":        env.ID,
		"event":     env.Event,
		"timestamp": env.Timestamp,
	})
}

func (h *Handlers) authorized(r *http.Request) bool {
	if h.ingestToken == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.ingestToken)) == 1
}

func (h *Handlers) listTypes(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"events": Subscribable(),
	})
}
