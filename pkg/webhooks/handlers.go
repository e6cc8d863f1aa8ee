package webhooks

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/httputil"
	"github.com/soroforge/soroforge/pkg/observability"
)

const (
	// defaultLogLimit caps delivery log listings when no limit is given
	defaultLogLimit = 50
	// maxLogLimit bounds how many rows one listing may request
	maxLogLimit = 500
)

// Handlers provides the HTTP surface for webhook management
type Handlers struct {
	registry    *Registry
	dispatcher  *Dispatcher
	testLimiter *RateLimiter
	logger      *observability.Logger
}

// NewHandlers creates webhook handlers. testPerMinute bounds manual
// test deliveries per subscription (0 means 6).
func NewHandlers(registry *Registry, dispatcher *Dispatcher, testPerMinute int, logger *observability.Logger) *Handlers {
	if testPerMinute <= 0 {
		testPerMinute = 6
	}
	return &Handlers{
		registry:    registry,
		dispatcher:  dispatcher,
		testLimiter: NewRateLimiter(testPerMinute, time.Minute/time.Duration(testPerMinute)),
		logger:      logger,
	}
}

// RegisterRoutes registers webhook routes. Literal paths are
// registered before the {id} patterns so they are never shadowed.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/subscribe", h.subscribe).Methods("POST")
	router.HandleFunc("/webhooks/unsubscribe/{id}", h.unsubscribe).Methods("DELETE")
	router.HandleFunc("/webhooks/list", h.list).Methods("POST")
	router.HandleFunc("/webhooks/{id}", h.get).Methods("GET")
	router.HandleFunc("/webhooks/{id}/toggle", h.toggle).Methods("PATCH")
	router.HandleFunc("/webhooks/{id}/logs", h.logs).Methods("GET")
	router.HandleFunc("/webhooks/{id}/stats", h.stats).Methods("GET")
	router.HandleFunc("/webhooks/{id}/test", h.test).Methods("POST")
}

type subscribeRequest struct {
	URL          string             `json:"url"`
	Events       []events.EventType `json:"events"`
	TokenAddress string             `json:"tokenAddress"`
	Format       Format             `json:"format"`
	CreatedBy    string             `json:"createdBy"`
}

// subscribe handles POST /webhooks/subscribe. The response is the only
// place the full signing secret ever appears.
func (h *Handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	sub, err := h.registry.Create(r.Context(), CreateParams{
		URL:          req.URL,
		Events:       req.Events,
		TokenAddress: req.TokenAddress,
		Format:       req.Format,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			httputil.WriteValidationError(w, err.Error())
		} else {
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, sub)
}

type unsubscribeRequest struct {
	CreatedBy string `json:"createdBy"`
}

// unsubscribe handles DELETE /webhooks/unsubscribe/{id}
func (h *Handlers) unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req unsubscribeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.CreatedBy, "createdBy") {
		return
	}

	if err := h.registry.Delete(r.Context(), id, req.CreatedBy); err != nil {
		h.writeRegistryError(w, err)
		return
	}

	h.testLimiter.Reset(id)
	httputil.WriteNoContent(w)
}

type listRequest struct {
	CreatedBy string `json:"createdBy"`
	Active    *bool  `json:"active"`
}

// list handles POST /webhooks/list
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.CreatedBy, "createdBy") {
		return
	}

	subs, err := h.registry.List(r.Context(), req.CreatedBy, req.Active)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// get handles GET /webhooks/{id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	httputil.WriteSuccess(w, sub)
}

type toggleRequest struct {
	Active *bool `json:"active"`
}

// toggle handles PATCH /webhooks/{id}/toggle
func (h *Handlers) toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req toggleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Active == nil {
		httputil.WriteValidationError(w, "active is required")
		return
	}

	sub, err := h.registry.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	httputil.WriteSuccess(w, sub)
}

// logs handles GET /webhooks/{id}/logs
func (h *Handlers) logs(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", defaultLogLimit)
	if err != nil || limit < 1 {
		httputil.WriteValidationError(w, "limit must be a positive integer")
		return
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	entries, err := h.registry.Logs(r.Context(), id, limit)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"logs":  entries,
		"count": len(entries),
		"limit": limit,
	})
}

// stats handles GET /webhooks/{id}/stats
func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	stats, err := h.registry.Stats(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	httputil.WriteSuccess(w, stats)
}

// test handles POST /webhooks/{id}/test. Each subscription gets a
// bounded number of test deliveries per minute.
func (h *Handlers) test(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if !h.testLimiter.Allow(id) {
		httputil.WriteRateLimited(w, h.testLimiter.RetryAfter(id))
		return
	}

	entry, err := h.dispatcher.TestDelivery(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	message := "test delivery succeeded"
	if !entry.Success {
		message = "test delivery failed: " + entry.Error
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"success": entry.Success,
		"message": message,
	})
}

func (h *Handlers) writeRegistryError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, "subscription not found")
		return
	}
	httputil.WriteInternalError(w, err)
}
