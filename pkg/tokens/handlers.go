package tokens

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/soroforge/soroforge/pkg/httputil"
	"github.com/soroforge/soroforge/pkg/observability"
)

// Handlers provides the read-only HTTP surface over the token registry
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

// NewHandlers creates token handlers
func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes registers token routes. Literal paths are registered
// before the {address} pattern so they are never shadowed.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tokens/leaderboard/burns", h.leaderboard).Methods("GET")
	router.HandleFunc("/tokens/search", h.search).Methods("POST")
	router.HandleFunc("/tokens/{address}", h.get).Methods("GET")
	router.HandleFunc("/tokens", h.list).Methods("GET")
}

// get handles GET /tokens/{address}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	address, ok := httputil.ParsePathStringOrError(w, r, "address")
	if !ok {
		return
	}

	token, err := h.service.Get(r.Context(), address)
	if err != nil {
		h.writeTokenError(w, err)
		return
	}

	httputil.WriteSuccess(w, token)
}

// list handles GET /tokens?creator=G...
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	creator := r.URL.Query().Get("creator")
	if !httputil.RequireNonEmpty(w, creator, "creator") {
		return
	}

	list, err := h.service.ListByCreator(r.Context(), creator)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"tokens": list,
		"count":  len(list),
	})
}

// search handles POST /tokens/search
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := h.service.Search(r.Context(), req)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, resp)
}

// leaderboard handles GET /tokens/leaderboard/burns
func (h *Handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", DefaultLeaderboardLimit)
	if err != nil || limit < 1 {
		httputil.WriteValidationError(w, "limit must be a positive integer")
		return
	}

	entries, err := h.service.BurnLeaderboard(r.Context(), limit)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"leaderboard": entries,
		"count":       len(entries),
	})
}

func (h *Handlers) writeTokenError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, "token not found")
		return
	}
	httputil.WriteInternalError(w, err)
}
