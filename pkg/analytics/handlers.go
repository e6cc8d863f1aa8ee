package analytics

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/soroforge/soroforge/pkg/httputil"
	"github.com/soroforge/soroforge/pkg/observability"
)

// Handlers exposes the analytics snapshot over HTTP
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

// NewHandlers creates analytics handlers
func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes registers analytics routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/analytics/platform", h.platform).Methods("GET")
}

// platform handles GET /analytics/platform
func (h *Handlers) platform(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetPlatform(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoDatabase) {
			httputil.WriteServiceUnavailable(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, snap)
}
