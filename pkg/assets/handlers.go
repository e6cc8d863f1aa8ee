package assets

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/soroforge/soroforge/pkg/httputil"
	"github.com/soroforge/soroforge/pkg/observability"
)

// Handlers exposes asset serving and upload endpoints
type Handlers struct {
	store  Store
	logger *observability.Logger
}

// NewHandlers creates asset handlers
func NewHandlers(store Store, logger *observability.Logger) *Handlers {
	return &Handlers{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes registers the public asset-serving route
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/assets/{key:.+}", h.serve).Methods(http.MethodGet)
}

// RegisterInternalRoutes registers the upload route. Uploads come from the
// platform frontend during token creation, not from webhook consumers.
func (h *Handlers) RegisterInternalRoutes(r *mux.Router) {
	r.HandleFunc("/assets", h.upload).Methods(http.MethodPost)
}

// upload handles POST /assets. The raw body is the asset; Content-Type
// describes it. Responds with the object descriptor, whose URL is suitable
// for a token's metadata URI.
func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxAssetSize))
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "asset exceeds size limit")
		return
	}
	if len(body) == 0 {
		httputil.WriteValidationError(w, "request body is empty")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	obj, err := h.store.Put(r.Context(), body, contentType)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "asset exceeds size limit")
			return
		}
		h.logger.WithError(err).Error("failed to store asset")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, obj)
}

// serve handles GET /assets/{key}. Used in filesystem mode; S3-backed
// deployments hand out direct object URLs instead.
func (h *Handlers) serve(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	reader, obj, err := h.store.Get(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidKey):
			httputil.WriteNotFoundError(w, "asset not found")
		default:
			h.logger.WithError(err).WithField("key", key).Error("failed to read asset")
			httputil.WriteInternalError(w, err)
		}
		return
	}
	defer reader.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	// Content-addressed keys never change, so clients may cache forever.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("asset stream interrupted")
	}
}
