package docs

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/soroforge/soroforge/pkg/docs/examples"
	"github.com/soroforge/soroforge/pkg/httputil"
)

// Handlers serves the event catalog. The catalog is static for a given
// build, so every representation is rendered once at construction.
type Handlers struct {
	catalog  *Catalog
	markdown string
	html     string
	snippets *examples.Generator
}

// NewHandlers builds the catalog and renders its representations
func NewHandlers() (*Handlers, error) {
	catalog, err := NewGenerator().Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to build event catalog: %w", err)
	}

	html, err := NewHTMLExporter().Export(catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to render event catalog: %w", err)
	}

	snippets, err := examples.NewGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to load snippet templates: %w", err)
	}

	return &Handlers{
		catalog:  catalog,
		markdown: NewMarkdownExporter().Export(catalog),
		html:     html,
		snippets: snippets,
	}, nil
}

// RegisterRoutes registers documentation routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/docs/events", h.catalogHTML).Methods("GET")
	router.HandleFunc("/docs/events/markdown", h.catalogMarkdown).Methods("GET")
	router.HandleFunc("/docs/events/json", h.catalogJSON).Methods("GET")
	router.HandleFunc("/docs/events/verify/{language}", h.verifySnippet).Methods("GET")
	router.HandleFunc("/docs/events/{event}", h.getEvent).Methods("GET")
}

// catalogHTML handles GET /docs/events
func (h *Handlers) catalogHTML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(h.html))
}

// catalogMarkdown handles GET /docs/events/markdown
func (h *Handlers) catalogMarkdown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=soroforge-events.md")
	w.Write([]byte(h.markdown))
}

// catalogJSON handles GET /docs/events/json
func (h *Handlers) catalogJSON(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.catalog)
}

// getEvent handles GET /docs/events/{event}
func (h *Handlers) getEvent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["event"]

	ev := h.catalog.FindEvent(name)
	if ev == nil {
		httputil.WriteNotFoundError(w, fmt.Sprintf("unknown event type: %s", strings.ToUpper(name)))
		return
	}

	httputil.WriteSuccess(w, ev)
}

// verifySnippet handles GET /docs/events/verify/{language}
func (h *Handlers) verifySnippet(w http.ResponseWriter, r *http.Request) {
	language := strings.ToLower(mux.Vars(r)["language"])

	snippet, err := h.snippets.Generate(language)
	if err != nil {
		httputil.WriteNotFoundError(w, fmt.Sprintf("no verification snippet for %q; available: %s",
			language, strings.Join(h.snippets.Languages(), ", ")))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(snippet))
}
