package swagger

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/soroforge/soroforge/pkg/httputil"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Handlers serves the OpenAPI specification and a Swagger UI shell.
// The JSON rendering is converted from the embedded YAML on first
// request and cached for the life of the process.
type Handlers struct {
	jsonOnce sync.Once
	jsonSpec []byte
	jsonErr  error
}

// NewHandlers creates swagger handlers
func NewHandlers() *Handlers {
	return &Handlers{}
}

// RegisterRoutes registers the documentation routes with the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/openapi.yaml", h.serveSpec).Methods("GET")
	router.HandleFunc("/openapi.json", h.serveSpecJSON).Methods("GET")
	router.HandleFunc("/swagger-ui", h.serveSwaggerUI).Methods("GET")
	router.HandleFunc("/api-docs", h.serveSwaggerUI).Methods("GET") // Alias
}

// serveSpec serves the OpenAPI specification in YAML format
func (h *Handlers) serveSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(openapiSpec)
}

// serveSpecJSON serves the OpenAPI specification converted to JSON
func (h *Handlers) serveSpecJSON(w http.ResponseWriter, r *http.Request) {
	spec, err := h.specJSON()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(spec)
}

// specJSON converts the embedded YAML document to JSON exactly once.
// yaml.v3 decodes string-keyed mappings as map[string]interface{}, so
// the result marshals to JSON directly.
func (h *Handlers) specJSON() ([]byte, error) {
	h.jsonOnce.Do(func() {
		var doc map[string]interface{}
		if err := yaml.Unmarshal(openapiSpec, &doc); err != nil {
			h.jsonErr = err
			return
		}
		h.jsonSpec, h.jsonErr = json.MarshalIndent(doc, "", "  ")
	})
	return h.jsonSpec, h.jsonErr
}

// serveSwaggerUI serves the Swagger UI HTML page
func (h *Handlers) serveSwaggerUI(w http.ResponseWriter, r *http.Request) {
	// Use Swagger UI CDN for convenience
	tmpl := template.Must(template.New("swagger").Parse(swaggerUITemplate))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, nil); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>SoroForge API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui.css" />
  <link rel="icon" type="image/png" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/favicon-32x32.png" sizes="32x32" />
  <link rel="icon" type="image/png" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/favicon-16x16.png" sizes="16x16" />
  <style>
    html {
      box-sizing: border-box;
      overflow: -moz-scrollbars-vertical;
      overflow-y: scroll;
    }
    *, *:before, *:after {
      box-sizing: inherit;
    }
    body {
      margin:0;
      padding:0;
    }
  </style>
</head>
<body>
<div id="swagger-ui"></div>

<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-bundle.js" charset="UTF-8"></script>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-standalone-preset.js" charset="UTF-8"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({
    url: "/openapi.yaml",
    dom_id: '#swagger-ui',
    deepLinking: true,
    presets: [
      SwaggerUIBundle.presets.apis,
      SwaggerUIStandalonePreset
    ],
    plugins: [
      SwaggerUIBundle.plugins.DownloadUrl
    ],
    layout: "StandaloneLayout",
    requestInterceptor: function(request) {
      // Lets the ingest endpoint be exercised from the UI
      const token = localStorage.getItem('soroforge_ingest_token');
      if (token) {
        request.headers['Authorization'] = 'Bearer ' + token;
      }
      return request;
    }
  });
};
</script>
</body>
</html>`
