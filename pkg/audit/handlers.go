package audit

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/soroforge/soroforge/pkg/httputil"
)

// Handlers exposes the audit trail query API, mounted on the internal
// router alongside event ingestion.
type Handlers struct {
	store Store
}

// NewHandlers creates audit trail handlers
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers audit trail routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/entries", h.listEntries).Methods("GET")
	router.HandleFunc("/audit/export", h.exportEntries).Methods("GET")
	router.HandleFunc("/audit/stats", h.getStats).Methods("GET")
}

func (h *Handlers) listEntries(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	entries, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func (h *Handlers) exportEntries(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	format := ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = ExportFormatJSON
	}

	data, err := h.store.Export(r.Context(), filter, format)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-trail.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-trail.ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-trail.json")
	}

	w.Write(data)
}

func (h *Handlers) getStats(w http.ResponseWriter, r *http.Request) {
	var startTime, endTime *time.Time

	if startStr := r.URL.Query().Get("start_time"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			startTime = &t
		}
	}
	if endStr := r.URL.Query().Get("end_time"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			endTime = &t
		}
	}

	stats, err := h.store.GetStats(r.Context(), startTime, endTime)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, stats)
}

func parseFilter(r *http.Request) SearchFilter {
	query := r.URL.Query()
	filter := SearchFilter{}

	if startStr := query.Get("start_time"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			filter.StartTime = &t
		}
	}
	if endStr := query.Get("end_time"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			filter.EndTime = &t
		}
	}

	filter.Actor = query.Get("actor")

	if actionsStr := query.Get("actions"); actionsStr != "" {
		for _, a := range strings.Split(actionsStr, ",") {
			if a = strings.TrimSpace(a); a != "" {
				filter.Actions = append(filter.Actions, Action(a))
			}
		}
	}

	if statusStr := query.Get("status"); statusStr != "" {
		status := Status(statusStr)
		filter.Status = &status
	}

	filter.SubjectType = SubjectType(query.Get("subject_type"))
	filter.SubjectID = query.Get("subject_id")

	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil || limit <= 0 {
		limit = 100
	}
	filter.Limit = limit

	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		offset = 0
	}
	filter.Offset = offset

	return filter
}
