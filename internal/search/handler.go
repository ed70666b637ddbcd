package search

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

// Handler exposes search's read-only query surface over HTTP.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/search/items", h.handleSearch)
	r.Get("/search/suggest", h.handleSuggest)
	r.Get("/search/stats", h.handleStatistics)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := Query{
		Text:    q.Get("q"),
		Page:    atoiOr(q.Get("page"), 1),
		PerPage: atoiOr(q.Get("per_page"), 20),
	}
	if pos := q.Get("part_of_speech"); pos != "" {
		query.Filter = &Filter{PartOfSpeech: []string{pos}}
	}
	if query.Text == "" {
		writeError(w, errs.New(errs.Validation, "q is required"))
		return
	}
	result, err := h.service.Search(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("q")
	if prefix == "" {
		writeError(w, errs.New(errs.Validation, "q is required"))
		return
	}
	suggestions, err := h.service.Suggest(r.Context(), prefix, atoiOr(q.Get("limit"), 10))
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(suggestions)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(stats)
}

func atoiOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// writeError mirrors internal/progress/handler.go's error-kind-to-status
// mapping (spec §7).
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.Validation:
		status = http.StatusBadRequest
	case errs.NotFound, errs.SchemaNotFound:
		status = http.StatusNotFound
	case errs.AlreadyExists:
		status = http.StatusConflict
	case errs.Conflict, errs.VersionConflict, errs.MaxVersionsExceeded:
		status = http.StatusConflict
	case errs.PermissionDenied:
		status = http.StatusForbidden
	case errs.Unauthenticated:
		status = http.StatusUnauthorized
	case errs.Domain:
		status = http.StatusUnprocessableEntity
	case errs.Database, errs.EventStore:
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}
