package schemaregistry

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

// Handler exposes the registry over HTTP (spec §4.2's register/get/
// list-versions RPC surface).
type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/schemas", h.handleRegister)
	r.Get("/schemas/{eventType}", h.handleGet)
	r.Get("/schemas/{eventType}/versions", h.handleVersions)
	r.Get("/schemas", h.handleList)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventType   string `json:"event_type"`
		Definition  string `json:"definition"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "invalid request body"))
		return
	}
	schema, err := h.registry.RegisterSchema(r.Context(), req.EventType, req.Definition, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(schema)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "eventType")
	var version *int
	if raw := r.URL.Query().Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, errs.New(errs.Validation, "invalid version"))
			return
		}
		version = &v
	}
	schema, err := h.registry.GetSchema(r.Context(), eventType, version)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(schema)
}

func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.registry.GetSchemaVersions(r.Context(), chi.URLParam(r, "eventType"))
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(versions)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.registry.ListEventTypes(r.Context(), r.URL.Query().Get("context"))
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(schemas)
}

// writeError mirrors every other context's handler.go error-kind-to-
// status mapping (spec §7).
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
