package eventstore

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

// Handler exposes the raw append-only log over HTTP for
// operational/administrative use (stream inspection, replay tooling)
// — every bounded context's own service embeds a *Store directly
// rather than calling this API, matching the teacher's pattern of
// each service owning its own eventstore.NewEventStore(db) (spec §4.1).
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/streams/{streamType}/{streamID}", h.handleReadStream)
	r.Get("/events", h.handleReadAllForward)
}

func (h *Handler) handleReadStream(w http.ResponseWriter, r *http.Request) {
	streamType := chi.URLParam(r, "streamType")
	streamID := chi.URLParam(r, "streamID")

	fromVersion := atoiOr(r.URL.Query().Get("from_version"), 0)
	toVersion := atoiOr(r.URL.Query().Get("to_version"), -1)

	envs, err := h.store.Read(r.Context(), streamID, streamType, fromVersion, toVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(envs)
}

func (h *Handler) handleReadAllForward(w http.ResponseWriter, r *http.Request) {
	fromPosition := int64(atoiOr(r.URL.Query().Get("from_position"), 0))
	max := atoiOr(r.URL.Query().Get("max"), 100)

	envs, err := h.store.ReadAllForward(r.Context(), fromPosition, max)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(envs)
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
