package progress

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Handler exposes progress's read-only query surface over HTTP.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/users/{userID}/progress", h.handleGetUserProgress)
	r.Get("/users/{userID}/progress/daily", h.handleGetDailyProgress)
	r.Get("/users/{userID}/progress/weekly", h.handleGetWeeklyProgress)
	r.Get("/users/{userID}/items/{itemID}/progress", h.handleGetItemProgress)
	r.Get("/users/{userID}/achievements", h.handleListAchievements)
}

func (h *Handler) handleGetUserProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := ids.ParseUserId(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	progress, err := h.service.GetUserProgress(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(progress)
}

func (h *Handler) handleGetDailyProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := ids.ParseUserId(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, errs.New(errs.Validation, "invalid date"))
			return
		}
		day = parsed
	}
	progress, err := h.service.GetDailyProgress(r.Context(), userID, day)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(progress)
}

func (h *Handler) handleGetWeeklyProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := ids.ParseUserId(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	weekStart := time.Now().UTC()
	if raw := r.URL.Query().Get("week_start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, errs.New(errs.Validation, "invalid week_start"))
			return
		}
		weekStart = parsed
	}
	progress, err := h.service.GetWeeklyProgress(r.Context(), userID, weekStart)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(progress)
}

func (h *Handler) handleGetItemProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := ids.ParseUserId(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	itemID, err := ids.ParseItemId(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid item id"))
		return
	}
	progress, err := h.service.GetVocabularyItemProgress(r.Context(), userID, itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(progress)
}

func (h *Handler) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	userID, err := ids.ParseUserId(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	achievements, err := h.service.ListAchievements(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(achievements)
}

// writeError mirrors internal/user/handler.go's error-kind-to-status
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
