package algorithm

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Handler exposes the scheduler and analytics engine over HTTP,
// generalized from internal/circulation's chi-free mux to
// go-chi/chi/v5 route params the way internal/user/handler.go does.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/users/{userID}/items/{itemID}/schedule", h.handleScheduleNewItem)
	r.Post("/users/{userID}/items/{itemID}/review", h.handleRescheduleItem)
	r.Get("/users/{userID}/due-items", h.handleGetDueItems)
	r.Post("/users/{userID}/items/{itemID}/difficulty", h.handleAdjustDifficulty)
	r.Get("/users/{userID}/items/{itemID}/history", h.handleGetItemHistory)
	r.Get("/users/{userID}/analytics/performance", h.handleAnalyzePerformance)
	r.Get("/users/{userID}/analytics/trends", h.handleAnalyzeLearningTrends)
	r.Get("/users/{userID}/strategy", h.handleGetLearningStrategy)
	r.Patch("/users/{userID}/strategy", h.handleAdjustStrategy)
}

func pathIDs(r *http.Request) (ids.UserId, ids.ItemId, error) {
	userID, err := ids.ParseUserId(chi.URLParam(r, "userID"))
	if err != nil {
		return ids.UserId{}, ids.ItemId{}, err
	}
	itemIDParam := chi.URLParam(r, "itemID")
	if itemIDParam == "" {
		return userID, ids.ItemId{}, nil
	}
	itemID, err := ids.ParseItemId(itemIDParam)
	return userID, itemID, err
}

func (h *Handler) handleScheduleNewItem(w http.ResponseWriter, r *http.Request) {
	userID, itemID, err := pathIDs(r)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user or item id"))
		return
	}
	var req struct {
		UserLevel string `json:"user_level"`
		ItemLevel string `json:"item_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}
	userLevel, err := ids.ParseCEFRLevel(req.UserLevel)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user_level"))
		return
	}
	itemLevel, err := ids.ParseCEFRLevel(req.ItemLevel)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid item_level"))
		return
	}

	progress, err := h.service.ScheduleNewItem(r.Context(), userID, itemID, userLevel, itemLevel)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(progress)
}

func (h *Handler) handleRescheduleItem(w http.ResponseWriter, r *http.Request) {
	userID, itemID, err := pathIDs(r)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user or item id"))
		return
	}
	var req struct {
		SessionID      string `json:"session_id,omitempty"`
		Judgment       int    `json:"judgment"`
		ResponseTimeMs int    `json:"response_time_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	var sessionID *ids.SessionId
	if req.SessionID != "" {
		sid, err := ids.ParseSessionId(req.SessionID)
		if err != nil {
			writeError(w, errs.New(errs.Validation, "invalid session_id"))
			return
		}
		sessionID = &sid
	}

	progress, err := h.service.RescheduleItem(r.Context(), userID, itemID, sessionID, ids.CorrectnessJudgment(req.Judgment), req.ResponseTimeMs)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(progress)
}

func (h *Handler) handleGetDueItems(w http.ResponseWriter, r *http.Request) {
	userID, _, err := pathIDs(r)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.service.GetDueItems(r.Context(), userID, time.Now().UTC(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(items)
}

func (h *Handler) handleAdjustDifficulty(w http.ResponseWriter, r *http.Request) {
	userID, itemID, err := pathIDs(r)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user or item id"))
		return
	}
	var req struct {
		Reason          string   `json:"reason"`
		UserValue       float64  `json:"user_value"`
		SuggestedFactor *float64 `json:"suggested_factor,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	progress, err := h.service.AdjustDifficulty(r.Context(), userID, itemID, AdjustmentReason(req.Reason), req.UserValue, req.SuggestedFactor)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(progress)
}

func (h *Handler) handleGetItemHistory(w http.ResponseWriter, r *http.Request) {
	userID, itemID, err := pathIDs(r)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user or item id"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := h.service.GetItemHistory(r.Context(), userID, itemID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(history)
}

func (h *Handler) handleAnalyzePerformance(w http.ResponseWriter, r *http.Request) {
	userID, _, err := pathIDs(r)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	window := 30 * 24 * time.Hour
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		if days, err := strconv.Atoi(raw); err == nil && days > 0 {
			window = time.Duration(days) * 24 * time.Hour
		}
	}

	snapshot, err := h.service.AnalyzePerformance(r.Context(), userID, window)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(snapshot)
}

func (h *Handler) handleAnalyzeLearningTrends(w http.ResponseWriter, r *http.Request) {
	userID, _, err := pathIDs(r)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	recentN, _ := strconv.Atoi(r.URL.Query().Get("recent_n"))

	trends, err := h.service.AnalyzeLearningTrends(r.Context(), userID, recentN)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(trends)
}

func (h *Handler) handleGetLearningStrategy(w http.ResponseWriter, r *http.Request) {
	userID, _, err := pathIDs(r)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	strat, err := h.service.GetLearningStrategy(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(strat)
}

func (h *Handler) handleAdjustStrategy(w http.ResponseWriter, r *http.Request) {
	userID, _, err := pathIDs(r)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	var req struct {
		ExpectedVersion int    `json:"expected_version"`
		DailyGoal       int    `json:"daily_goal"`
		Notes           string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	strat, err := h.service.AdjustStrategy(r.Context(), userID, req.ExpectedVersion, req.DailyGoal, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(strat)
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
