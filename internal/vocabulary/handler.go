package vocabulary

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Handler exposes the vocabulary command/query surface over HTTP,
// following internal/user/handler.go's chi-route-param shape.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/vocabulary/items", h.handleCreateItem)
	r.Patch("/vocabulary/items/{id}", h.handleUpdateItem)
	r.Post("/vocabulary/items/{id}/publish", h.handlePublishItem)
	r.Delete("/vocabulary/items/{id}", h.handleDeleteItem)
	r.Get("/vocabulary/items/{id}", h.handleGetItem)
	r.Get("/vocabulary/entries/{id}", h.handleGetEntry)
	r.Get("/vocabulary/items", h.handleFindBySpelling)
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryID        string   `json:"entry_id,omitempty"`
		Spelling       string   `json:"spelling"`
		Disambiguation string   `json:"disambiguation,omitempty"`
		PartOfSpeech   string   `json:"part_of_speech"`
		Register       string   `json:"register,omitempty"`
		Domain         string   `json:"domain,omitempty"`
		Definitions    []string `json:"definitions"`
		CEFRLevel      string   `json:"cefr_level,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	var entryID *ids.EntryId
	if req.EntryID != "" {
		parsed, err := ids.ParseEntryId(req.EntryID)
		if err != nil {
			writeError(w, errs.New(errs.Validation, "invalid entry_id"))
			return
		}
		entryID = &parsed
	}

	level := ids.A1
	if req.CEFRLevel != "" {
		parsed, err := ids.ParseCEFRLevel(req.CEFRLevel)
		if err != nil {
			writeError(w, errs.New(errs.Validation, "invalid cefr_level"))
			return
		}
		level = parsed
	}

	item, err := h.service.CreateVocabularyItem(r.Context(), entryID, req.Spelling, req.Disambiguation,
		PartOfSpeech(req.PartOfSpeech), Register(req.Register), Domain(req.Domain), req.Definitions, level)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := ids.ParseItemId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid item id"))
		return
	}
	var req struct {
		ExpectedVersion int           `json:"expected_version"`
		Updates         []FieldUpdate `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	newVersion, err := h.service.UpdateVocabularyItem(r.Context(), itemID, req.ExpectedVersion, req.Updates)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(struct {
		NewVersion int `json:"new_version"`
	}{newVersion})
}

func (h *Handler) handlePublishItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := ids.ParseItemId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid item id"))
		return
	}
	var req struct {
		ExpectedVersion int `json:"expected_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	if err := h.service.PublishVocabularyItem(r.Context(), itemID, req.ExpectedVersion); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := ids.ParseItemId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid item id"))
		return
	}
	var req struct {
		IssuedBy string `json:"issued_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}
	issuedBy, err := ids.ParseUserId(req.IssuedBy)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid issued_by"))
		return
	}

	if err := h.service.DeleteVocabularyItem(r.Context(), itemID, issuedBy); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := ids.ParseItemId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid item id"))
		return
	}
	item, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(item)
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := ids.ParseEntryId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid entry id"))
		return
	}
	entry, err := h.service.GetEntry(r.Context(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(entry)
}

func (h *Handler) handleFindBySpelling(w http.ResponseWriter, r *http.Request) {
	spelling := r.URL.Query().Get("spelling")
	if spelling == "" {
		writeError(w, errs.New(errs.Validation, "spelling query parameter is required"))
		return
	}
	items, err := h.service.FindBySpelling(r.Context(), spelling)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(items)
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
