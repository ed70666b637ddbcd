package user

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Handler exposes the user command/query surface over HTTP, the one
// concrete transport binding for §6.1's RPC shape (generalized from
// internal/membership/handler.go's net/http mux to chi routing).
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/users", h.handleSignUp)
	r.Post("/users/login", h.handleLogin)
	r.Get("/users/{id}", h.handleGetUser)
	r.Patch("/users/{id}/profile", h.handleUpdateProfile)
	r.Patch("/users/{id}/role", h.handleChangeRole)
	r.Delete("/users/{id}", h.handleDeleteUser)
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	u, err := h.service.SignUp(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	u, token, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(struct {
		User  *User  `json:"user"`
		Token string `json:"token"`
	}{u, token})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := ids.ParseUserId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(u)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := ids.ParseUserId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	var req struct {
		ExpectedVersion int           `json:"expected_version"`
		DisplayName     string        `json:"display_name"`
		CurrentLevel    ids.CEFRLevel `json:"current_level"`
		Goal            *LearningGoal `json:"goal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	if err := h.service.UpdateProfile(r.Context(), id, req.ExpectedVersion, req.DisplayName, req.CurrentLevel, req.Goal); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := ids.ParseUserId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	var req struct {
		ExpectedVersion int    `json:"expected_version"`
		NewRole         string `json:"new_role"`
		ChangedBy       string `json:"changed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}
	changedBy, err := ids.ParseUserId(req.ChangedBy)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid changed_by id"))
		return
	}

	if err := h.service.ChangeUserRole(r.Context(), id, req.ExpectedVersion, Role(req.NewRole), changedBy); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := ids.ParseUserId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid user id"))
		return
	}
	var req struct {
		ExpectedVersion int    `json:"expected_version"`
		DeletedBy       string `json:"deleted_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}
	deletedBy, err := ids.ParseUserId(req.DeletedBy)
	if err != nil {
		writeError(w, errs.New(errs.Validation, "invalid deleted_by id"))
		return
	}

	if err := h.service.DeleteUser(r.Context(), id, req.ExpectedVersion, deletedBy); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps an errs.Error to an HTTP status using the same kind
// taxonomy pkg/errs/grpcstatus.go maps to gRPC codes (spec §7).
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
