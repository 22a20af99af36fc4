package membership

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ghxstship/atlvs-sub007/pkg/authz"
	"github.com/ghxstship/atlvs-sub007/pkg/httputil"
	"github.com/ghxstship/atlvs-sub007/pkg/observability"
)

// Handlers exposes membership management over HTTP.
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

// NewHandlers creates the membership handlers.
func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes mounts the API under the given router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/orgs/{org_id}/members", h.List).Methods(http.MethodGet)
	r.HandleFunc("/orgs/{org_id}/members", h.Add).Methods(http.MethodPost)
	r.HandleFunc("/orgs/{org_id}/members/{user_id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/orgs/{org_id}/members/{user_id}/role", h.UpdateRole).Methods(http.MethodPut)
	r.HandleFunc("/orgs/{org_id}/members/{user_id}/status", h.SetStatus).Methods(http.MethodPut)
	r.HandleFunc("/orgs/{org_id}/members/{user_id}", h.Remove).Methods(http.MethodDelete)
}

// List returns all memberships of the organization.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context(), mux.Vars(r)["org_id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

// Get returns a single membership.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, err := h.service.GetMember(r.Context(), vars["org_id"], vars["user_id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

type addMemberRequest struct {
	UserID    string     `json:"user_id"`
	Role      authz.Role `json:"role"`
	InvitedBy string     `json:"invited_by,omitempty"`
}

// Add creates an active membership.
func (h *Handlers) Add(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, "invalid request body")
		return
	}

	m, err := h.service.AddMember(r.Context(), mux.Vars(r)["org_id"], req.UserID, req.Role, req.InvitedBy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

type updateRoleRequest struct {
	Role authz.Role `json:"role"`
}

// UpdateRole changes a member's role.
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, "invalid request body")
		return
	}

	vars := mux.Vars(r)
	if err := h.service.UpdateMemberRole(r.Context(), vars["org_id"], vars["user_id"], req.Role); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus suspends or restores a membership.
func (h *Handlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, "invalid request body")
		return
	}

	vars := mux.Vars(r)
	var err error
	switch req.Status {
	case StatusActive:
		err = h.service.ReactivateMember(r.Context(), vars["org_id"], vars["user_id"])
	case StatusInactive:
		err = h.service.DeactivateMember(r.Context(), vars["org_id"], vars["user_id"])
	default:
		httputil.WriteValidationError(w, "status must be active or inactive")
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Remove deletes a membership.
func (h *Handlers) Remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.RemoveMember(r.Context(), vars["org_id"], vars["user_id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrNoMembership):
		httputil.WriteNotFound(w, "membership not found")
	case errors.Is(err, ErrInvalidInput):
		httputil.WriteValidationError(w, err.Error())
	case errors.Is(err, ErrAlreadyMember):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	default:
		if h.logger != nil {
			h.logger.WithError(err).Error("membership request failed")
		}
		httputil.WriteInternalError(w)
	}
}
