package authz

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ghxstship/atlvs-sub007/pkg/audit"
	"github.com/ghxstship/atlvs-sub007/pkg/httputil"
	"github.com/ghxstship/atlvs-sub007/pkg/observability"
	"github.com/ghxstship/atlvs-sub007/pkg/query"
)

// Handlers exposes the engine over HTTP for the platform's other services.
// The subject of each check is named in the request; callers are trusted
// internal services behind the gateway.
type Handlers struct {
	resolver   *Resolver
	authorizer *Authorizer
	scoper     *Scoper
	audit      audit.Logger
	logger     *observability.Logger
}

// NewHandlers creates the HTTP handlers. auditLog may be nil.
func NewHandlers(resolver *Resolver, authorizer *Authorizer, scoper *Scoper, auditLog audit.Logger, logger *observability.Logger) *Handlers {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Handlers{
		resolver:   resolver,
		authorizer: authorizer,
		scoper:     scoper,
		audit:      auditLog,
		logger:     logger,
	}
}

// RegisterRoutes mounts the API under the given router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/orgs/{org_id}/permissions", h.Permissions).Methods(http.MethodGet)
	r.HandleFunc("/orgs/{org_id}/decisions", h.Decide).Methods(http.MethodPost)
	r.HandleFunc("/orgs/{org_id}/module-access", h.ModuleAccess).Methods(http.MethodGet)
	r.HandleFunc("/orgs/{org_id}/field-access", h.FieldAccess).Methods(http.MethodGet)
	r.HandleFunc("/orgs/{org_id}/scope", h.Scope).Methods(http.MethodPost)
	r.HandleFunc("/invalidate", h.Invalidate).Methods(http.MethodPost)
}

// Permissions returns the effective PermissionSet for a subject.
func (h *Handlers) Permissions(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org_id"]
	userID := r.URL.Query().Get("user_id")
	entity := EntityType(r.URL.Query().Get("entity"))
	if userID == "" || !entity.Valid() {
		httputil.WriteValidationError(w, "user_id and a valid entity are required")
		return
	}

	set, err := h.resolver.Resolve(r.Context(), userID, orgID, entity)
	if err != nil {
		h.unavailable(w, r, userID, orgID, entity, "", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"org_id":  orgID,
		"entity":  entity,
		"grants":  set,
	})
}

type decisionRequest struct {
	UserID     string     `json:"user_id"`
	Entity     EntityType `json:"entity"`
	ResourceID string     `json:"resource_id,omitempty"`
	Action     Action     `json:"action"`
}

// Decide runs a full authorization check, including resource overrides.
func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org_id"]
	var req decisionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, "invalid request body")
		return
	}
	if req.UserID == "" || !req.Entity.Valid() || req.Action == "" {
		httputil.WriteValidationError(w, "user_id, entity and action are required")
		return
	}

	decision, err := h.authorizer.Authorize(r.Context(), req.UserID, orgID, req.Entity, req.ResourceID, req.Action)
	if err != nil {
		h.unavailable(w, r, req.UserID, orgID, req.Entity, req.Action, err)
		return
	}
	if !decision.Allowed {
		h.audit.Record(r.Context(), audit.Entry{
			Event:    audit.EventAccessDenied,
			UserID:   req.UserID,
			OrgID:    orgID,
			Entity:   string(req.Entity),
			Action:   string(req.Action),
			Reason:   string(decision.Reason),
			Occurred: time.Now().UTC(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

// ModuleAccess runs the hard membership gate.
func (h *Handlers) ModuleAccess(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org_id"]
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httputil.WriteValidationError(w, "user_id is required")
		return
	}

	allowed, err := h.resolver.CanAccessModule(r.Context(), userID, orgID)
	if err != nil {
		h.unavailable(w, r, userID, orgID, "", "", err)
		return
	}
	if !allowed {
		h.audit.Record(r.Context(), audit.Entry{
			Event:    audit.EventModuleDenied,
			UserID:   userID,
			OrgID:    orgID,
			Reason:   string(ReasonModuleAccessDenied),
			Occurred: time.Now().UTC(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// FieldAccess answers a per-field read/write question so serializers can
// redact individual fields.
func (h *Handlers) FieldAccess(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org_id"]
	q := r.URL.Query()
	userID := q.Get("user_id")
	entity := EntityType(q.Get("entity"))
	field := q.Get("field")
	access := FieldAccess(q.Get("access"))
	if access == "" {
		access = FieldRead
	}
	if userID == "" || !entity.Valid() || field == "" || (access != FieldRead && access != FieldWrite) {
		httputil.WriteValidationError(w, "user_id, entity, field and a valid access mode are required")
		return
	}

	set, err := h.resolver.Resolve(r.Context(), userID, orgID, entity)
	if err != nil {
		h.unavailable(w, r, userID, orgID, entity, "", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{
		"allowed": CanAccessField(set, entity, field, access),
	})
}

type scopeRequest struct {
	UserID string     `json:"user_id"`
	Entity EntityType `json:"entity"`
	Table  string     `json:"table"`
}

type scopeResponse struct {
	Table   string         `json:"table"`
	Clauses []query.Clause `json:"clauses"`
}

// Scope returns the row filters a caller's list query must carry.
func (h *Handlers) Scope(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org_id"]
	var req scopeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, "invalid request body")
		return
	}
	if req.UserID == "" || !req.Entity.Valid() {
		httputil.WriteValidationError(w, "user_id and a valid entity are required")
		return
	}
	table := req.Table
	if table == "" {
		table = string(req.Entity)
	}

	scoped, err := h.scoper.Scope(r.Context(), query.New(table), req.UserID, orgID, req.Entity)
	if err != nil {
		h.unavailable(w, r, req.UserID, orgID, req.Entity, "", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, scopeResponse{
		Table:   scoped.Table(),
		Clauses: scoped.Clauses(),
	})
}

type invalidateRequest struct {
	UserID string `json:"user_id,omitempty"`
	OrgID  string `json:"org_id,omitempty"`
}

// Invalidate drops cached permissions: (user, org) pair, all entries for a
// user, or the full cache when no subject is named.
func (h *Handlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, "invalid request body")
		return
	}

	switch {
	case req.UserID != "" && req.OrgID != "":
		h.resolver.Invalidate(r.Context(), req.UserID, req.OrgID)
	case req.UserID != "":
		h.resolver.InvalidateUser(r.Context(), req.UserID)
	case req.OrgID != "":
		httputil.WriteValidationError(w, "invalidating by organization alone is not supported")
		return
	default:
		h.resolver.Flush(r.Context())
		h.audit.Record(r.Context(), audit.Entry{
			Event:    audit.EventCacheFlush,
			Occurred: time.Now().UTC(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) unavailable(w http.ResponseWriter, r *http.Request, userID, orgID string, entity EntityType, action Action, err error) {
	if !errors.Is(err, ErrUnavailable) {
		if h.logger != nil {
			h.logger.WithError(err).Error("authorization check failed")
		}
		httputil.WriteInternalError(w)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Event:    audit.EventUnavailable,
		UserID:   userID,
		OrgID:    orgID,
		Entity:   string(entity),
		Action:   string(action),
		Detail:   err.Error(),
		Occurred: time.Now().UTC(),
	})
	httputil.WriteUnavailable(w)
}
