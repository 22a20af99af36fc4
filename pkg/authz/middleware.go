package authz

import (
	"errors"
	"net/http"
	"time"

	"github.com/ghxstship/atlvs-sub007/pkg/audit"
	"github.com/ghxstship/atlvs-sub007/pkg/contextkeys"
	"github.com/ghxstship/atlvs-sub007/pkg/httputil"
)

// Guard wraps platform handlers with authorization checks. The subject is the
// authenticated caller from the request context, set by the identity and org
// middleware upstream.
type Guard struct {
	resolver   *Resolver
	authorizer *Authorizer
	audit      audit.Logger
}

// NewGuard creates middleware bound to the engine. auditLog may be nil.
func NewGuard(resolver *Resolver, authorizer *Authorizer, auditLog audit.Logger) *Guard {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Guard{resolver: resolver, authorizer: authorizer, audit: auditLog}
}

// RequireModuleAccess rejects callers without an active membership in the
// target organization. Resolution failures surface as 503, never as a grant.
func (g *Guard) RequireModuleAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, orgID, ok := subject(w, r)
		if !ok {
			return
		}

		allowed, err := g.resolver.CanAccessModule(r.Context(), userID, orgID)
		if err != nil {
			g.fail(w, r, userID, orgID, "", "", err)
			return
		}
		if !allowed {
			g.audit.Record(r.Context(), audit.Entry{
				Event:    audit.EventModuleDenied,
				UserID:   userID,
				OrgID:    orgID,
				Reason:   string(ReasonModuleAccessDenied),
				Occurred: time.Now().UTC(),
			})
			httputil.WriteForbidden(w, "no access to this organization")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission gates a route on an entity-level grant. Resource-level
// overrides do not apply here; routes that operate on a single resource run
// Authorizer.Authorize with the resource id inside the handler instead.
func (g *Guard) RequirePermission(entity EntityType, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, orgID, ok := subject(w, r)
			if !ok {
				return
			}

			decision, err := g.authorizer.Authorize(r.Context(), userID, orgID, entity, "", action)
			if err != nil {
				g.fail(w, r, userID, orgID, entity, action, err)
				return
			}
			if !decision.Allowed {
				g.audit.Record(r.Context(), audit.Entry{
					Event:    audit.EventAccessDenied,
					UserID:   userID,
					OrgID:    orgID,
					Entity:   string(entity),
					Action:   string(action),
					Reason:   string(decision.Reason),
					Occurred: time.Now().UTC(),
				})
				writeDecision(w, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func subject(w http.ResponseWriter, r *http.Request) (userID, orgID string, ok bool) {
	userID, uok := contextkeys.UserID(r.Context())
	orgID, ook := contextkeys.OrgID(r.Context())
	if !uok || !ook {
		httputil.WriteError(w, http.StatusUnauthorized, "missing caller identity")
		return "", "", false
	}
	return userID, orgID, true
}

func writeDecision(w http.ResponseWriter, d Decision) {
	if d.Reason == ReasonNotFound {
		httputil.WriteNotFound(w, "resource not found")
		return
	}
	httputil.WriteForbidden(w, "insufficient permission")
}

func (g *Guard) fail(w http.ResponseWriter, r *http.Request, userID, orgID string, entity EntityType, action Action, err error) {
	if !errors.Is(err, ErrUnavailable) {
		httputil.WriteInternalError(w)
		return
	}
	g.audit.Record(r.Context(), audit.Entry{
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
