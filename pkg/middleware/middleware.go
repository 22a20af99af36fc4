// Package middleware provides the HTTP middleware chain shared by the
// service's routes: caller identity, organization context, request ids,
// request logging and panic recovery.
//
// Authentication itself happens upstream (the platform gateway); this service
// trusts the identity header it is handed inside the mesh.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ghxstship/atlvs-sub007/pkg/contextkeys"
	"github.com/ghxstship/atlvs-sub007/pkg/httputil"
	"github.com/ghxstship/atlvs-sub007/pkg/observability"
)

// IdentityHeader carries the authenticated user id, set by the gateway.
const IdentityHeader = "X-Atlvs-User-Id"

// Identity extracts the caller's user id from the identity header. Requests
// without one are rejected; every authorization decision needs a caller.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(IdentityHeader)
		if userID == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "missing identity header")
			return
		}
		ctx := contextkeys.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OrgContext lifts the {org_id} route variable into the request context.
func OrgContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := mux.Vars(r)["org_id"]
		if !ok || orgID == "" {
			httputil.WriteValidationError(w, "organization id is required")
			return
		}
		ctx := contextkeys.WithOrgID(r.Context(), orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID assigns a request id when the gateway did not supply one, and
// echoes it back in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging emits one structured line per request.
func Logging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			entry := logger.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      sw.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if id, ok := contextkeys.RequestID(r.Context()); ok {
				entry = entry.WithField("request_id", id)
			}
			entry.Info("request")
		})
	}
}

// Recovery converts handler panics into 500 responses.
func Recovery(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithField("panic", rec).
						WithField("path", r.URL.Path).
						Error("handler panic")
					httputil.WriteInternalError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
