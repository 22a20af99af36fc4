// Package contextkeys centralizes the context keys shared between middleware
// and handlers, so key usage stays discoverable and collision-free.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions.
type Key string

const (
	// UserIDKey contains the authenticated caller's user id (string).
	// Set by middleware.Identity from the gateway-supplied identity header.
	UserIDKey Key = "user_id"

	// OrgIDKey contains the organization id (string) the request targets.
	// Set by middleware.OrgContext from the route variables.
	OrgIDKey Key = "org_id"

	// RequestIDKey contains the request id (string) used for log and audit
	// correlation.
	RequestIDKey Key = "request_id"
)

// WithUserID attaches the caller's user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// UserID extracts the caller's user id, if present.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(UserIDKey).(string)
	return v, ok && v != ""
}

// WithOrgID attaches the target organization id.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// OrgID extracts the target organization id, if present.
func OrgID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(OrgIDKey).(string)
	return v, ok && v != ""
}

// WithRequestID attaches the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID extracts the request id, if present.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(RequestIDKey).(string)
	return v, ok && v != ""
}
