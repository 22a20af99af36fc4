// Package audit records security-relevant authorization events: denials,
// role changes and cache flushes. Entries go to the structured log by
// default; deployments that need durable audit storage plug in their own
// Logger.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ghxstship/atlvs-sub007/pkg/observability"
)

// EventType categorizes audit events.
type EventType string

const (
	EventAccessDenied      EventType = "authz.access_denied"
	EventModuleDenied      EventType = "authz.module_denied"
	EventUnavailable       EventType = "authz.unavailable"
	EventRoleChanged       EventType = "membership.role_changed"
	EventMemberAdded       EventType = "membership.member_added"
	EventMemberRemoved     EventType = "membership.member_removed"
	EventMemberDeactivated EventType = "membership.member_deactivated"
	EventCacheFlush        EventType = "authz.cache_flush"
)

// Entry is a single audit record.
type Entry struct {
	ID       string    `json:"id,omitempty"`
	Event    EventType `json:"event"`
	UserID   string    `json:"user_id,omitempty"`
	OrgID    string    `json:"org_id,omitempty"`
	Entity   string    `json:"entity,omitempty"`
	Action   string    `json:"action,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

// Logger records audit entries. Implementations must be safe for concurrent
// use and must never fail the request path.
type Logger interface {
	Record(ctx context.Context, entry Entry)
}

// NopLogger discards entries.
type NopLogger struct{}

// Record implements Logger.
func (NopLogger) Record(context.Context, Entry) {}

// LogLogger writes audit entries as structured log lines.
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates a Logger writing through the service logger.
func NewLogLogger(logger *observability.Logger) *LogLogger {
	return &LogLogger{logger: logger}
}

// Record implements Logger.
func (l *LogLogger) Record(_ context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Occurred.IsZero() {
		entry.Occurred = time.Now().UTC()
	}
	l.logger.WithFields(map[string]interface{}{
		"audit_id": entry.ID,
		"event":    string(entry.Event),
		"user_id":  entry.UserID,
		"org_id":   entry.OrgID,
		"entity":   entry.Entity,
		"action":   entry.Action,
		"reason":   entry.Reason,
		"detail":   entry.Detail,
	}).Info("audit")
}

// Fanout replicates entries to several loggers in order.
type Fanout []Logger

// Record implements Logger.
func (f Fanout) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Occurred.IsZero() {
		entry.Occurred = time.Now().UTC()
	}
	for _, l := range f {
		l.Record(ctx, entry)
	}
}
