// Package notify delivers audit events to external HTTP endpoints. Security
// teams subscribe an endpoint to event types; deliveries are signed with
// HMAC-SHA256 and retried with exponential backoff. Delivery runs off the
// request path and never blocks or fails an authorization check.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghxstship/atlvs-sub007/pkg/async"
	"github.com/ghxstship/atlvs-sub007/pkg/audit"
	"github.com/ghxstship/atlvs-sub007/pkg/observability"
)

// SignatureHeader carries the HMAC-SHA256 signature of the request body.
const SignatureHeader = "X-Atlvs-Signature"

// Endpoint is a subscriber for audit events. An empty Events list receives
// everything.
type Endpoint struct {
	URL    string
	Secret string
	Events []audit.EventType
}

func (e Endpoint) wants(event audit.EventType) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, t := range e.Events {
		if t == event {
			return true
		}
	}
	return false
}

// Delivery records one delivery outcome, kept in a bounded in-memory ring
// for operator inspection.
type Delivery struct {
	ID         string          `json:"id"`
	URL        string          `json:"url"`
	Event      audit.EventType `json:"event"`
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code,omitempty"`
	Error      string          `json:"error,omitempty"`
	Attempts   int             `json:"attempts"`
	Completed  time.Time       `json:"completed_at"`
}

// Notifier fans audit entries out to subscribed endpoints. It implements
// audit.Logger so it can sit in an audit fan-out chain.
type Notifier struct {
	endpoints []Endpoint
	client    *http.Client
	policy    *RetryPolicy
	pool      *async.WorkerPool
	logger    *observability.Logger

	mu         sync.Mutex
	deliveries []Delivery
	maxLog     int
}

// NotifierOption customizes a Notifier.
type NotifierOption func(*Notifier)

// WithRetryPolicy overrides the default backoff.
func WithRetryPolicy(p *RetryPolicy) NotifierOption {
	return func(n *Notifier) { n.policy = p }
}

// WithHTTPClient overrides the delivery client.
func WithHTTPClient(c *http.Client) NotifierOption {
	return func(n *Notifier) { n.client = c }
}

// NewNotifier creates a notifier delivering to the given endpoints.
func NewNotifier(ctx context.Context, endpoints []Endpoint, logger *observability.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 10 * time.Second},
		policy:    NewRetryPolicy(DefaultRetryConfig()),
		logger:    logger,
		maxLog:    1000,
	}
	for _, opt := range opts {
		opt(n)
	}
	// Per-task budget covers every retry plus the backoff between them.
	n.pool = async.NewWorkerPool(ctx, 4, "audit-notify", 10*time.Minute, logger)
	return n
}

// Record implements audit.Logger. Delivery is asynchronous; a full queue
// drops the notification rather than stalling the caller.
func (n *Notifier) Record(_ context.Context, entry audit.Entry) {
	for _, ep := range n.endpoints {
		if !ep.wants(entry.Event) {
			continue
		}
		ep := ep
		if err := n.pool.Submit(func(ctx context.Context) error {
			return n.deliver(ctx, ep, entry)
		}); err != nil && n.logger != nil {
			n.logger.WithError(err).Warn("audit notification dropped")
		}
	}
}

// Shutdown drains pending deliveries.
func (n *Notifier) Shutdown(timeout time.Duration) error {
	return n.pool.Shutdown(timeout)
}

// Deliveries returns the most recent delivery outcomes, newest last.
func (n *Notifier) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Delivery(nil), n.deliveries...)
}

func (n *Notifier) deliver(ctx context.Context, ep Endpoint, entry audit.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	d := Delivery{ID: uuid.NewString(), URL: ep.URL, Event: entry.Event}
	for {
		d.Attempts++
		status, err := n.post(ctx, ep, payload)
		d.StatusCode = status
		if err == nil {
			d.Success = true
			d.Error = ""
			break
		}
		d.Error = err.Error()
		if !n.policy.ShouldRetry(d.Attempts) {
			break
		}
		select {
		case <-ctx.Done():
			d.Error = ctx.Err().Error()
			n.record(d)
			return ctx.Err()
		case <-time.After(n.policy.NextDelay(d.Attempts)):
		}
	}

	n.record(d)
	if !d.Success {
		return fmt.Errorf("deliver to %s after %d attempts: %s", ep.URL, d.Attempts, d.Error)
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, ep Endpoint, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(payload, ep.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (n *Notifier) record(d Delivery) {
	d.Completed = time.Now().UTC()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, d)
	if len(n.deliveries) > n.maxLog {
		n.deliveries = n.deliveries[len(n.deliveries)-n.maxLog:]
	}
}

// Sign computes the HMAC-SHA256 signature of payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the payload. Receivers
// use it to authenticate deliveries.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
