// Package relay delivers domain events to the external automation webhook.
// Delivery is best-effort and fully decoupled from the operation that
// triggered it: a notification can exhaust every attempt without the caller
// ever noticing.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	authgate "github.com/clinvia/go-authgate"
)

const (
	// OutcomeDelivered marks a job that reached the webhook.
	OutcomeDelivered = "delivered"
	// OutcomeExhausted marks a job that failed every attempt.
	OutcomeExhausted = "exhausted"

	defaultMaxAttempts    = 3
	defaultBackoffBase    = time.Second
	defaultAttemptTimeout = 30 * time.Second
)

// DeliveryRecorder receives attempt/outcome counts; the metrics collector
// implements it.
type DeliveryRecorder interface {
	RecordRelayAttempt()
	RecordRelayOutcome(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRelayAttempt()       {}
func (noopRecorder) RecordRelayOutcome(string) {}

// Option customizes notifier construction.
type Option func(*Notifier)

func WithHTTPClient(hc *http.Client) Option {
	return func(n *Notifier) {
		if hc != nil {
			n.httpClient = hc
		}
	}
}

func WithLogger(logger authgate.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func WithRecorder(r DeliveryRecorder) Option {
	return func(n *Notifier) {
		if r != nil {
			n.recorder = r
		}
	}
}

// WithBackoffBase shrinks the backoff unit; tests use it to keep retries fast.
func WithBackoffBase(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.backoffBase = d
		}
	}
}

// WithAttemptTimeout overrides the per-attempt cancellation window.
func WithAttemptTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.attemptTimeout = d
		}
	}
}

// Notifier posts JSON payloads to one fixed webhook URL. Attempts for a
// single job run sequentially; independent jobs run concurrently with no
// cross-job ordering.
type Notifier struct {
	url            string
	httpClient     *http.Client
	logger         authgate.Logger
	recorder       DeliveryRecorder
	maxAttempts    int
	backoffBase    time.Duration
	attemptTimeout time.Duration
	now            func() time.Time

	wg sync.WaitGroup
}

func New(url string, opts ...Option) *Notifier {
	n := &Notifier{
		url:            url,
		httpClient:     &http.Client{},
		logger:         authgate.NewSlogLogger(nil),
		recorder:       noopRecorder{},
		maxAttempts:    defaultMaxAttempts,
		backoffBase:    defaultBackoffBase,
		attemptTimeout: defaultAttemptTimeout,
		now:            time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}

	return n
}

// Notify schedules one best-effort delivery and returns immediately. The
// payload is stamped with a notification id and notifiedAt; the job lives
// only in memory and is discarded once it terminates either way.
func (n *Notifier) Notify(payload map[string]any) {
	if n.url == "" {
		n.logger.Debug("relay disabled, dropping notification")
		return
	}

	stamped := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		stamped[k] = v
	}
	stamped["notificationId"] = uuid.NewString()
	stamped["notifiedAt"] = n.now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(stamped)
	if err != nil {
		n.logger.Error("relay payload is not serializable", "error", err)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(context.Background(), body)
	}()
}

// Wait blocks until every in-flight job terminated; hosts call it on
// teardown.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, body []byte) {
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		n.recorder.RecordRelayAttempt()

		if err := n.post(ctx, body); err == nil {
			n.recorder.RecordRelayOutcome(OutcomeDelivered)
			return
		} else {
			n.logger.Warn("webhook attempt failed", "attempt", attempt, "error", err)
		}

		if attempt == n.maxAttempts {
			break
		}

		// Linear backoff: 1x, 2x the base between successive attempts.
		select {
		case <-time.After(time.Duration(attempt) * n.backoffBase):
		case <-ctx.Done():
			n.recorder.RecordRelayOutcome(OutcomeExhausted)
			return
		}
	}

	n.recorder.RecordRelayOutcome(OutcomeExhausted)
	n.logger.Error("webhook delivery exhausted all attempts", "attempts", n.maxAttempts)
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	attemptCtx, cancel := context.WithTimeout(ctx, n.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return authgate.NewUpstreamError(resp.StatusCode, "")
	}
	return nil
}

// Record lets the notifier stand in as the session manager's ActivitySink,
// forwarding auth events through the same best-effort pipeline.
func (n *Notifier) Record(ctx context.Context, event authgate.ActivityEvent) error {
	payload := map[string]any{
		"event":  string(event.EventType),
		"userId": event.UserID,
	}
	for k, v := range event.Metadata {
		payload[k] = v
	}
	n.Notify(payload)
	return nil
}

var _ authgate.ActivitySink = (*Notifier)(nil)
