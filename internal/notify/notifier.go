package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/retry"
	"git.home.luguber.info/inful/matrixci/internal/runner"
)

// OutcomeSource answers "what did the previous run of this pipeline+trigger
// do", used by the change policy. history.Store satisfies it.
type OutcomeSource interface {
	LastOutcome(ctx context.Context, pipeline, trigger string) (string, error)
}

// Payload is the JSON body POSTed to each webhook URL.
type Payload struct {
	RunID      string               `json:"run_id"`
	Pipeline   string               `json:"pipeline"`
	Trigger    string               `json:"trigger"`
	Outcome    string               `json:"outcome"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	DurationMS int64                `json:"duration_ms"`
	Entries    []runner.EntryResult `json:"entries"`
}

// Notifier delivers run-completion webhooks according to the configured
// policies. Delivery failures are retried with backoff; entries themselves
// are never retried.
type Notifier struct {
	urls      []string
	onSuccess Policy
	onFailure Policy
	client    *http.Client
	policy    retry.Policy
	source    OutcomeSource
	recorder  metrics.Recorder
	sleep     func(time.Duration) // test seam
}

// New builds a Notifier for the given webhook URLs.
func New(urls []string, onSuccess, onFailure Policy) *Notifier {
	return &Notifier{
		urls:      urls,
		onSuccess: onSuccess,
		onFailure: onFailure,
		client:    &http.Client{Timeout: 15 * time.Second},
		policy:    retry.DefaultPolicy(),
		recorder:  metrics.NoopRecorder{},
		sleep:     time.Sleep,
	}
}

// WithOutcomeSource wires the history lookup for the change policy. Without
// one, change degrades to always (one-shot runs without a history store).
func (n *Notifier) WithOutcomeSource(src OutcomeSource) *Notifier {
	n.source = src
	return n
}

// WithRetryPolicy overrides the delivery backoff policy.
func (n *Notifier) WithRetryPolicy(p retry.Policy) *Notifier {
	n.policy = p
	return n
}

// WithRecorder injects a metrics recorder.
func (n *Notifier) WithRecorder(rec metrics.Recorder) *Notifier {
	if rec != nil {
		n.recorder = rec
	}
	return n
}

// WithHTTPClient overrides the HTTP client (tests).
func (n *Notifier) WithHTTPClient(c *http.Client) *Notifier {
	if c != nil {
		n.client = c
	}
	return n
}

// Notify evaluates the policies and delivers the payload to every configured
// URL when they fire. Call it before recording the report in history so the
// change policy sees the previous run, not this one.
func (n *Notifier) Notify(ctx context.Context, report *runner.Report) error {
	if len(n.urls) == 0 {
		return nil
	}

	succeeded := !report.Failed()
	policy := n.onFailure
	if succeeded {
		policy = n.onSuccess
	}

	previous := ""
	if n.source != nil {
		if prev, err := n.source.LastOutcome(ctx, report.Pipeline, string(report.Trigger)); err == nil {
			previous = prev
		}
	}

	if !policy.shouldFire(succeeded, previous) {
		slog.Debug("Notification suppressed by policy",
			logfields.Pipeline(report.Pipeline),
			logfields.Outcome(string(report.Outcome)),
			"policy", string(policy))
		return nil
	}

	payload := Payload{
		RunID:      report.RunID,
		Pipeline:   report.Pipeline,
		Trigger:    string(report.Trigger),
		Outcome:    string(report.Outcome),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		DurationMS: report.Duration.Milliseconds(),
		Entries:    report.EntryResults(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	var firstErr error
	for _, target := range n.urls {
		if err := n.deliver(ctx, target, body); err != nil {
			n.recorder.IncNotifyDelivery(false)
			slog.Warn("Webhook delivery failed", logfields.URL(MaskURL(target)), logfields.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n.recorder.IncNotifyDelivery(true)
		slog.Info("Webhook delivered", logfields.URL(MaskURL(target)), logfields.RunID(report.RunID))
	}
	return firstErr
}

// deliver POSTs the payload with backoff on transient failures. 4xx responses
// are permanent; 5xx and transport errors are retried.
func (n *Notifier) deliver(ctx context.Context, target string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= n.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			n.sleep(n.policy.Delay(attempt))
		}
		lastErr = n.post(ctx, target, body)
		if lastErr == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(lastErr, &pe) {
			return pe.err
		}
	}
	return fmt.Errorf("delivery retries exhausted: %w", lastErr)
}

func (n *Notifier) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return &permanentError{err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "matrixci")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &permanentError{err: fmt.Errorf("webhook rejected: %s", resp.Status)}
	default:
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
}

// permanentError marks failures that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// MaskURL strips credentials, path, and query (which may carry opaque
// tokens) from a webhook URL for logging: scheme + host only.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(invalid url)"
	}
	return u.Scheme + "://" + u.Host
}
