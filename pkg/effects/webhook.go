package effects

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/cleanup/pkg/log"
	"github.com/dukex/cleanup/pkg/workflow"
)

// Effect kinds sent in webhook payloads.
const (
	KindReduceTraffic = "reduce_traffic"
	KindTransform     = "transform"
)

// ErrNoWebhookURL is returned when a webhook is built without a target.
var ErrNoWebhookURL = errors.New("webhook URL is required")

// Payload is the JSON body posted for each effect.
type Payload struct {
	Kind              string    `json:"kind"`
	ConfigurationName string    `json:"configuration_name"`
	Stage             string    `json:"stage,omitempty"`
	From              *int      `json:"from,omitempty"`
	To                *int      `json:"to,omitempty"`
	RequestedAt       time.Time `json:"requested_at"`
}

// RetryConfig controls how often a failed delivery is attempted again.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Webhook posts every effect to an HTTP endpoint. Any non-2xx answer fails
// the effect, and with it the workflow.
type Webhook struct {
	url     string
	headers map[string]string
	timeout time.Duration
	retry   RetryConfig
	client  *http.Client
	clock   workflow.Clock
	logger  *slog.Logger
}

var (
	_ workflow.TrafficReducer = (*Webhook)(nil)
	_ workflow.Transformer    = (*Webhook)(nil)
)

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

func WithHeader(key, value string) WebhookOption {
	return func(w *Webhook) {
		w.headers[key] = value
	}
}

// WithTimeout bounds each attempt. Zero keeps the default.
func WithTimeout(timeout time.Duration) WebhookOption {
	return func(w *Webhook) {
		if timeout > 0 {
			w.timeout = timeout
		}
	}
}

func WithRetry(retry RetryConfig) WebhookOption {
	return func(w *Webhook) {
		w.retry = retry
	}
}

func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) {
		w.client = client
	}
}

func WithClock(clock workflow.Clock) WebhookOption {
	return func(w *Webhook) {
		w.clock = clock
	}
}

// NewWebhook creates a webhook effect posting to url.
func NewWebhook(url string, opts ...WebhookOption) (*Webhook, error) {
	if url == "" {
		return nil, ErrNoWebhookURL
	}

	w := &Webhook{
		url:     url,
		headers: map[string]string{},
		timeout: 30 * time.Second,
		retry:   RetryConfig{Attempts: 1},
		client:  &http.Client{},
		clock:   workflow.SystemClock,
		logger:  log.WithModule("webhook_effect"),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.retry.Attempts = max(w.retry.Attempts, 1)

	return w, nil
}

func (w *Webhook) ReduceTraffic(ctx context.Context, configurationName, stage string, from, to int) error {
	return w.send(ctx, Payload{
		Kind:              KindReduceTraffic,
		ConfigurationName: configurationName,
		Stage:             stage,
		From:              &from,
		To:                &to,
		RequestedAt:       w.clock().UTC(),
	})
}

func (w *Webhook) Transform(ctx context.Context, configurationName string) error {
	return w.send(ctx, Payload{
		Kind:              KindTransform,
		ConfigurationName: configurationName,
		RequestedAt:       w.clock().UTC(),
	})
}

func (w *Webhook) send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= w.retry.Attempts; attempt++ {
		if attempt > 1 {
			w.logger.InfoContext(ctx, "Retrying webhook", "attempt", attempt, "of", w.retry.Attempts)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retry.Delay):
			}
		}

		retryable, err := w.post(ctx, body)
		if err == nil {
			w.logger.InfoContext(ctx, "Webhook delivered",
				"kind", payload.Kind,
				"configuration", payload.ConfigurationName)

			return nil
		}

		lastErr = err
		if !retryable {
			break
		}
	}

	return fmt.Errorf("webhook %s for %s failed: %w", payload.Kind, payload.ConfigurationName, lastErr)
}

// post reports whether a failure is worth retrying.
func (w *Webhook) post(ctx context.Context, body []byte) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range w.headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)

		closeErr := resp.Body.Close()
		if closeErr != nil {
			w.logger.ErrorContext(ctx, "Failed to close response body", "error", closeErr)
		}
	}()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return true, fmt.Errorf("server error (status %d)", resp.StatusCode)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	default:
		return false, nil
	}
}

// Effects serves both effect kinds from w.
func (w *Webhook) Effects() workflow.Effects {
	return workflow.Effects{Reducer: w, Transformer: w}
}
