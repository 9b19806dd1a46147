package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/model"
)

const (
	// DefaultBaseURL is used when no backend URL is configured
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout bounds every call
	DefaultTimeout = 30 * time.Second

	maxResponseSize = 16 << 20
)

// Notifier receives user-visible notifications
type Notifier interface {
	Notify(n *model.Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(*model.Notification) {}

// Request describes one backend operation
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}

	// Success is the notification emitted after a 2xx response.
	// Leave empty for read-only calls.
	Success string
}

// Op returns the "METHOD /path" label used in logs and notifications
func (r Request) Op() string {
	return r.Method + " " + r.Path
}

// Option configures a Transport
type Option func(*Transport)

// WithTimeout overrides the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithHTTPClient uses c for outbound calls; its Timeout is replaced by the transport timeout
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		t.httpClient = c
	}
}

// Transport performs backend calls and classifies their failures.
// It is immutable after construction and safe for concurrent use.
type Transport struct {
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
	notifier   Notifier
	timeout    time.Duration
}

// New validates baseURL and creates a transport
func New(baseURL string, notifier Notifier, logger *zap.Logger, opts ...Option) (*Transport, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	t := &Transport{
		logger:   logger.Named("transport"),
		baseURL:  normalized,
		notifier: notifier,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.httpClient == nil {
		t.httpClient = &http.Client{}
	} else {
		c := *t.httpClient
		t.httpClient = &c
	}
	t.httpClient.Timeout = t.timeout

	return t, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBaseURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidBaseURL, raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("%w: query and fragment are not allowed in %q", ErrInvalidBaseURL, raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// BaseURL returns the normalized backend URL
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// Timeout returns the per-call timeout
func (t *Transport) Timeout() time.Duration {
	return t.timeout
}

// Do performs req and decodes a successful JSON response into out (which may be nil).
// Failures are returned as *Error after exactly one error notification.
// A cancelled or expired ctx returns the context error without notifying.
func (t *Transport) Do(ctx context.Context, req Request, out interface{}) error {
	op := req.Op()

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return t.fail(&Error{Kind: KindRequestFailed, Message: messageGeneric, Op: op, Err: err})
		}
		body = bytes.NewReader(data)
	}

	endpoint := t.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return t.fail(&Error{Kind: KindRequestFailed, Message: messageGeneric, Op: op, Err: err})
	}

	requestID := uuid.New().String()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return t.fail(&Error{Kind: KindRequestFailed, Message: messageGeneric, Op: op, Err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return t.fail(&Error{Kind: KindRequestFailed, Message: messageGeneric, Op: op, Err: err})
	}

	t.logger.Debug("Backend call finished",
		zap.String("operation", op),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind, message := classifyStatus(resp.StatusCode, parseDetail(data))
		return t.fail(&Error{Kind: kind, StatusCode: resp.StatusCode, Message: message, Op: op})
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return t.fail(&Error{Kind: KindRequestFailed, Message: messageMalformedBody, Op: op, Err: err})
		}
	}

	if req.Success != "" {
		t.notifier.Notify(&model.Notification{
			Level:     model.NotificationLevelSuccess,
			Operation: op,
			Message:   req.Success,
		})
	}
	return nil
}

func (t *Transport) fail(err *Error) error {
	t.logger.Warn("Backend call failed",
		zap.String("operation", err.Op),
		zap.String("kind", string(err.Kind)),
		zap.Int("status", err.StatusCode),
		zap.Error(err.Err))

	t.notifier.Notify(&model.Notification{
		Level:     model.NotificationLevelError,
		Kind:      string(err.Kind),
		Operation: err.Op,
		Message:   err.Message,
	})
	return err
}

// parseDetail extracts the backend's error message from a FastAPI-style body
func parseDetail(data []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}

	if len(payload.Detail) > 0 {
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil {
			return strings.TrimSpace(text)
		}

		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	return strings.TrimSpace(payload.Message)
}
