// Package restclient is the shared transport for the provider REST clients
// (CRM, voice, telephony). It owns timeouts, retries and error decoding so the
// provider packages only describe endpoints and payloads.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Recorder receives one observation per finished upstream request.
// status is 0 when no response was received.
type Recorder interface {
	ObserveUpstream(provider, operation string, status int, elapsed time.Duration)
}

// Config controls how a Client behaves.
type Config struct {
	Provider   string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Recorder   Recorder

	// Authorize sets credentials on every outgoing request.
	Authorize func(r *http.Request)
}

// Client executes JSON/form requests against one provider base URL.
type Client struct {
	provider   string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	recorder   Recorder
	authorize  func(r *http.Request)
}

// New creates a Client with defaults: 15s timeout, 250ms base backoff.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("restclient: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "upstream"
	}
	return &Client{
		provider:   provider,
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		recorder:   cfg.Recorder,
		authorize:  cfg.Authorize,
	}, nil
}

// Request describes one logical call. Retry must only be set for requests that
// are safe to repeat: reads, idempotent updates, and appends where a duplicate
// is preferable to a loss (notes, tasks). Record-creating calls whose duplicate
// has real cost (outbound calls, opportunities) must leave it false.
type Request struct {
	Operation   string
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Retry       bool
}

// JSON builds a request body by marshalling v.
func JSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("restclient: marshal body: %w", err)
	}
	return b, nil
}

// Do executes req and returns the response body of a 2xx response.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	fullURL := c.buildURL(req.Path, req.Query)
	attempts := 1
	if req.Retry {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn("upstream retry",
				"provider", c.provider,
				"operation", req.Operation,
				"attempt", attempt+1,
				"err", lastErr,
			)
			if err := c.sleep(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		data, status, err := c.once(ctx, req, fullURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !shouldRetry(status, err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// DoJSON executes req and decodes a 2xx body into out (when out is non-nil).
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	data, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode %s response: %w", c.provider, req.Operation, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, req Request, fullURL string) ([]byte, int, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: build request: %w", c.provider, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		ct := req.ContentType
		if ct == "" {
			ct = "application/json"
		}
		httpReq.Header.Set("Content-Type", ct)
	}
	if c.authorize != nil {
		c.authorize(httpReq)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req.Operation, 0, time.Since(start))
		return nil, 0, fmt.Errorf("%s: %s: %w", c.provider, req.Operation, err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	c.observe(req.Operation, resp.StatusCode, time.Since(start))
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s: read %s response: %w", c.provider, req.Operation, readErr)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, resp.StatusCode, nil
	}
	return nil, resp.StatusCode, decodeAPIError(c.provider, req.Operation, resp.StatusCode, data)
}

func (c *Client) observe(operation string, status int, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveUpstream(c.provider, operation, status, elapsed)
}

func (c *Client) buildURL(path string, query url.Values) string {
	full := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shouldRetry treats timeouts, 429 and 5xx as transient.
func shouldRetry(status int, err error) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	if status != 0 || err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s failed (status=%d): %s", e.Provider, e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s failed (status=%d)", e.Provider, e.Operation, e.StatusCode)
}

// Temporary reports whether repeating the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func decodeAPIError(provider, operation string, status int, body []byte) error {
	var parsed struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   any    `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Message != "":
			msg = parsed.Message
		case parsed.Msg != "":
			msg = parsed.Msg
		case parsed.Error != nil:
			msg = fmt.Sprint(parsed.Error)
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		msg = truncate(msg, maxErrorBody)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Provider: provider, Operation: operation, StatusCode: status, Message: msg}
}

const maxErrorBody = 256

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
