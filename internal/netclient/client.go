package netclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"codeberg.org/snonux/translateassist/internal/apperr"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 7 * time.Second

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

type transportError struct {
	msg  string
	kind apperr.Kind
}

func (e *transportError) Error() string { return e.msg }

func (e *transportError) AppError() *apperr.Error {
	return &apperr.Error{Kind: e.kind}
}

var (
	// ErrOffline reports that the network is unreachable.
	ErrOffline error = &transportError{msg: "network offline", kind: apperr.KindOffline}
	// ErrTimeout reports a request that exceeded its deadline or got HTTP 408.
	ErrTimeout error = &transportError{msg: "request timed out", kind: apperr.KindTimeout}
)

// Hints holds the rate limit headers of a response. Absent numeric
// values are -1.
type Hints struct {
	RetryAfter        time.Duration
	LimitRequests     int
	RemainingRequests int
	ResetRequests     time.Duration
	LimitTokens       int
	RemainingTokens   int
	ResetTokens       time.Duration
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	RequestID  string
	Hints      Hints
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("http status %d (request %s): %s", e.StatusCode, e.RequestID, body)
}

// Throttled reports whether the status is a throttle signal.
func (e *StatusError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// AppError maps the status into the error taxonomy.
func (e *StatusError) AppError() *apperr.Error {
	switch {
	case e.Throttled():
		return apperr.RateLimited("", e.Hints.RetryAfter, e)
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return apperr.InvalidRequest("unauthorized, check the API key")
	case e.StatusCode == http.StatusBadRequest:
		return apperr.InvalidRequest("provider rejected the request")
	case e.StatusCode >= 500:
		return apperr.Unavailable("", e)
	}
	return apperr.InvalidResponse("", e)
}

// Client is a resty client with provider conventions applied.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying resty client, mostly for tests.
func WithHTTPClient(rc *resty.Client) Option {
	return func(c *Client) {
		if rc != nil {
			c.http = rc
		}
	}
}

// New creates a client with the given per-request timeout.
func New(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http:   resty.New().SetTimeout(timeout),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// R starts a request bound to ctx carrying a fresh request id.
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, uuid.NewString())
}

// Do executes req and classifies the outcome. A non-nil response is
// returned together with a *StatusError for non-2xx statuses.
func (c *Client) Do(req *resty.Request, method, url string) (*resty.Response, error) {
	id := req.Header.Get(RequestIDHeader)
	c.logger.Debug("http request", "method", method, "url", url, "request_id", id)

	resp, err := req.Execute(method, url)
	if err != nil {
		return resp, ClassifyTransport(err)
	}

	c.logger.Debug("http response", "status", resp.StatusCode(), "request_id", id, "duration", resp.Time())
	return resp, Check(resp, id)
}

// Check converts a completed response into an error, nil for 2xx.
func Check(resp *resty.Response, requestID string) error {
	switch {
	case resp.StatusCode() == http.StatusRequestTimeout:
		return fmt.Errorf("%w: http 408 (request %s)", ErrTimeout, requestID)
	case resp.IsError() || resp.StatusCode() >= 300:
		return &StatusError{
			StatusCode: resp.StatusCode(),
			RequestID:  requestID,
			Hints:      ParseHints(resp.Header()),
			Body:       resp.String(),
		}
	}
	return nil
}

// ClassifyTransport maps a transport failure onto ErrOffline or ErrTimeout
// when it matches one; context.Canceled passes through unchanged.
func ClassifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %w", ErrOffline, err)
	}

	return fmt.Errorf("request failed: %w", err)
}

// ParseHints reads Retry-After and the x-ratelimit-* headers.
func ParseHints(h http.Header) Hints {
	return Hints{
		RetryAfter:        parseRetryAfter(h.Get("Retry-After"), time.Now()),
		LimitRequests:     intHeader(h, "x-ratelimit-limit-requests"),
		RemainingRequests: intHeader(h, "x-ratelimit-remaining-requests"),
		ResetRequests:     durationHeader(h, "x-ratelimit-reset-requests"),
		LimitTokens:       intHeader(h, "x-ratelimit-limit-tokens"),
		RemainingTokens:   intHeader(h, "x-ratelimit-remaining-tokens"),
		ResetTokens:       durationHeader(h, "x-ratelimit-reset-tokens"),
	}
}

func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func intHeader(h http.Header, name string) int {
	n, err := strconv.Atoi(h.Get(name))
	if err != nil {
		return -1
	}
	return n
}

// durationHeader accepts both plain seconds ("12") and Go style
// durations ("2m59.5s") as sent by OpenAI compatible APIs.
func durationHeader(h http.Header, name string) time.Duration {
	v := h.Get(name)
	if v == "" {
		return -1
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return -1
}
