package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/jonathan/bizscout/internal/ratelimit"
	"github.com/jonathan/bizscout/internal/types"
)

// Options configures the Client's timeout and retry behaviour.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryBase   time.Duration

	// Jitter returns a value in [0, n). Defaults to math/rand/v2.
	Jitter func(n int64) int64
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns sensible defaults for provider calls.
func DefaultOptions() *Options {
	return &Options{
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
		RetryBase:   DefaultRetryBase,
	}
}

// Client issues provider calls with pacing, timeout, retry and classification.
type Client struct {
	engines  map[types.TaskType]Engine
	limiters *ratelimit.Registry
	opts     Options
	logger   *slog.Logger
	requests atomic.Int64
}

// NewClient creates a Client. limiters must hold one long-lived limiter per engine kind.
func NewClient(limiters *ratelimit.Registry, opts *Options, logger *slog.Logger) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryBase < 0 {
		o.RetryBase = 0
	}
	if o.Jitter == nil {
		o.Jitter = func(n int64) int64 {
			if n <= 0 {
				return 0
			}
			return rand.Int64N(n)
		}
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if limiters == nil {
		limiters = ratelimit.NewRegistry(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		engines:  make(map[types.TaskType]Engine),
		limiters: limiters,
		opts:     o,
		logger:   logger,
	}
}

// Register routes the given task types to engine.
func (c *Client) Register(engine Engine, taskTypes ...types.TaskType) {
	for _, t := range taskTypes {
		c.engines[t] = engine
	}
}

// Supports reports whether an engine is registered for t.
func (c *Client) Supports(t types.TaskType) bool {
	_, ok := c.engines[t]
	return ok
}

// RequestCount returns the number of HTTP exchanges issued by this client.
func (c *Client) RequestCount() int64 {
	return c.requests.Load()
}

// Search executes req, retrying transient failures. Terminal failures, exhausted
// retries and context cancellation return *Error carrying the attempts issued.
// A cancelled call unwraps to the context error.
func (c *Client) Search(ctx context.Context, req Request) (*Response, error) {
	engine, ok := c.engines[req.TaskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, req.TaskType)
	}
	limiter := c.limiters.For(engine.Kind())

	var lastErr *Error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt - 1)
			c.logger.Warn("retrying provider request",
				"task_type", req.TaskType,
				"attempt", attempt,
				"status_code", lastErr.StatusCode,
				"backoff_ms", delay.Milliseconds(),
				"error", lastErr.Message,
			)
			if err := c.opts.Sleep(ctx, delay); err != nil {
				return nil, c.cancelled(req, attempt-1, err)
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, c.cancelled(req, attempt-1, ctx.Err())
			}
			return nil, c.newError(req, attempt-1, 0, nil, false, "rate limiter", err)
		}

		body, perr := c.attempt(ctx, engine, req, attempt)
		if perr == nil {
			return &Response{TaskType: req.TaskType, Body: body, Attempts: attempt}, nil
		}
		if ctx.Err() != nil {
			return nil, c.cancelled(req, attempt, ctx.Err())
		}
		if !perr.Transient {
			return nil, perr
		}
		lastErr = perr
	}

	lastErr.Message = fmt.Sprintf("retries exhausted: %s", lastErr.Message)
	return nil, lastErr
}

// attempt performs one exchange under the per-attempt timeout and classifies the outcome.
func (c *Client) attempt(ctx context.Context, engine Engine, req Request, n int) ([]byte, *Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	c.requests.Add(1)
	raw, err := engine.Execute(attemptCtx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownTaskType):
			return nil, c.newError(req, n, 0, nil, false, "unsupported task type", err)
		case errors.Is(err, ErrInvalidRequest):
			return nil, c.newError(req, n, 0, nil, false, "invalid request", err)
		case errors.Is(err, ErrResponseTooLarge):
			return nil, c.newError(req, n, 0, nil, false, "response too large", err)
		}
		msg := "transport failure"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("timeout after %s", c.opts.Timeout)
		}
		return nil, c.newError(req, n, 0, nil, true, msg, err)
	}

	if raw.StatusCode < 200 || raw.StatusCode > 299 {
		transient := IsTransientStatus(raw.StatusCode)
		return nil, c.newError(req, n, raw.StatusCode, raw.Body, transient,
			fmt.Sprintf("HTTP status %d", raw.StatusCode), nil)
	}

	if msg, ok := embeddedError(raw.Body); ok {
		return nil, c.newError(req, n, raw.StatusCode, raw.Body, false, "provider reported error: "+msg, nil)
	}
	if !json.Valid(raw.Body) || !isJSONObject(raw.Body) {
		return nil, c.newError(req, n, raw.StatusCode, raw.Body, false, "malformed payload", nil)
	}
	return raw.Body, nil
}

func (c *Client) newError(req Request, attempts, status int, body []byte, transient bool, msg string, cause error) *Error {
	return &Error{
		StatusCode: status,
		Body:       string(body),
		Params:     req.Params(),
		Attempts:   attempts,
		Transient:  transient,
		Message:    msg,
		Cause:      cause,
	}
}

func (c *Client) cancelled(req Request, attempts int, cause error) *Error {
	return c.newError(req, attempts, 0, nil, false, "cancelled", cause)
}

// backoff returns base*2^(retry-1) + random(0, base).
func (c *Client) backoff(retry int) time.Duration {
	base := c.opts.RetryBase
	if base <= 0 {
		return 0
	}
	exp := min(retry-1, 16)
	return base*time.Duration(int64(1)<<exp) + time.Duration(c.opts.Jitter(int64(base)))
}

// embeddedError extracts a top-level "error" string from an otherwise successful body.
func embeddedError(body []byte) (string, bool) {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || len(probe.Error) == 0 {
		return "", false
	}
	raw := bytes.TrimSpace(probe.Error)
	if bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
