// Package provider issues search requests against external search/maps providers.
//
// A Client routes each task type to an Engine, paces calls through the engine's
// rate limiter, enforces a per-attempt timeout, and retries transient failures.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/bizscout/internal/types"
)

// DefaultTimeout is the default per-attempt request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultMaxAttempts is the default number of attempts for transient failures.
const DefaultMaxAttempts = 4

// DefaultRetryBase is the default base delay between retries.
const DefaultRetryBase = 500 * time.Millisecond

// DefaultMaxBodyBytes caps how much of a provider response body is read.
const DefaultMaxBodyBytes = 10 << 20

// ErrUnknownTaskType is returned when no engine serves the requested task type.
var ErrUnknownTaskType = errors.New("unknown task type")

// ErrInvalidRequest marks engine failures that happen before anything is sent.
// They are terminal.
var ErrInvalidRequest = errors.New("invalid provider request")

// ErrResponseTooLarge is returned when a response body exceeds the read cap.
var ErrResponseTooLarge = errors.New("provider response too large")

// Request is the semantic parameter tuple of one provider call.
type Request struct {
	TaskType    types.TaskType
	Query       string
	CountryCode string
	Language    string
	City        string
	Page        int
}

// Offset returns the zero-based result offset for the request page.
func (r Request) Offset() int {
	if r.Page <= 0 {
		return 0
	}
	return r.Page * r.TaskType.PageSize()
}

// Params returns the request's semantic parameters for diagnostics.
func (r Request) Params() map[string]string {
	params := map[string]string{
		"task_type": string(r.TaskType),
		"q":         r.Query,
		"page":      strconv.Itoa(r.Page),
	}
	if r.CountryCode != "" {
		params["country"] = r.CountryCode
	}
	if r.Language != "" {
		params["language"] = r.Language
	}
	if r.City != "" {
		params["city"] = r.City
	}
	return params
}

// RawResult is the unprocessed outcome of one HTTP exchange.
type RawResult struct {
	StatusCode int
	Body       []byte
}

// Engine executes a single provider HTTP exchange.
// A non-nil error means the exchange did not complete (transport failure);
// HTTP error statuses are reported through RawResult.
type Engine interface {
	// Kind names the provider, used to select the rate limiter.
	Kind() string
	Execute(ctx context.Context, req Request) (*RawResult, error)
}

// Response is a successful provider payload.
type Response struct {
	TaskType types.TaskType
	Body     []byte
	// Attempts is the number of HTTP exchanges issued, including retries.
	Attempts int
}

// Error is a terminal provider failure.
type Error struct {
	StatusCode int
	Body       string
	Params     map[string]string
	Attempts   int
	Transient  bool
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("provider error: %s", e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	msg += fmt.Sprintf(" after %d attempt(s) q=%q", e.Attempts, e.Params["q"])
	if e.Body != "" {
		msg += ": " + truncate(e.Body, 512)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsTransientStatus reports whether an HTTP status is retried.
func IsTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
