package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonathan/bizscout/internal/ratelimit"
	"github.com/jonathan/bizscout/internal/types"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CSEEngine runs CSE_SEARCH tasks against the Google Custom Search JSON API.
type CSEEngine struct {
	svc    *customsearch.Service
	apiKey string
	cx     string
}

// CSEOptions configures the Custom Search engine.
type CSEOptions struct {
	APIKey string
	CX     string
	// Endpoint overrides the API base URL (tests, proxies).
	Endpoint   string
	HTTPClient *http.Client
}

// NewCSEEngine creates a Custom Search engine.
func NewCSEEngine(ctx context.Context, opts CSEOptions) (*CSEEngine, error) {
	if opts.CX == "" {
		return nil, fmt.Errorf("custom search engine id (cx) is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	// The key is sent per call so the service can share a plain HTTP client.
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		endpoint := opts.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}

	svc, err := customsearch.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &CSEEngine{svc: svc, apiKey: opts.APIKey, cx: opts.CX}, nil
}

// Kind implements Engine.
func (e *CSEEngine) Kind() string {
	return ratelimit.KindCSE
}

// Execute implements Engine. API errors are reported as RawResult statuses so the
// client classifies them like any other HTTP response.
func (e *CSEEngine) Execute(ctx context.Context, req Request) (*RawResult, error) {
	if req.TaskType != types.TaskTypeCSESearch {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, req.TaskType)
	}

	call := e.svc.Cse.List().
		Context(ctx).
		Cx(e.cx).
		Q(req.Query).
		Num(int64(req.TaskType.PageSize())).
		Start(int64(req.Offset() + 1))
	if req.CountryCode != "" {
		call = call.Gl(strings.ToLower(req.CountryCode))
	}
	if req.Language != "" {
		call = call.Hl(req.Language)
	}

	resp, err := call.Do(googleapi.QueryParameter("key", e.apiKey))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return &RawResult{StatusCode: apiErr.Code, Body: []byte(apiErr.Body)}, nil
		}
		return nil, err
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode custom search response: %w", err)
	}
	return &RawResult{StatusCode: resp.HTTPStatusCode, Body: body}, nil
}
