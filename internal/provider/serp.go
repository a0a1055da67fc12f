package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/bizscout/internal/ratelimit"
	"github.com/jonathan/bizscout/internal/types"
)

// DefaultSerpBaseURL is the SerpAPI-style search endpoint.
const DefaultSerpBaseURL = "https://serpapi.com/search.json"

// DefaultUserAgent is the user agent string for provider requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; BizScout/1.0)"

// SerpEngineName returns the engine parameter used for a task type.
func SerpEngineName(t types.TaskType) (string, bool) {
	switch t {
	case types.TaskTypeWebSearch:
		return "google", true
	case types.TaskTypeLocalSearch:
		return "google_local", true
	case types.TaskTypeMapsSearch:
		return "google_maps", true
	default:
		return "", false
	}
}

// SerpEngine calls a SerpAPI-compatible HTTP endpoint.
type SerpEngine struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerpEngine creates a SerpEngine. An empty baseURL uses DefaultSerpBaseURL.
func NewSerpEngine(apiKey, baseURL string, httpClient *http.Client) *SerpEngine {
	if baseURL == "" {
		baseURL = DefaultSerpBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout + 5*time.Second}
	}
	return &SerpEngine{apiKey: apiKey, baseURL: baseURL, client: httpClient}
}

// Kind implements Engine.
func (e *SerpEngine) Kind() string {
	return ratelimit.KindSerp
}

// Execute implements Engine.
func (e *SerpEngine) Execute(ctx context.Context, req Request) (*RawResult, error) {
	engine, ok := SerpEngineName(req.TaskType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, req.TaskType)
	}

	u, err := url.Parse(e.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: serp base URL: %w", ErrInvalidRequest, err)
	}
	u.RawQuery = e.query(engine, req).Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("User-Agent", DefaultUserAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp.Body, DefaultMaxBodyBytes)
	if err != nil {
		return nil, err
	}
	return &RawResult{StatusCode: resp.StatusCode, Body: body}, nil
}

func (e *SerpEngine) query(engine string, req Request) url.Values {
	q := url.Values{}
	q.Set("engine", engine)
	q.Set("api_key", e.apiKey)

	query := req.Query
	switch req.TaskType {
	case types.TaskTypeMapsSearch:
		q.Set("type", "search")
		if req.City != "" && !strings.Contains(strings.ToLower(query), strings.ToLower(req.City)) {
			query = query + " " + req.City
		}
	default:
		if req.City != "" {
			q.Set("location", req.City)
		}
	}
	q.Set("q", query)

	if req.CountryCode != "" {
		q.Set("gl", strings.ToLower(req.CountryCode))
	}
	if req.Language != "" {
		q.Set("hl", req.Language)
	}
	if offset := req.Offset(); offset > 0 {
		q.Set("start", strconv.Itoa(offset))
	}
	return q
}

// readBody reads at most limit bytes and fails with ErrResponseTooLarge beyond that.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, limit)
	}
	return body, nil
}
