package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jonathan/bizscout/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCSEServer(t *testing.T, status int, body string, got *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customsearch/v1", r.URL.Path)
		*got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestCSEEngine_Execute(t *testing.T) {
	var got url.Values
	server := newCSEServer(t, http.StatusOK,
		`{"items":[{"title":"Cake House","link":"https://cakehouse.ae/","snippet":"Fresh cakes"}]}`, &got)
	defer server.Close()

	engine, err := NewCSEEngine(context.Background(), CSEOptions{
		APIKey: "key-1", CX: "cx-1", Endpoint: server.URL, HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	raw, err := engine.Execute(context.Background(), Request{
		TaskType: types.TaskTypeCSESearch, Query: "bakery dubai", CountryCode: "AE", Language: "en", Page: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, raw.StatusCode)
	assert.Contains(t, string(raw.Body), `"link":"https://cakehouse.ae/"`)

	assert.Equal(t, "key-1", got.Get("key"))
	assert.Equal(t, "cx-1", got.Get("cx"))
	assert.Equal(t, "bakery dubai", got.Get("q"))
	assert.Equal(t, "11", got.Get("start"))
	assert.Equal(t, "10", got.Get("num"))
	assert.Equal(t, "ae", got.Get("gl"))
}

func TestCSEEngine_APIErrorBecomesStatus(t *testing.T) {
	var got url.Values
	server := newCSEServer(t, http.StatusTooManyRequests,
		`{"error":{"code":429,"message":"Quota exceeded"}}`, &got)
	defer server.Close()

	engine, err := NewCSEEngine(context.Background(), CSEOptions{
		APIKey: "k", CX: "cx", Endpoint: server.URL, HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	raw, err := engine.Execute(context.Background(), Request{TaskType: types.TaskTypeCSESearch, Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, raw.StatusCode)
	assert.Contains(t, string(raw.Body), "Quota exceeded")
	assert.Equal(t, "1", got.Get("start"))
}

func TestCSEEngine_RequiresCX(t *testing.T) {
	_, err := NewCSEEngine(context.Background(), CSEOptions{APIKey: "k"})
	assert.Error(t, err)
}

func TestCSEEngine_RejectsOtherTaskTypes(t *testing.T) {
	engine, err := NewCSEEngine(context.Background(), CSEOptions{CX: "cx", Endpoint: "http://127.0.0.1:0"})
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), Request{TaskType: types.TaskTypeWebSearch})
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}
