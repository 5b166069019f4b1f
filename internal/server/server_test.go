package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skew/internal/bias"
	"github.com/sawpanic/skew/internal/classify"
	"github.com/sawpanic/skew/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default().Server
	cfg.RPS = 1000
	cfg.Burst = 1000
	return New(cfg, WithVersion("test"))
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestJobHash(t *testing.T) {
	// sha256("a_b")
	assert.Equal(t, "648fa9b31bc7ff7eb914e7a7180f07e0df0f8467839b1af8902da1d0bead03a2", JobHash("a", "b"))
	assert.Len(t, JobHash("example.com_Title", ""), 64)
	assert.NotEqual(t, JobHash("a", "b"), JobHash("b", "a"))
}

func TestHashClassifier(t *testing.T) {
	zeros := strings.Repeat("0", 60)
	tests := []struct {
		hash   string
		bias   bias.Bias
		extent bias.Extent
	}{
		{"0001" + zeros, bias.Neutral, bias.None},
		{"0102" + zeros, bias.Left, bias.Strong},
		{"0203" + zeros, bias.Right, bias.Extreme},
		{"0400" + zeros, bias.Left, bias.Minimal},
	}

	for _, tt := range tests {
		r, err := HashClassifier{}.Classify(tt.hash)
		require.NoError(t, err)
		assert.Equal(t, tt.bias, r.Bias)
		assert.Equal(t, tt.extent, r.Extent)
	}

	_, err := HashClassifier{}.Classify("not-hex")
	assert.ErrorIs(t, err, ErrInvalidHash)
	_, err = HashClassifier{}.Classify("abcd")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestHashClassifier_AlwaysMapped(t *testing.T) {
	for i := 0; i < 200; i++ {
		r, err := HashClassifier{}.Classify(JobHash("page", strings.Repeat("x", i)))
		require.NoError(t, err)
		_, err = bias.Lookup(r.Bias, r.Extent)
		assert.NoError(t, err)
	}
}

func TestProcess(t *testing.T) {
	s := newTestServer(t)

	rr := serve(s, http.MethodPost, "/process", `{"id":"example.com_Hello","text":"","url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	var resp processResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	want, err := HashClassifier{}.Classify(JobHash("example.com_Hello", ""))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.False(t, resp.Processing)
	assert.Equal(t, JobHash("example.com_Hello", ""), resp.Hash)
	assert.Equal(t, want.Bias, resp.Bias)
	assert.Equal(t, want.Extent, resp.Extent)
}

func TestProcess_RejectsBadBodies(t *testing.T) {
	s := newTestServer(t)

	rr := serve(s, http.MethodPost, "/process", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(s, http.MethodPost, "/process", `{"id":"x","text":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "id and url are required")
}

func TestProcess_Preflight(t *testing.T) {
	s := newTestServer(t)

	rr := serve(s, http.MethodOptions, "/process", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestJob(t *testing.T) {
	s := newTestServer(t)
	hash := JobHash("id", "text")

	rr := serve(s, http.MethodGet, "/process/"+hash, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp jobResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, hash, resp.Hash)

	rr = serve(s, http.MethodGet, "/process/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false}`, rr.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	serve(s, http.MethodPost, "/process", `{"id":"a","text":"","url":"https://a.example"}`)

	rr := serve(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var health struct {
		Version string         `json:"version"`
		Clients map[string]int `json:"clients"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, map[string]int{"tracked": 1, "throttled": 0}, health.Clients)

	rr = serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `skew_process_requests_total{code="200",route="/process"} 1`)
	assert.Contains(t, rr.Body.String(), "skew_classifications_total")
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default().Server
	cfg.RPS = 1
	cfg.Burst = 2
	s := New(cfg)

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/health", "").Code)

	rr := serve(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)
	rr := serve(s, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":"not found"}`, rr.Body.String())
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	rr := serve(s, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":"method not allowed"}`, rr.Body.String())
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = serve(s, http.MethodGet, "/metrics", "")
	assert.Contains(t, rr.Body.String(), `skew_process_requests_total{code="405",route="unmatched"} 1`)
}

func TestUnmatchedRequestsAreRateLimited(t *testing.T) {
	cfg := config.Default().Server
	cfg.RPS = 1
	cfg.Burst = 1
	s := New(cfg)

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/nowhere", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(s, http.MethodGet, "/nowhere", "").Code)
}

func TestClientAgainstStub(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	cfg := config.Default().Classifier
	cfg.Endpoint = srv.URL
	client, err := classify.New(cfg, classify.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	page := classify.Page{URL: "https://news.example.com/a", Title: "Some Headline"}
	reading, err := client.Classify(context.Background(), page)
	require.NoError(t, err)

	want, err := HashClassifier{}.Classify(JobHash(classify.DeriveID(page), ""))
	require.NoError(t, err)
	assert.Equal(t, want, reading)

	again, err := client.Job(context.Background(), JobHash(classify.DeriveID(page), ""))
	require.NoError(t, err)
	assert.Equal(t, reading, again)
}
