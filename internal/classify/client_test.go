package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skew/internal/bias"
	"github.com/sawpanic/skew/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Classifier
	cfg.Endpoint = srv.URL
	cfg.Breaker.ConsecutiveFailures = 2

	c, err := New(cfg, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, srv
}

func TestDeriveID(t *testing.T) {
	tests := []struct {
		name string
		page Page
		want string
	}{
		{"explicit host", Page{Host: "news.example.com", Title: "Big  Story today"}, "news.example.com_Big--Story-today"},
		{"host from url", Page{URL: "https://example.org/a?b=c", Title: "Tabs\tand spaces"}, "example.org_Tabs-and-spaces"},
		{"empty title", Page{URL: "https://example.org/"}, "example.org_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveID(tt.page))
		})
	}
}

func TestClassify_Success(t *testing.T) {
	var got Request
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/process", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"bias":"left","extent":"strong"}`))
	})

	reading, err := c.Classify(context.Background(), Page{
		URL:   "https://news.example.com/story",
		Title: "A Story",
	})
	require.NoError(t, err)

	assert.Equal(t, bias.Left, reading.Bias)
	assert.Equal(t, bias.Strong, reading.Extent)
	assert.Equal(t, "79.04%", reading.Offset.String())

	assert.Equal(t, "news.example.com_A-Story", got.ID)
	assert.Equal(t, "", got.Text)
	assert.Equal(t, "https://news.example.com/story", got.URL)
}

func TestClassify_NeutralNone(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bias":"neutral","extent":"none"}`))
	})

	reading, err := c.Classify(context.Background(), Page{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "46.25%", reading.Offset.String())
}

func TestClassify_FailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"server error", http.StatusInternalServerError, `{}`, KindStatus},
		{"malformed json", http.StatusOK, `{"bias":`, KindDecode},
		{"unknown extent", http.StatusOK, `{"bias":"left","extent":"slight"}`, KindCategory},
		{"unmapped pair", http.StatusOK, `{"bias":"neutral","extent":"extreme"}`, KindCategory},
		{"missing fields", http.StatusOK, `{"success":true}`, KindCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Classify(context.Background(), Page{URL: "https://example.com"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestClassify_UnmappedPairWrapsLookupError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bias":"right","extent":"none"}`))
	})

	_, err := c.Classify(context.Background(), Page{URL: "https://example.com"})
	assert.ErrorIs(t, err, bias.ErrUnmapped)
}

func TestClassify_PendingCarriesHash(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"processing":true,"success":true,"hash":"abc123"}`))
	})

	_, err := c.Classify(context.Background(), Page{URL: "https://example.com"})
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindPending, ce.Kind)
	assert.Equal(t, "abc123", ce.Hash)
	assert.Contains(t, ce.Reason(), "--job abc123")
}

func TestJob(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path != "/process/abc123" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false}`))
			return
		}
		w.Write([]byte(`{"success":true,"hash":"abc123","bias":"right","extent":"extreme"}`))
	})

	reading, err := c.Job(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "2.5%", reading.Offset.String())

	_, err = c.Job(context.Background(), "other")
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindStatus, ce.Kind)
	assert.Equal(t, http.StatusNotFound, ce.StatusCode)
}

func TestClassify_TransportFailure(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.Classify(context.Background(), Page{URL: "https://example.com"})
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestClassify_BreakerOpensAfterServerFailures(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		_, err := c.Classify(context.Background(), Page{URL: "https://example.com"})
		assert.Equal(t, KindStatus, KindOf(err))
	}

	_, err := c.Classify(context.Background(), Page{URL: "https://example.com"})
	assert.Equal(t, KindCircuit, KindOf(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "open breaker must not send")
}

func TestClassify_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 4; i++ {
		_, err := c.Classify(context.Background(), Page{URL: "https://example.com"})
		assert.Equal(t, KindStatus, KindOf(err))
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestClassify_CancelledCallsDoNotTripBreaker(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bias":"right","extent":"minimal"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 4; i++ {
		_, err := c.Classify(ctx, Page{URL: "https://example.com"})
		assert.Equal(t, KindTransport, KindOf(err))
		assert.ErrorIs(t, err, context.Canceled)
	}

	reading, err := c.Classify(context.Background(), Page{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, bias.Right, reading.Bias)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIsServiceHealthy(t *testing.T) {
	assert.True(t, isServiceHealthy(nil))
	assert.True(t, isServiceHealthy(&Error{Kind: KindTransport, Err: context.Canceled}))
	assert.False(t, isServiceHealthy(&Error{Kind: KindTransport, Err: context.DeadlineExceeded}))
	assert.False(t, isServiceHealthy(&Error{Kind: KindStatus, StatusCode: 503}))
	assert.True(t, isServiceHealthy(&Error{Kind: KindStatus, StatusCode: 404}))
	assert.True(t, isServiceHealthy(&Error{Kind: KindDecode}))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default().Classifier
	cfg.Endpoint = "not a url"

	_, err := New(cfg)
	assert.Error(t, err)
}
