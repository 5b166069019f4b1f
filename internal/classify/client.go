package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/skew/internal/bias"
	"github.com/sawpanic/skew/internal/config"
	"github.com/sawpanic/skew/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Page is the browser page being classified
type Page struct {
	URL   string
	Title string
	Host  string // Optional; taken from URL when empty
}

// DeriveID builds the service identifier: host, underscore, then the title
// with every whitespace rune replaced by a hyphen.
func DeriveID(p Page) string {
	host := p.Host
	if host == "" {
		if u, err := url.Parse(p.URL); err == nil {
			host = u.Host
		}
	}

	title := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, p.Title)

	return host + "_" + title
}

// Request is the body of POST /process
type Request struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Response is the service envelope. Only bias and extent are required; the
// remaining fields appear when the service queues work.
type Response struct {
	Success    *bool  `json:"success,omitempty"`
	Processing bool   `json:"processing,omitempty"`
	Hash       string `json:"hash,omitempty"`
	Bias       string `json:"bias"`
	Extent     string `json:"extent"`
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records request outcomes in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(c *Client) { c.metrics = reg }
}

// Client sends classification requests. Each call issues exactly one HTTP
// request; nothing is retried or cached.
type Client struct {
	endpoint  *url.URL
	http      *http.Client
	userAgent string
	breaker   *gobreaker.CircuitBreaker
	metrics   *metrics.Registry
}

// New creates a client for the configured endpoint
func New(cfg config.ClassifierConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}

	endpoint, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	threshold := uint32(cfg.Breaker.ConsecutiveFailures)
	c := &Client{
		endpoint:  endpoint,
		http:      &http.Client{Timeout: cfg.Timeout()},
		userAgent: cfg.UserAgent,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "classifier",
			Timeout: cfg.Breaker.OpenTimeout(),
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: isServiceHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Classifier breaker state changed")
			},
		}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// isServiceHealthy decides which errors count against the breaker. Only
// unreachable services and server-side failures do; a caller cancelling its
// own request says nothing about the service.
func isServiceHealthy(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var ce *Error
	if !errors.As(err, &ce) {
		return err == nil
	}
	switch ce.Kind {
	case KindTransport:
		return false
	case KindStatus:
		return ce.StatusCode < 500
	default:
		return true
	}
}

// Classify requests a classification for page and resolves its indicator position
func (c *Client) Classify(ctx context.Context, page Page) (bias.Reading, error) {
	req := Request{
		ID:   DeriveID(page),
		Text: "",
		URL:  page.URL,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return bias.Reading{}, &Error{Kind: KindDecode, Err: err}
	}

	log.Debug().Str("id", req.ID).Str("url", req.URL).Msg("Requesting classification")

	return c.exchange(ctx, http.MethodPost, "/process", body)
}

// Job fetches the result of a job the service previously queued
func (c *Client) Job(ctx context.Context, hash string) (bias.Reading, error) {
	log.Debug().Str("hash", hash).Msg("Fetching queued classification")
	return c.exchange(ctx, http.MethodGet, "/process/"+url.PathEscape(hash), nil)
}

func (c *Client) exchange(ctx context.Context, method, path string, body []byte) (bias.Reading, error) {
	start := time.Now()

	reading, err := c.roundTrip(ctx, method, path, body)

	outcome := "ok"
	if kind := KindOf(err); kind != "" {
		outcome = string(kind)
	} else if err != nil {
		outcome = "error"
	}
	c.metrics.ObserveClassify(outcome, time.Since(start))

	if err != nil {
		log.Debug().Err(err).Str("path", path).Dur("elapsed", time.Since(start)).Msg("Classification failed")
		return bias.Reading{}, err
	}

	log.Debug().Str("bias", string(reading.Bias)).Str("extent", string(reading.Extent)).Dur("elapsed", time.Since(start)).Msg("Classification received")
	return reading, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) (bias.Reading, error) {
	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return bias.Reading{}, &Error{Kind: KindCircuit, Err: err}
		}
		return bias.Reading{}, err
	}

	var resp Response
	if err := json.Unmarshal(raw.([]byte), &resp); err != nil {
		return bias.Reading{}, &Error{Kind: KindDecode, Err: err}
	}

	if resp.Processing {
		return bias.Reading{}, &Error{Kind: KindPending, Hash: resp.Hash}
	}

	reading, err := bias.Resolve(resp.Bias, resp.Extent)
	if err != nil {
		return bias.Reading{}, &Error{Kind: KindCategory, Err: err}
	}

	return reading, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint.String()+path, reader)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d from %s", resp.StatusCode, path),
		}
	}

	return data, nil
}
