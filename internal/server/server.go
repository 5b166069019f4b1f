package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/skew/internal/bias"
	"github.com/sawpanic/skew/internal/config"
	"github.com/sawpanic/skew/internal/metrics"
	"github.com/sawpanic/skew/internal/net/ratelimit"
)

const (
	limiterPruneEvery = time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Server is the local classification service used during development
type Server struct {
	router     *mux.Router
	server     *http.Server
	config     config.ServerConfig
	classifier Classifier
	limiter    *ratelimit.Limiter
	metrics    *metrics.Registry
	version    string
	started    time.Time
}

// Option customizes a Server
type Option func(*Server)

// WithClassifier replaces the hash classifier
func WithClassifier(c Classifier) Option {
	return func(s *Server) { s.classifier = c }
}

// WithMetrics shares a metrics registry with the server
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Server) { s.metrics = reg }
}

// WithVersion sets the version reported by /health
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a server and wires its routes
func New(cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		config:     cfg,
		classifier: HashClassifier{},
		limiter:    ratelimit.NewLimiter(cfg.RPS, cfg.Burst),
		version:    "dev",
		started:    time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewRegistry()
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.rateLimitMiddleware)

	s.router.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/process/{hash}", s.handleJob).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	// mux skips Use middleware for unmatched requests, so these get the chain explicitly
	s.router.NotFoundHandler = s.chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, failure{Success: false, Error: "not found"})
	}))
	s.router.MethodNotAllowedHandler = s.chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, failure{Success: false, Error: "method not allowed"})
	}))
}

// chain wraps h in the same middleware the router applies to matched routes
func (s *Server) chain(h http.Handler) http.Handler {
	return s.requestIDMiddleware(s.requestLoggingMiddleware(s.corsMiddleware(s.rateLimitMiddleware(h))))
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("Classification stub listening")

	go s.limiter.Run(ctx, limiterPruneEvery, limiterIdleAfter)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down classification stub")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

type processResponse struct {
	Processing bool        `json:"processing"`
	Success    bool        `json:"success"`
	Hash       string      `json:"hash"`
	Bias       bias.Bias   `json:"bias"`
	Extent     bias.Extent `json:"extent"`
}

type jobResponse struct {
	Success bool        `json:"success"`
	Hash    string      `json:"hash"`
	Bias    bias.Bias   `json:"bias"`
	Extent  bias.Extent `json:"extent"`
}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type processRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	URL  string `json:"url"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failure{Error: "malformed request body"})
		return
	}
	if req.ID == "" || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, failure{Error: "id and url are required"})
		return
	}

	hash := JobHash(req.ID, req.Text)
	reading, err := s.classifier.Classify(hash)
	if err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("Classifier failed")
		writeJSON(w, http.StatusInternalServerError, failure{Error: "classification failed"})
		return
	}

	s.metrics.Classifications.WithLabelValues(string(reading.Bias), string(reading.Extent)).Inc()
	log.Debug().Str("id", req.ID).Str("hash", hash).Str("bias", string(reading.Bias)).Str("extent", string(reading.Extent)).Msg("Classified")

	writeJSON(w, http.StatusOK, processResponse{
		Processing: false,
		Success:    true,
		Hash:       hash,
		Bias:       reading.Bias,
		Extent:     reading.Extent,
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	reading, err := s.classifier.Classify(hash)
	if err != nil {
		if errors.Is(err, ErrInvalidHash) {
			writeJSON(w, http.StatusNotFound, failure{Success: false})
			return
		}
		log.Error().Err(err).Str("hash", hash).Msg("Classifier failed")
		writeJSON(w, http.StatusInternalServerError, failure{Error: "classification failed"})
		return
	}

	s.metrics.Classifications.WithLabelValues(string(reading.Bias), string(reading.Extent)).Inc()

	writeJSON(w, http.StatusOK, jobResponse{
		Success: true,
		Hash:    hash,
		Bias:    reading.Bias,
		Extent:  reading.Extent,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.limiter.Stats()
	throttled := 0
	for _, st := range stats {
		if st.IsThrottled() {
			throttled++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"clients": map[string]int{
			"tracked":   len(stats),
			"throttled": throttled,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
