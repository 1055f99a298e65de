// Package httpapi exposes scan output and operational state over HTTP:
// the latest signals per strategy, the admitted universe, provider health
// and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/engine"
	"github.com/sawpanic/signalrun/internal/metrics"
	"github.com/sawpanic/signalrun/internal/provider"
	"github.com/sawpanic/signalrun/internal/universe"
)

// Options wires the server's collaborators. Health and metrics are
// optional; signals appear once Publish is called after a scan.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	Metrics         *metrics.Set
	Universe        provider.UniverseProvider
	Health          func() []provider.HealthSnapshot
}

// Server holds the latest scan results and serves them. Publish may be
// called from any goroutine.
type Server struct {
	opts    Options
	srv     *http.Server
	started time.Time

	mu     sync.RWMutex
	latest map[string]*engine.ScanResult
}

func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		opts:   opts,
		latest: make(map[string]*engine.ScanResult),
	}

	r := mux.NewRouter()
	r.Use(requestID)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/signals", s.handleSignals).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/universe", s.handleUniverse).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Publish replaces the stored result for the scanned strategy.
func (s *Server) Publish(res *engine.ScanResult) {
	if res == nil {
		return
	}
	s.mu.Lock()
	s.latest[res.Strategy] = res
	s.mu.Unlock()
}

// Run serves until ctx is cancelled, then drains within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	s.started = time.Now()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	log.Info().Msg("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}

// requestID tags every request and response for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status    string                    `json:"status"`
	UptimeSec float64                   `json:"uptime_sec"`
	Venues    []provider.HealthSnapshot `json:"venues,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if !s.started.IsZero() {
		resp.UptimeSec = time.Since(s.started).Seconds()
	}
	if s.opts.Health != nil {
		resp.Venues = s.opts.Health()
		for _, v := range resp.Venues {
			if !v.Healthy {
				resp.Status = "degraded"
				break
			}
		}
	}
	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleSignals returns the latest scan per strategy, or one strategy's
// result when ?strategy= is given. An unknown strategy is 404; a known
// strategy that has not scanned yet is an empty object.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name := r.URL.Query().Get("strategy"); name != "" {
		res, ok := s.latest[name]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown strategy " + name})
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusOK, s.latest)
}

func (s *Server) handleUniverse(w http.ResponseWriter, r *http.Request) {
	if s.opts.Universe == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no universe provider configured"})
		return
	}
	instruments, err := s.opts.Universe.Universe(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("universe fetch failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, universe.TopByTurnover(instruments, 0))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}
