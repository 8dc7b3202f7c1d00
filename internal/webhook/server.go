package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/hookgate/internal/hookerr"
)

// Snapshotter exposes the cached allowlist for health reporting.
type Snapshotter interface {
	Snapshot() ([]netip.Prefix, time.Time)
}

// Server represents the webhook HTTP server.
type Server struct {
	config    Config
	validator *Validator
	registry  *Registry
	allowlist Snapshotter
	logger    *slog.Logger
	server    *http.Server
	now       func() time.Time
}

// New creates a new webhook server instance. allowlist may be nil.
func New(config Config, validator *Validator, registry *Registry, allowlist Snapshotter, logger *slog.Logger) *Server {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.Listen == "" {
		config.Listen = DefaultListen
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}

	return &Server{
		config:    config,
		validator: validator,
		registry:  registry,
		allowlist: allowlist,
		logger:    logger,
		now:       time.Now,
	}
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting",
		"listen", s.config.Listen,
		"path", s.config.Path,
		"hooks", s.registry.Events(),
		"validate_ip", s.validator.ValidatesIP(),
		"validate_signature", s.validator.ValidatesSignature(),
	)

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the HTTP router. Unknown paths get 404 and other methods
// on the hook path get 405 from chi.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post(s.config.Path, s.handleHook)

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads and signatures).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
			"event", r.Header.Get(HeaderEvent),
			"delivery_id", r.Header.Get(HeaderDelivery),
		)
	})
}

// handleHook validates a delivery and hands it to the registry.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondFailure(w, hookerr.PayloadTooLarge("payload too large"))
		return
	}

	if err := s.validator.Validate(ctx, Request{
		RemoteAddr: r.RemoteAddr,
		Header:     r.Header,
		Body:       body,
	}); err != nil {
		s.respondFailure(w, err)
		return
	}

	resp, err := s.registry.Dispatch(ctx, r.Header, body)
	if err != nil {
		status, _ := hookerr.Status(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("hook handler failed",
				"event", r.Header.Get(HeaderEvent),
				"delivery_id", r.Header.Get(HeaderDelivery),
				"error", err,
			)
		}
		s.respondFailure(w, err)
		return
	}

	s.writeResponse(w, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status: "ok",
		Hooks:  s.registry.Events(),
	}
	if s.allowlist != nil {
		prefixes, fetchedAt := s.allowlist.Snapshot()
		health.AllowlistBlocks = len(prefixes)
		if !fetchedAt.IsZero() {
			age := int64(s.now().Sub(fetchedAt).Seconds())
			health.AllowlistAgeSecs = &age
		}
	}
	s.respondJSON(w, http.StatusOK, health)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp Response) {
	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			s.logger.Debug("failed to write hook response", "error", err)
		}
	}
}

// respondFailure maps a classified error to its status and message.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	status, msg := hookerr.Status(err)
	s.respondError(w, status, msg)
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
