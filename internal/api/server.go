// Package api serves the wheelcity HTTP API: report submission, venue reads,
// internal label management and a Server-Sent Events stream of label changes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/events"
	"github.com/kang022878/WheelCity-back-2025/internal/logging"
	"github.com/kang022878/WheelCity-back-2025/internal/service/reconcile"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Server provides the HTTP endpoints.
type Server struct {
	router         chi.Router
	engine         *reconcile.Engine
	venues         core.VenueStore
	reports        core.ReportStore
	eventBus       *events.EventBus
	logger         *logging.Logger
	apiKey         string
	corsOrigins    []string
	requestTimeout time.Duration
	now            func() time.Time
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventBus enables the /events stream.
func WithEventBus(bus *events.EventBus) ServerOption {
	return func(s *Server) {
		s.eventBus = bus
	}
}

// WithInternalAPIKey sets the key required by internal routes. Without one
// those routes always answer 401.
func WithInternalAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithCORSOrigins sets the allowed CORS origins. An empty list disables CORS.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRequestTimeout bounds non-streaming requests.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewServer creates a new API server.
func NewServer(engine *reconcile.Engine, venues core.VenueStore, reports core.ReportStore, opts ...ServerOption) *Server {
	s := &Server{
		engine:         engine,
		venues:         venues,
		reports:        reports,
		logger:         logging.NewNop(),
		requestTimeout: 2 * time.Minute,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	if len(s.corsOrigins) > 0 {
		corsHandler := cors.New(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", apiKeyHeader},
			AllowCredentials: false,
			MaxAge:           300,
		})
		r.Use(corsHandler.Handler)
	}

	r.Get("/health", s.handleHealth)

	// The event stream is long-lived and stays outside the request timeout.
	r.Get("/events", s.handleSSE)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		r.Route("/venues", func(r chi.Router) {
			r.Get("/", s.handleListVenues)
			r.With(s.requireInternalKey).Post("/", s.handleCreateVenue)

			r.Route("/{venueID}", func(r chi.Router) {
				r.Get("/", s.handleGetVenue)
				r.Post("/reports", s.handleSubmitReport)
				r.Get("/reports", s.handleListVenueReports)
				r.With(s.requireInternalKey).Post("/label", s.handleSetLabel)
			})
		})

		r.Get("/users/{userID}/reports", s.handleListUserReports)
		r.With(s.requireInternalKey).Delete("/reports/{reportID}", s.handleDeleteReport)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

// decodeJSON reads a bounded JSON body into dst. Malformed input is reported
// as errMalformedBody so it maps to 400 rather than 422.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(errMalformedBody, err)
	}
	return nil
}

type healthResponse struct {
	Status  string                     `json:"status"`
	Time    string                     `json:"time"`
	Storage string                     `json:"storage"`
	Engine  *reconcile.MetricsSnapshot `json:"engine,omitempty"`
}

// pinger is implemented by stores that can report their own health.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth reports liveness, storage reachability and engine counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "healthy",
		Time:    s.now().UTC().Format(time.RFC3339),
		Storage: "ok",
	}
	if p, ok := s.venues.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("storage ping failed", "error", err)
			resp.Status = "degraded"
			resp.Storage = "unavailable"
		}
	}
	if s.engine != nil {
		m := s.engine.Metrics()
		resp.Engine = &m
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, resp)
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
