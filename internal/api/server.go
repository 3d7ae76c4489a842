package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/gplay-aso/internal/cache"
	"github.com/JakeFAU/gplay-aso/internal/config"
	collyfetcher "github.com/JakeFAU/gplay-aso/internal/fetcher/colly"
	"github.com/JakeFAU/gplay-aso/internal/metrics"
	"github.com/JakeFAU/gplay-aso/internal/scraper"
)

// Scraper is the subset of *scraper.Scraper the handlers call.
type Scraper interface {
	Analyze(ctx context.Context, appID string) (scraper.Result, error)
	GetField(ctx context.Context, appID, name string) (any, error)
	GetFields(ctx context.Context, appID string, names []string) (scraper.Fields, error)
	CacheStats() (cache.Stats, bool)
}

// IDGenerator produces request identifiers.
type IDGenerator interface {
	MustNewID() string
}

// Server wires HTTP handlers to the scraper.
type Server struct {
	router  chi.Router
	scraper Scraper
	idGen   IDGenerator
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(s Scraper, idGen IDGenerator, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		scraper: s,
		idGen:   idGen,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(srv.requestIDMiddleware)
	r.Use(srv.loggingMiddleware)
	r.Use(srv.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestBudget(cfg.HTTP)))

	r.Get("/healthz", srv.healthz)
	r.Get("/readyz", srv.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/cache/stats", srv.cacheStats)
		r.Route("/apps/{app_id}", func(r chi.Router) {
			r.Get("/", srv.analyze)
			r.Get("/fields", srv.getFields)
			r.Get("/fields/{field}", srv.getField)
		})
	})

	srv.router = r
	return srv
}

// requestBudget bounds one API request: every attempt may run for the full
// fetch timeout and be followed by the longest retry wait.
func requestBudget(h config.HTTPConfig) time.Duration {
	wait := max(h.RateLimitDelay, collyfetcher.MaxRetryAfter)
	return (h.Timeout + wait) * time.Duration(h.Retries+1)
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "app_id")
	result, err := s.scraper.Analyze(r.Context(), appID)
	if err != nil {
		s.writeScraperError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getField(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "app_id")
	name := chi.URLParam(r, "field")
	value, err := s.scraper.GetField(r.Context(), appID, name)
	if err != nil {
		s.writeScraperError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"app_id": appID, "field": name, "value": value})
}

func (s *Server) getFields(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "app_id")
	names := r.URL.Query()["name"]
	if len(names) == 0 {
		writeError(w, http.StatusBadRequest, "at least one name query parameter required")
		return
	}
	fields, err := s.scraper.GetFields(r.Context(), appID, names)
	if err != nil {
		s.writeScraperError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"app_id": appID, "fields": fields})
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	stats, ok := s.scraper.CacheStats()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "stats": stats})
}

// statusFor maps scraper failures onto HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, scraper.ErrFieldNotFound) {
		return http.StatusNotFound
	}
	kind, ok := scraper.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case scraper.KindInvalidAppID:
		return http.StatusBadRequest
	case scraper.KindAppNotFound:
		return http.StatusNotFound
	case scraper.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeScraperError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind, _ := scraper.KindOf(err)
	s.logger.Warn("scraper request failed",
		zap.String("request_id", requestID(r.Context())),
		zap.String("app_id", chi.URLParam(r, "app_id")),
		zap.String("kind", string(kind)),
		zap.Int("status", status),
		zap.Error(err),
	)
	payload := map[string]string{"error": err.Error()}
	if kind != "" {
		payload["kind"] = string(kind)
	}
	writeJSON(w, status, payload)
}

// writeJSON encodes before writing the status so an unencodable payload
// becomes a 500 rather than a truncated 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("encode JSON response failed", zap.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
