package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/sw33tLie/metropolis/internal/utils"
	"github.com/sw33tLie/metropolis/pkg/export"
	"github.com/sw33tLie/metropolis/pkg/maps"
	"github.com/sw33tLie/metropolis/pkg/planner"
)

// Config wires the API to the planning components. Resolver and Routes may
// be nil, in which case the map endpoints answer 503.
type Config struct {
	Planner  *planner.Planner
	Resolver *maps.Resolver
	Routes   *maps.RouteBuilder
	ICS      export.ICSEncoder
	PDF      export.PDFEncoder

	// RatePerMinute limits each client IP on the LLM-backed endpoints.
	// Zero disables limiting.
	RatePerMinute int
	RateBurst     int

	Log *logrus.Logger
}

type Server struct {
	planner  *planner.Planner
	resolver *maps.Resolver
	routes   *maps.RouteBuilder
	ics      export.ICSEncoder
	pdf      export.PDFEncoder
	limiter  *rateLimiter
	log      *logrus.Logger
	now      func() time.Time
}

func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = utils.Log
	}
	return &Server{
		planner:  cfg.Planner,
		resolver: cfg.Resolver,
		routes:   cfg.Routes,
		ics:      cfg.ICS,
		pdf:      cfg.PDF,
		limiter:  newRateLimiter(cfg.RatePerMinute, cfg.RateBurst),
		log:      log,
		now:      time.Now,
	}
}

// Router registers every route at the root and again under /api.
func (s *Server) Router() *httprouter.Router {
	router := httprouter.New()
	for _, prefix := range []string{"", "/api"} {
		router.POST(prefix+"/generate-itinerary", s.limiter.Limit(s.handleGenerate))
		router.POST(prefix+"/recalculate-itinerary", s.limiter.Limit(s.handleRecalculate))
		router.GET(prefix+"/itinerary/:id", s.handleGet)
		router.GET(prefix+"/export-ics/:id", s.handleExportICS)
		router.GET(prefix+"/export-pdf/:id", s.handleExportPDF)
		router.POST(prefix+"/geocode-itinerary", s.handleGeocode)
		router.POST(prefix+"/get-route", s.handleRoute)
		router.GET(prefix+"/health", s.handleHealth)
		router.GET(prefix+"/budgets", s.handleBudgets)
	}
	return router
}

// Handler returns the router behind CORS, security headers and request logging.
func (s *Server) Handler() http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(s.Router())

	return s.logging(securityHeaders(corsHandler))
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      90 * time.Second, // synthesis can take most of a minute
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Metropolis API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutdown signal received, shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("Server stopped")
	return nil
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}
