// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — the composition root where every
// dependency is constructed and connected:
//
//	Config → sqlite.DB → storage.Store → analysis.Client
//	       → services → handlers → chi routes
//
// Keeping the wiring out of main.go makes the server testable (construct one
// without running a process) and keeps main minimal.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/sakif/datachat/internal/analysis"
	"github.com/sakif/datachat/internal/auth"
	"github.com/sakif/datachat/internal/handler"
	"github.com/sakif/datachat/internal/middleware"
	sqliteRepo "github.com/sakif/datachat/internal/repository/sqlite"
	"github.com/sakif/datachat/internal/service"
	"github.com/sakif/datachat/internal/storage"
)

// Rate limit policies. Two independent windows: a tight one on credential
// endpoints (brute-force), a looser one on questions (each ask costs the
// analysis service real compute).
const (
	authRateLimit  = 5
	queryRateLimit = 10
	rateWindow     = time.Minute
)

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port        int
	DBPath      string // path to the SQLite database file
	UploadDir   string // root of the per-user artifact sandboxes
	JWTSecret   string // HMAC signing secret; startup fails when empty
	AnalysisURL string // base URL of the analysis service
}

// Server owns the router and all long-lived resources.
// The database connection is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New wires the full dependency graph.
//
// FAIL-FAST ON THE SIGNING SECRET:
// NewTokenService rejects an empty or short secret, and that error aborts
// construction. A gateway that silently accepted unsigned tokens would be
// worse than one that refuses to start.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /health              → component health (public)
//	POST /api/auth/register   → create account          [rate: 5/min/IP]
//	POST /api/auth/login      → issue token             [rate: 5/min/IP]
//	GET  /api/me              → current user            [auth]
//	POST /api/datasets        → upload CSV              [auth]
//	GET  /api/datasets        → list own datasets       [auth]
//	POST /api/ask             → ask a question          [auth, rate: 10/min/IP]
//	GET  /api/history         → recent exchanges        [auth]
//
// MIDDLEWARE ORDER MATTERS: RealIP must run before the rate limiter so the
// window is keyed on the real client address, not the proxy's.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	store, err := storage.NewStore(s.config.UploadDir)
	if err != nil {
		return fmt.Errorf("creating artifact store: %w", err)
	}

	analysisClient := analysis.NewClient(s.config.AnalysisURL)

	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	datasetService := service.NewDatasetService(s.db, store, s.logger)
	queryService := service.NewQueryService(s.db, s.db, analysisClient, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	datasetHandler := handler.NewDatasetHandler(datasetService, s.logger)
	queryHandler := handler.NewQueryHandler(queryService)
	healthHandler := handler.NewHealthHandler(s.db, analysisClient)

	// Global middleware — runs on every request, in order.
	s.router.Use(chimiddleware.RequestID) // X-Request-ID for tracing
	s.router.Use(chimiddleware.RealIP)    // real client IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // panics become 500s, not crashes
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/health", healthHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Credential endpoints: public but tightly rate-limited.
		r.Group(func(r chi.Router) {
			r.Use(rateLimiter(authRateLimit))
			r.Post("/auth/register", authHandler.HandleRegister)
			r.Post("/auth/login", authHandler.HandleLogin)
		})

		// Everything else requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Post("/datasets", datasetHandler.HandleUpload)
			r.Get("/datasets", datasetHandler.HandleList)
			r.Get("/history", queryHandler.HandleHistory)

			// Ask gets its own window on top of auth.
			r.Group(func(r chi.Router) {
				r.Use(rateLimiter(queryRateLimit))
				r.Post("/ask", queryHandler.HandleAsk)
			})
		})
	})

	return nil
}

// rateLimiter builds a fixed-window per-IP limiter.
//
// The rejection body matches the ErrorResponse shape every other endpoint
// uses, and says only "slow down" — never how the limit is configured.
func rateLimiter(requests int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		rateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"too many requests, slow down"}`))
		}),
	)
}

// Start runs the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new connections
// 2. Wait for in-flight requests to finish (30s cap)
// 3. Close the database (flushes the WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second, // uploads can be slow on bad links
		WriteTimeout: 30 * time.Second, // must exceed the 10s analysis timeout
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("uploads", s.config.UploadDir),
			slog.String("analysisURL", s.config.AnalysisURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the configured router for httptest-based tests.
func (s *Server) Router() http.Handler {
	return s.router
}
