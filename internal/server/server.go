package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/royalty/internal/dashboard"
	"github.com/desertthunder/royalty/internal/insights"
	"github.com/desertthunder/royalty/internal/metrics"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/desertthunder/royalty/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Route binds a method pattern to a handler.
type Route struct {
	Pattern    string       // Pattern is a [http.ServeMux] pattern with method, e.g. "GET /api/streams/total"
	Handler    HandlerFunc  // Handler serves the route
	Public     bool         // Public routes skip artist authentication
	Middleware []Middleware // Middleware runs after authentication, in order
}

// Handler defines a group of routes served together.
type Handler interface {
	Routes() []Route // Routes returns the routes this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(pattern string, handler http.Handler)      // Handle registers a handler for a method pattern
	Handler(handler Handler)                          // Handler registers every route of a Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server wires repositories and services into the HTTP API.
type Server struct {
	config *shared.Config
	db     *sql.DB
	logger *log.Logger
	router *BasicRouter
	root   http.Handler
}

// New creates a server for db. A nil logger discards log output.
func New(config *shared.Config, db *sql.DB, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	artists := repositories.NewArtistRepository(db)
	uploads := repositories.NewUploadRepository(db)
	analytics := repositories.NewAnalyticsRepository(db)
	statements := repositories.NewStatementRepository(db)
	insightStore := repositories.NewInsightRepository(db)

	dash := dashboard.NewService(analytics, config.Ingest.DefaultCurrency)
	engine := tasks.NewImportEngine(tasks.NewStores(db), tasks.ImportOptionsFromConfig(config),
		shared.WithLogger(logger, "component", "import"))
	limiter := NewRateLimiter(config.Server.UploadRate, config.Server.UploadBurst)
	auth := Authenticate(artists)

	router := NewBasicRouter(auth)
	router.Use(
		RequestLogger(logger),
		Recover(logger),
		Metrics(),
	)

	router.Handler(&systemHandler{db: db})
	router.Handler(&artistHandler{artists: artists, stats: dash})
	router.Handler(&analyticsHandler{dashboard: dash})
	router.Handler(&uploadHandler{
		uploads:  uploads,
		engine:   engine,
		limiter:  limiter,
		maxBytes: int64(config.Server.MaxUploadMB) << 20,
	})
	router.Handler(&dataHandler{statements: statements, analytics: analytics, insights: insightStore})
	router.Handler(&insightHandler{service: insights.NewService(insightStore, logger)})

	// CORS wraps the whole router so preflight requests are answered before route matching.
	root := CORS(config.Server.CORSOrigins)(router)

	return &Server{config: config, db: db, logger: logger, router: router, root: root}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.root.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeoutSeconds) * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// systemHandler serves liveness and metrics.
type systemHandler struct {
	db *sql.DB
}

func (h *systemHandler) Routes() []Route {
	return []Route{
		{Pattern: "GET /healthz", Handler: h.health, Public: true},
		{Pattern: "GET /metrics", Handler: Wrap(metrics.Handler()), Public: true},
	}
}

func (h *systemHandler) health(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
	}
	return WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}
