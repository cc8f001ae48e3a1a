package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/audit"
	"github.com/akquise-tool/internal/cache"
	"github.com/akquise-tool/internal/engine"
	"github.com/akquise-tool/internal/resultcache"
	"github.com/akquise-tool/internal/web/handlers"
	"github.com/akquise-tool/internal/web/middleware"
)

// Deps are the collaborators the handlers serve from. Engine and Store are
// required; the rest degrade gracefully when nil.
type Deps struct {
	Engine    *engine.Engine
	Store     *cache.Store
	Tracker   *audit.Tracker
	Refresher handlers.Refresher
	Cache     *resultcache.Cache
	Gatherer  prometheus.Gatherer
}

// Server is the HTTP front of the matching engine.
type Server struct {
	config     Config
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a server with all routes and middleware wired.
func NewServer(config Config, deps Deps) *Server {
	s := &Server{config: config}
	s.setupRoutes(deps)

	// CORS wraps outside the router so preflight OPTIONS requests are
	// answered before route matching.
	var handler http.Handler = s.router
	handler = middleware.RequestLogging()(handler)
	handler = middleware.CORS(config.AllowedOrigin)(handler)

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(deps Deps) {
	s.router = mux.NewRouter()

	apiHandler := &handlers.APIHandler{
		Store:     deps.Store,
		Tracker:   deps.Tracker,
		Refresher: deps.Refresher,
		StartedAt: time.Now(),
	}
	searchHandler := &handlers.SearchHandler{Engine: deps.Engine, Cache: deps.Cache}
	datasetsHandler := &handlers.DatasetsHandler{Engine: deps.Engine}

	api := s.router.PathPrefix("/api").Subrouter()

	// Search endpoints
	api.HandleFunc("/customers/search", searchHandler.SearchCustomers).Methods("GET")
	api.HandleFunc("/datasets/search", searchHandler.SearchDatasets).Methods("GET")

	// Dataset creation and lock preview
	api.HandleFunc("/datasets/check", datasetsHandler.CheckLock).Methods("GET")
	api.HandleFunc("/datasets/export", datasetsHandler.Export).Methods("GET")
	api.HandleFunc("/datasets", datasetsHandler.Create).Methods("POST")

	// Operational endpoints
	api.HandleFunc("/health", apiHandler.Health).Methods("GET")
	api.HandleFunc("/stats", apiHandler.GetStats).Methods("GET")
	api.HandleFunc("/refresh", apiHandler.TriggerRefresh).Methods("POST")

	if deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api.Use(middleware.Authentication(s.config.APIKey))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
