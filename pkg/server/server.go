package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"watchlist/pkg/auth"
	"watchlist/pkg/config"
	"watchlist/pkg/handlers"
	"watchlist/pkg/metrics"
	"watchlist/pkg/store"

	"github.com/gin-gonic/gin"
)

// Server wires the router to its collaborators. It is built once in main.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	auth    *auth.Auth
	metrics *metrics.Metrics
	log     *slog.Logger
	router  *gin.Engine
}

// New builds the gin engine with middleware and routes installed
func New(cfg *config.Config, st *store.Store, log *slog.Logger) *Server {
	if cfg.SlogLevel() != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		store:   st,
		auth:    auth.New(&cfg.Auth, auth.NewMemorySessionStore(), st.User),
		metrics: metrics.New(),
		log:     log,
		router:  gin.New(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	h := handlers.New(s.cfg, s.store, s.auth, s.metrics, s.log)

	s.router.Use(
		RequestLogger(s.log),
		s.metrics.Middleware(),
		gin.CustomRecovery(h.Recover),
		s.auth.Middleware(),
	)
	s.router.NoRoute(h.NotFound)

	// Anonymous pages. POST / checks login itself.
	s.router.GET("/", h.Index)
	s.router.POST("/", h.CreateMovie)
	s.router.GET("/login", h.LoginPage)
	s.router.POST("/login", h.Login)
	s.router.GET("/logout", h.Logout)

	protected := s.router.Group("/")
	protected.Use(s.auth.RequireLogin("/login", handlers.MsgLoginRequired))
	{
		protected.GET("/movie/edit/:id", h.EditMovie)
		protected.POST("/movie/edit/:id", h.UpdateMovie)
		protected.POST("/movie/delete/:id", h.DeleteMovie)
		protected.GET("/settings", h.Settings)
		protected.POST("/settings", h.UpdateSettings)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler serves /metrics for the private listener.
func (s *Server) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// Run serves the web listener, and the metrics listener when configured,
// until ctx is cancelled. Both are then shut down gracefully.
func (s *Server) Run(ctx context.Context) error {
	servers := []*http.Server{{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if addr := s.cfg.Server.MetricsAddr; addr != "" {
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           s.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			s.log.Info("listening", "addr", "http://"+srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}
