package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/incidentdesk/apiserver/config"
	"github.com/incidentdesk/apiserver/internal/auth"
	"github.com/incidentdesk/apiserver/internal/db"
	"github.com/incidentdesk/apiserver/internal/handlers"
	"github.com/incidentdesk/apiserver/internal/metrics"
	"github.com/incidentdesk/apiserver/internal/mq"
	"github.com/incidentdesk/apiserver/internal/services"
	"github.com/incidentdesk/apiserver/internal/storage"
	"github.com/incidentdesk/apiserver/internal/store"
)

// Server wraps the HTTP server, router and background workers.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	tokens     *auth.TokenService
	logger     *slog.Logger
	workerCtx  context.Context
	cancel     context.CancelFunc
}

// New connects to the configured backends and builds the router.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	tokens, err := auth.NewTokenService(
		cfg.Auth.AccessSecret,
		cfg.Auth.RefreshSecret,
		auth.NewMemoryRefreshStore(),
		auth.WithAccessTTL(cfg.Auth.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTokenTTL),
	)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	archive, err := storage.New(ctx, cfg)
	if err != nil {
		if queue != nil {
			_ = queue.Close()
		}
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	incidentRepo := store.NewIncidentRepository(dbConn)
	auditRepo := store.NewAuditRepository(dbConn)

	auditOpts := []services.AuditOption{services.WithAuditLogger(log)}
	if queue != nil {
		auditOpts = append(auditOpts, services.WithPublisher(queue, cfg.MQ.Channel))
	}
	if archive != nil {
		auditOpts = append(auditOpts, services.WithArchive(archive, cfg.Archive.Prefix))
	}

	userService := services.NewUserService(userRepo)
	incidentService := services.NewIncidentService(incidentRepo)
	auditService := services.NewAuditService(auditRepo, userRepo, auditOpts...)
	gate := handlers.NewGate(tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(log),
		middleware.Recoverer,
		metrics.Instrument,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/health", handlers.Health(dbConn))
	router.Handle("/metrics", metrics.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, tokens, auditService, gate, handlers.LoginLimit{
			PerMinute: cfg.Auth.LoginRatePerMinute,
			Burst:     cfg.Auth.LoginBurst,
		})
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, auditService, gate)
	})
	router.Route("/incidents", func(r chi.Router) {
		handlers.IncidentRouter(r, incidentService, auditService, gate)
	})
	router.Route("/history", func(r chi.Router) {
		handlers.HistoryRouter(r, auditService, gate)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 5001
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		tokens:     tokens,
		logger:     log,
		workerCtx:  workerCtx,
		cancel:     cancel,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the refresh token janitor and serves HTTP until Shutdown.
func (s *Server) Start() error {
	go runRefreshJanitor(s.workerCtx, s.tokens, refreshJanitorInterval, s.logger)

	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, stops background work and closes the
// backends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		if qerr := s.queue.Close(); qerr != nil {
			s.logger.Warn("close message queue", "error", qerr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
