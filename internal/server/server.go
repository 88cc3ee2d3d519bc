package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/infectwatch/apiserver/config"
	"github.com/infectwatch/apiserver/internal/db"
	"github.com/infectwatch/apiserver/internal/dynamo"
	"github.com/infectwatch/apiserver/internal/handlers"
	"github.com/infectwatch/apiserver/internal/logging"
	"github.com/infectwatch/apiserver/internal/mq"
	"github.com/infectwatch/apiserver/internal/services"
	"github.com/infectwatch/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger
	closers    []func() error
}

// Repositories are the storage dependencies of the router.
type Repositories struct {
	Users    services.UserRepository
	Sessions services.SessionRepository
}

// New connects the configured store and message queue and builds the server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	repos, closeStore, err := openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	var publisher services.LoginPublisher
	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	if queue != nil {
		closers = append(closers, queue.Close)
		publisher = mq.NewLoginEvents(queue, cfg.MQ.LoginChannel)
	}

	router := NewRouter(cfg, repos, publisher, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.InfoContext(ctx, "server configured",
		"port", port, "store", cfg.StoreBackend, "mq", cfg.MQ.Backend)

	return &Server{
		httpServer: httpServer,
		router:     router,
		logger:     logger,
		closers:    closers,
	}, nil
}

// NewRouter wires services and handlers onto a chi router.
func NewRouter(cfg config.Config, repos Repositories, publisher services.LoginPublisher, logger *slog.Logger) *chi.Mux {
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	opts := []services.AuthOption{services.WithLogger(logger)}
	if publisher != nil {
		opts = append(opts, services.WithLoginPublisher(publisher))
	}
	authService := services.NewAuthService(repos.Users, repos.Sessions, tokens, opts...)
	userService := services.NewUserService(repos.Users)
	sessionService := services.NewSessionService(repos.Sessions)

	authMiddleware := handlers.RequireAuth(authService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.RequestLogger(logger),
		middleware.Timeout(60*time.Second),
	)
	if cfg.CORSOrigin != "" {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{cfg.CORSOrigin},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Healthz)
		handlers.AuthRouter(r, authService, logger, cfg.AuthRateLimit)
		handlers.ProfileRouter(r, userService, sessionService, logger, authMiddleware)
	})

	return router
}

func openRepositories(ctx context.Context, cfg config.Config) (Repositories, func() error, error) {
	switch cfg.StoreBackend {
	case "", config.StoreBackendDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.Dynamo)
		if err != nil {
			return Repositories{}, nil, err
		}
		return Repositories{
			Users:    store.NewDynamoUserRepository(client, cfg.Dynamo.UsersTable),
			Sessions: store.NewDynamoSessionRepository(client, cfg.Dynamo.SessionsTable, cfg.Dynamo.EmailIndex),
		}, nil, nil
	case config.StoreBackendPostgres:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return Repositories{}, nil, fmt.Errorf("open postgres: %w", err)
		}
		return Repositories{
			Users:    store.NewUserRepository(conn),
			Sessions: store.NewSessionRepository(conn),
		}, conn.Close, nil
	case config.StoreBackendMemory:
		return Repositories{
			Users:    store.NewMemoryUserRepository(),
			Sessions: store.NewMemorySessionRepository(),
		}, nil, nil
	default:
		return Repositories{}, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown attempts a graceful shutdown and releases backend connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	for _, c := range s.closers {
		_ = c()
	}
	return err
}
