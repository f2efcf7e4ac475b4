package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/eventmgr/apiserver/config"
	"github.com/eventmgr/apiserver/internal/auth"
	"github.com/eventmgr/apiserver/internal/db"
	"github.com/eventmgr/apiserver/internal/handlers"
	"github.com/eventmgr/apiserver/internal/mq"
	"github.com/eventmgr/apiserver/internal/notify"
	"github.com/eventmgr/apiserver/internal/services"
	"github.com/eventmgr/apiserver/internal/storage"
	"github.com/eventmgr/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and its owned resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     mq.Backend
	log        *slog.Logger
}

// New constructs a Server with its full dependency graph.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth)

	broker, err := NewBroker(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	var notifier services.ResetNotifier
	if broker != nil {
		notifier = notify.NewMailer(mq.New(broker), cfg.Notify)
	} else {
		log.Warn("no notification broker configured, reset emails disabled")
	}

	posters, err := newPosterStorage(ctx, cfg.Storage)
	if err != nil {
		closeAll(dbConn, broker)
		return nil, fmt.Errorf("connect poster storage: %w", err)
	}
	if posters == nil {
		log.Warn("no object storage configured, event posters disabled")
	}

	userRepo := store.NewUserRepository(dbConn)
	eventRepo := store.NewEventRepository(dbConn)
	attendeeRepo := store.NewAttendeeRepository(dbConn)

	userService := services.NewUserService(userRepo, tokens, cfg.Auth, notifier)
	eventService := services.NewEventService(eventRepo, attendeeRepo, posters, log)

	authHandler := handlers.NewAuthHandler(userService, log)
	userHandler := handlers.NewUserHandler(userService, eventService, log)
	requireAuth := handlers.RequireAuth(tokens.Verify)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Post("/login", authHandler.Login)
	router.Post("/forgot-password", authHandler.ForgotPassword)
	router.Post("/reset-password/{token}", authHandler.ResetPassword)

	router.Route("/users", func(r chi.Router) {
		r.Post("/", authHandler.Register)
		r.Get("/", userHandler.List)
		r.Get("/{userID}/attending", userHandler.Attending)
	})

	router.Route("/events", func(r chi.Router) {
		handlers.EventRouter(r, eventService, log, requireAuth)
	})

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

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		log:        log,
	}, nil
}

// NewBroker constructs the configured notification broker, or nil when
// none is configured. Shared with the worker command.
func NewBroker(ctx context.Context, cfg config.MQConfig) (mq.Backend, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		if cfg.RabbitMQ.URL == "" {
			return nil, nil
		}
		return mq.NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		if cfg.PubSub.ProjectID == "" {
			return nil, nil
		}
		return mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

func newPosterStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Backend {
	case "minio":
		if cfg.Minio.Endpoint == "" {
			return nil, nil
		}
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		if cfg.GCS.ProjectID == "" && cfg.GCS.CredentialsFile == "" {
			return nil, nil
		}
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	wrapped := storage.NewStorage(backend)
	if err := wrapped.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return wrapped, nil
}

func closeAll(dbConn *sql.DB, broker mq.Backend) {
	if broker != nil {
		_ = broker.Close()
	}
	if dbConn != nil {
		_ = dbConn.Close()
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	closeAll(s.db, s.broker)
	return s.httpServer.Close()
}
