package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/soikot-shahriaar/server-maintenance-cms/config"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/db"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/handlers"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/logging"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/mq"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/services"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/session"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/storage"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/store"
)

// Deps are the collaborators the HTTP API is built from.
type Deps struct {
	Config   config.Config
	Logger   logging.Logger
	DB       handlers.Pinger
	Sessions *session.Manager
	Users    *services.UserService
	Logs     *services.LogService
	Exports  *services.ExportService
}

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        logging.Logger
	db         *sql.DB
	queue      *mq.MQ
}

// New connects every configured backend and builds the API.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var events services.EventPublisher
	if queue != nil {
		events = services.NewMQEventPublisher(queue, cfg.MQ.Channel)
		log.Info(ctx, "publishing log events", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		if queue != nil {
			_ = queue.Close()
		}
		return nil, err
	}
	var exportStore services.ObjectStore
	if objects != nil {
		exportStore = objects
		log.Info(ctx, "exports enabled", "backend", cfg.Storage.Backend, "bucket", objects.Bucket())
	}

	logRepo := store.NewMaintenanceLogRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)

	router := NewRouter(Deps{
		Config:   cfg,
		Logger:   log,
		DB:       dbConn,
		Sessions: sessions,
		Users:    services.NewUserService(userRepo, log),
		Logs:     services.NewLogService(logRepo, events, log),
		Exports:  services.NewExportService(logRepo, exportStore, log),
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
		log:        log,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// NewRouter mounts every route with the shared middleware chain.
func NewRouter(d Deps) *chi.Mux {
	pager := handlers.NewPager(d.Config.Pagination)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	if len(d.Config.CorsOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	router.Use(d.Sessions.Middleware)

	router.Get("/healthz", handlers.Healthz(d.DB))
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, d.Users, d.Sessions)
	})
	router.Route("/logs", func(r chi.Router) {
		handlers.LogRouter(r, handlers.NewLogHandler(d.Logs, d.Exports, d.Sessions, pager))
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(d.Users, pager))
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, then closes the queue and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
