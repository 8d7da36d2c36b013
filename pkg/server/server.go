// Package server wires the stores, pipelines and routers into the profile
// registry HTTP server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/csfprofile/profile-registry/pkg/assessment"
	"github.com/csfprofile/profile-registry/pkg/audit"
	"github.com/csfprofile/profile-registry/pkg/authz"
	"github.com/csfprofile/profile-registry/pkg/config"
	"github.com/csfprofile/profile-registry/pkg/database"
	"github.com/csfprofile/profile-registry/pkg/framework"
)

// API base paths.
const (
	AssessmentBasePath = "/api/assessment/v1"
	FrameworkBasePath  = "/api/framework/v1"
	AuditBasePath      = "/api/audit/v1"
)

// Models returns every table owned by the server.
func Models() []any {
	models := []any{&audit.ChangeLogEntry{}}
	models = append(models, framework.Models()...)
	return append(models, assessment.Models()...)
}

// Server hosts the assessment, framework and change-log APIs.
type Server struct {
	cfg       *config.Config
	db        *gorm.DB
	logger    *slog.Logger
	startedAt time.Time
	identity  func(http.Handler) http.Handler

	frameworkStore *framework.Store
	resolver       *framework.Resolver
	changes        *audit.ChangeLogStore
	current        *assessment.CurrentStatePipeline
	target         *assessment.TargetStatePipeline

	mu    sync.RWMutex
	ready bool
}

// New creates a Server. It fails when the identity settings are unusable.
func New(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	identity, err := authz.Middleware(cfg.Identity, logger)
	if err != nil {
		return nil, fmt.Errorf("configure identity: %w", err)
	}

	frameworkStore := framework.NewStore(db)
	changes := audit.NewChangeLogStore(db)

	return &Server{
		cfg:            cfg,
		db:             db,
		logger:         logger,
		startedAt:      time.Now(),
		identity:       identity,
		frameworkStore: frameworkStore,
		resolver:       framework.NewResolver(frameworkStore, &cfg.Cache, logger),
		changes:        changes,
		current: assessment.NewCurrentStatePipeline(
			assessment.NewCurrentStateStore(db, changes), &cfg.Assessment, logger),
		target: assessment.NewTargetStatePipeline(
			assessment.NewTargetStateStore(db, changes), &cfg.Assessment, logger),
	}, nil
}

// Init creates the tables and, when a framework file is configured, loads
// the reference data. The server reports ready afterwards.
func (s *Server) Init(ctx context.Context) error {
	if err := database.Migrate(ctx, s.db, s.logger, Models()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if s.cfg.FrameworkFile != "" {
		if err := SeedFramework(ctx, s.frameworkStore, s.cfg.FrameworkFile, s.logger); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

// SeedFramework loads a framework YAML file into the reference tables.
func SeedFramework(ctx context.Context, store *framework.Store, path string, logger *slog.Logger) error {
	seed, err := framework.LoadSeedFile(path)
	if err != nil {
		return fmt.Errorf("load framework file: %w", err)
	}
	if err := store.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed framework: %w", err)
	}

	fns, cats, subs, err := store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("count framework rows: %w", err)
	}
	logger.Info("framework reference data loaded",
		"path", path,
		"functions", fns,
		"categories", cats,
		"subcategories", subs)
	return nil
}

// Handler builds the HTTP handler with the common middleware chain.
func (s *Server) Handler() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Remote-User", "X-Remote-Group", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(s.identity)
	r.Use(audit.OriginMiddleware())
	if s.cfg.Audit.Enabled {
		r.Use(audit.MutationLogMiddleware(&s.cfg.Audit, s.logger))
	}

	r.Get("/healthz", s.healthHandler)
	r.Get("/livez", s.healthHandler)
	r.Get("/readyz", s.readyHandler)

	r.Mount(AssessmentBasePath, assessment.Router(s.current, s.target))
	r.Mount(FrameworkBasePath, framework.Router(s.frameworkStore, s.resolver, s.logger))
	r.Mount(AuditBasePath, audit.Router(s.changes, &s.cfg.Audit, s.logger))

	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.Server.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("profile registry listening", "listen", s.cfg.Server.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("profile registry stopped")
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// readyHandler reports ready once Init has completed and the database
// answers a ping.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	initDone := s.ready
	s.mu.RUnlock()

	allReady := initDone
	dbStatus := map[string]string{"status": "up"}
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		dbStatus["status"] = "down"
		dbStatus["error"] = err.Error()
		allReady = false
	}

	initStatus := map[string]string{"status": "complete"}
	if !initDone {
		initStatus["status"] = "pending"
	}

	status, code := "ready", http.StatusOK
	if !allReady {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"components": map[string]any{
			"database":       dbStatus,
			"initialization": initStatus,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
