// Package server is the composition root: it opens the store, builds the
// services and handlers, mounts the routes and runs the HTTP server with its
// background workers.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  → sqlite.DB (implements every repository interface)
//	  → services (TaskService, SubmissionService, ...)
//	  → handlers
//	  → chi router wrapped in CORS
//
// Handlers never see the store and services never see HTTP.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	gorillahandlers "github.com/gorilla/handlers"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/climate-crew/internal/auth"
	"github.com/sakif/climate-crew/internal/config"
	"github.com/sakif/climate-crew/internal/feed"
	"github.com/sakif/climate-crew/internal/handler"
	"github.com/sakif/climate-crew/internal/metrics"
	"github.com/sakif/climate-crew/internal/middleware"
	sqliteRepo "github.com/sakif/climate-crew/internal/repository/sqlite"
	"github.com/sakif/climate-crew/internal/service"
	"github.com/sakif/climate-crew/internal/taskgen"
)

// sweepInterval is how often idle feed sessions and rate-limit buckets are
// dropped.
const sweepInterval = time.Minute

// Server owns the store connection and every goroutine it starts. Serve
// releases all of them before returning.
type Server struct {
	router   *chi.Mux
	handler  http.Handler
	config   config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	metrics  *metrics.Metrics
	sessions *feed.Sessions
	limiter  *middleware.RateLimiter
}

// New opens the store and wires everything. Close (or Serve) must be called
// to release it.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.Database.Path, cfg.Database.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}
	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler is the full HTTP stack, CORS included. Tests drive it directly.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) setupRoutes() error {
	cfg := s.config

	// === Auth ===
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = rand.Text()
		s.logger.Warn("no JWT secret configured, using a random one; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService()

	// === Task generator (optional) ===
	taskOpts := []service.TaskOption{
		service.WithReward(cfg.Tasks.Reward),
		service.WithTaskMetrics(s.metrics),
	}
	var news handler.NewsSource
	if cfg.TaskGen.URL != "" {
		gen, err := taskgen.New(cfg.TaskGen.URL, cfg.TaskGen.APIKey, s.logger,
			taskgen.WithTimeout(cfg.TaskGen.Timeout))
		if err != nil {
			return err
		}
		taskOpts = append(taskOpts, service.WithGenerator(s.db, gen))
		news = gen
	} else {
		s.logger.Info("task generator not configured; refresh and news endpoints will answer 503")
	}

	// === Services ===
	tasks := service.NewTaskService(s.db, s.logger, taskOpts...)
	subs := service.NewSubmissionService(s.db, tasks, s.metrics, s.logger)
	users := service.NewUserService(s.db, s.db, tokens, passwords, s.metrics, s.logger)
	board := service.NewLeaderboardService(s.db, s.logger)
	profiles := service.NewProfileService(s.db, s.logger)

	s.sessions = feed.NewSessions(subs, cfg.Feed.SessionTTL)
	s.limiter = middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst,
		sweepInterval, 10*time.Minute, s.logger)
	s.limiter.OnReject = s.metrics.RateLimited

	// === Handlers ===
	authH := handler.NewAuthHandler(users, cfg.Auth.TokenTTL, cfg.Server.SecureCookies, s.logger)
	taskH := handler.NewTaskHandler(tasks, s.logger)
	subH := handler.NewSubmissionHandler(subs, s.logger)
	boardH := handler.NewLeaderboardHandler(board, subs, s.logger)
	feedH := handler.NewFeedHandler(s.sessions, s.logger)
	profileH := handler.NewProfileHandler(profiles, s.logger)
	newsH := handler.NewNewsHandler(news, s.logger)

	// === Global middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.Health(s.db, s.logger))
	s.router.Handle("/metrics", s.metrics.Handler())

	requireAuth := auth.RequireAuth(tokens)
	limited := s.limiter.Middleware

	s.router.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/auth/register", authH.HandleRegister)
		r.Post("/auth/login", authH.HandleLogin)
		r.Post("/auth/logout", authH.HandleLogout)
		r.Get("/leaderboard", boardH.HandleLeaderboard)
		r.Get("/map", boardH.HandleMap)
		r.Get("/news", newsH.HandleNews)
		r.Get("/submissions/{id}", subH.HandleGet)
		r.Get("/submissions/{id}/image", subH.HandleImage)
		r.With(auth.OptionalAuth(tokens)).Get("/submissions", subH.HandleList)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", authH.HandleMe)

			r.Get("/me/task", taskH.HandleGet)
			r.Put("/me/task", taskH.HandleAssign)
			r.Post("/me/task/complete", taskH.HandleComplete)
			r.Post("/me/task/refresh", taskH.HandleRefresh)
			r.Get("/me/stats", taskH.HandleStats)
			r.Get("/me/profile", profileH.HandleGet)
			r.Patch("/me/profile", profileH.HandlePatch)

			r.With(limited).Post("/submissions", subH.HandleCreate)
			r.With(limited).Post("/submissions/complete", subH.HandleSubmitForTask)
			r.With(limited).Post("/submissions/{id}/upvote", subH.HandleUpvote)

			r.Get("/feed", feedH.HandleState)
			r.Post("/feed/next", feedH.HandleNext)
			r.Post("/feed/prev", feedH.HandlePrev)
			r.Post("/feed/toggle", feedH.HandleToggle)
			r.Post("/feed/reload", feedH.HandleReload)
			r.With(limited).Post("/feed/upvote/{id}", feedH.HandleUpvote)
		})
	})

	corsOpts := []gorillahandlers.CORSOption{
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillahandlers.ExposedHeaders([]string{"Content-Length", "Retry-After", "X-Request-Id"}),
		gorillahandlers.AllowCredentials(),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		corsOpts = append(corsOpts, gorillahandlers.AllowedOrigins(cfg.Server.CORSOrigins))
	}
	s.handler = gorillahandlers.CORS(corsOpts...)(s.router)
	return nil
}

// Run listens on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Server.Port))
	if err != nil {
		s.Close()
		return fmt.Errorf("listening: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln plus the session sweeper until ctx is
// cancelled or the server fails, then shuts down gracefully and closes the
// store.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("database", s.config.Database.Path),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.sessions.Run(gctx, sweepInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

// Close stops the rate limiter and closes the store. It is safe to call
// after Serve has returned.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.db.Close()
}
