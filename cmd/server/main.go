package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hperssn/mockinterview/internal/auth"
	"github.com/hperssn/mockinterview/internal/config"
	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/http"
	"github.com/hperssn/mockinterview/internal/metrics"
	"github.com/hperssn/mockinterview/internal/runner"
	"github.com/hperssn/mockinterview/internal/scoring"
	"github.com/hperssn/mockinterview/internal/storage"
)

type deps struct {
	manager  *runner.SessionManager
	repo     storage.Repository
	auth     *auth.Service
	metrics  *metrics.Metrics
	limiter  *httpapi.RateLimiter
	defaults config.InterviewConfig
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	setupLogging(cfg.Log)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func run(cfg *config.Config) error {
	catalog := domain.DefaultCatalog()
	if cfg.Interview.CatalogPath != "" {
		loaded, err := domain.LoadCatalog(cfg.Interview.CatalogPath)
		if err != nil {
			return fmt.Errorf("load question catalog: %w", err)
		}
		catalog = loaded
		log.Info().Str("path", cfg.Interview.CatalogPath).Msg("Loaded question catalog")
	}

	repo, err := openRepository(cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()

	m := metrics.NewMetrics()

	recorder := storage.NewRecorder(repo, storage.DefaultQueueSize)
	recorder.SetOnFailure(func(kind string, err error) {
		m.IncrementPersistenceFailures()
	})
	defer recorder.Close()

	manager := runner.NewSessionManager(runner.Options{
		Catalog:          catalog,
		Scorer:           scoring.NewPlaceholderScorer(nil, cfg.Scoring.MinLatency, cfg.Scoring.MaxLatency),
		Recorder:         recorder,
		Metrics:          m,
		AutoAdvanceDelay: cfg.Interview.AutoAdvanceDelay,
	})
	defer manager.Close()

	if cfg.DefaultSecret() {
		log.Warn().Msg("JWT_SECRET is not set, using the development default")
	}

	router := newRouter(deps{
		manager:  manager,
		repo:     repo,
		auth:     auth.NewService(repo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		metrics:  m,
		limiter:  httpapi.NewRateLimiter(cfg.Auth.RateLimit, time.Minute),
		defaults: cfg.Interview,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("db", cfg.Database.Driver).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openRepository(cfg config.DatabaseConfig) (storage.Repository, error) {
	switch cfg.Driver {
	case "postgres":
		repo, err := storage.NewPostgresRepository(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return repo, nil
	default:
		repo, err := storage.NewSQLiteRepository(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return repo, nil
	}
}

func newRouter(d deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpapi.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(d.limiter.Limit).Post("/register", register(d.auth))
			r.With(d.limiter.Limit).Post("/login", login(d.auth))
			r.With(RequireToken(d.auth)).Get("/verify", verify(d.auth))
		})

		r.Get("/metrics", metricsSnapshot(d.metrics))

		r.Route("/interview", func(r chi.Router) {
			r.Use(RequireToken(d.auth))

			r.Post("/start", startInterview(d.manager, d.defaults))
			r.Get("/history", interviewHistory(d.repo))

			r.Route("/current", func(r chi.Router) {
				r.Get("/", currentInterview(d.manager))
				r.Post("/response", submitResponse(d.manager))
				r.Post("/skip", skipQuestion(d.manager))
				r.Post("/next", nextQuestion(d.manager))
				r.Post("/finish", finishInterview(d.manager))
				r.Post("/end", endInterview(d.manager))
				r.Get("/summary", interviewSummary(d.manager))
				r.Get("/report", interviewReport(d.manager))
				r.Get("/events", httpapi.StreamInterviewEvents(d.manager, GetUserId))
			})

			r.Get("/{sessionId}", storedInterview(d.repo))
		})
	})

	return r
}
