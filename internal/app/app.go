package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examdrill/exam-engine/internal/bank"
	"github.com/examdrill/exam-engine/internal/config"
	"github.com/examdrill/exam-engine/internal/logging"
	"github.com/examdrill/exam-engine/internal/pool"
	"github.com/examdrill/exam-engine/internal/server"
	"github.com/examdrill/exam-engine/internal/session"
	ws "github.com/examdrill/exam-engine/pkg/http/ws"
)

// Application aggregates shared infrastructure (bank, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis *redis.Client
	http  *http.Server
}

// New bootstraps config, logger, the question bank, the optional Redis
// snapshot store and the HTTP server. Bank and blueprint load failures
// degrade to an empty bank / nil blueprint with a logged warning; the
// service still comes up so the condition is user-visible.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	qbank, err := bank.Load(cfg.Bank.QuestionsPath)
	bankWarning := ""
	if err != nil {
		bankWarning = fmt.Sprintf("question bank unavailable: %v", err)
		logger.Warn().Err(err).Str("path", cfg.Bank.QuestionsPath).Msg("question bank load failed, serving empty bank")
	} else {
		logger.Info().Int("questions", qbank.Len()).Msg("question bank loaded")
	}

	blueprint, err := pool.LoadBlueprint(cfg.Bank.BlueprintPath)
	bpWarning := ""
	if err != nil {
		bpWarning = "no blueprint configured; exams use plain random assembly"
		logger.Warn().Err(err).Str("path", cfg.Bank.BlueprintPath).Msg("blueprint unavailable")
	}

	var redisClient *redis.Client
	var store session.SnapshotStore
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store = session.NewRedisStore(redisClient, cfg.Redis.SnapshotTTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis snapshot store enabled")
	} else {
		store = session.NewMemoryStore()
		logger.Info().Msg("no redis configured; progress snapshots are in-memory only")
	}

	sessions := session.NewManager(qbank, store, logger)
	builder := pool.NewBuilder(qbank, pool.BuilderOptions{})
	metrics := server.NewMetrics(prometheus.DefaultRegisterer)

	api := server.NewHandler(server.HandlerOptions{
		Bank:         qbank,
		BankWarning:  bankWarning,
		Blueprint:    blueprint,
		BPWarning:    bpWarning,
		Builder:      builder,
		Sessions:     sessions,
		ExamDefaults: cfg.Exam,
		Metrics:      metrics,
	}, logger)

	hub := ws.NewHub(logger)
	clock := server.NewClockHandler(api, hub, cfg.Exam.ClockInterval, logger)

	return &Application{
		cfg:    cfg,
		logger: logger,
		redis:  redisClient,
		http:   server.NewHTTPServer(cfg, api, clock),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
