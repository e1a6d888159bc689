package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/sma-scheduler/internal/repository"
	"github.com/noah-isme/sma-scheduler/internal/service"
	"github.com/noah-isme/sma-scheduler/pkg/cache"
	"github.com/noah-isme/sma-scheduler/pkg/config"
	"github.com/noah-isme/sma-scheduler/pkg/database"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
	"github.com/noah-isme/sma-scheduler/pkg/jobs"
	"github.com/noah-isme/sma-scheduler/pkg/logger"
	"github.com/noah-isme/sma-scheduler/pkg/messaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		sugar.Fatalw("database unavailable", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Scheduler.CacheEnabled {
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			sugar.Warnw("redis unavailable, comparison cache disabled", "error", err)
		} else {
			repo := repository.NewCacheRepository(rdb, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Scheduler.CacheTTL, logr, cfg.Scheduler.CacheEnabled)

	broker, err := messaging.Dial(cfg.RabbitMQ.URL, logr)
	if err != nil {
		sugar.Fatalw("rabbitmq unavailable", "error", err)
	}
	defer broker.Close() //nolint:errcheck
	if err := broker.Declare(cfg.RabbitMQ.RequestQueue, cfg.RabbitMQ.ResultQueue); err != nil {
		sugar.Fatalw("declare queues", "error", err)
	}

	source := repository.NewSnapshotRepository(db)
	schedCfg := service.SchedulingConfigFromSettings(cfg.Scheduler)
	runs := service.NewSchedulingService(source, nil, metrics, nil, logr, schedCfg)
	compare := service.NewComparisonService(source, cacheSvc, metrics, nil, logr, schedCfg)
	w := newWorker(runs, compare, cacheSvc, broker.Publisher(cfg.RabbitMQ.ResultQueue), logr)

	queue := jobs.NewQueue("schedule", w.process, jobs.QueueConfig{
		Workers:    cfg.Worker.Concurrency,
		BufferSize: cfg.Worker.BufferSize,
		MaxRetries: cfg.Worker.Retries,
		RetryDelay: cfg.Worker.RetryDelay,
		Retryable:  func(err error) bool { return !appErrors.IsFatal(err) },
		OnGiveUp:   w.giveUp,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			sugar.Infow("metrics listening", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				sugar.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	deliveries, err := broker.Deliveries(cfg.RabbitMQ.RequestQueue, cfg.RabbitMQ.PrefetchCount)
	if err != nil {
		sugar.Fatalw("consume requests", "error", err)
	}
	sugar.Infow("worker started",
		"env", cfg.Env,
		"queue", cfg.RabbitMQ.RequestQueue,
		"workers", cfg.Worker.Concurrency,
		"cache", cacheSvc.Enabled(),
	)

	messaging.Consume(ctx, deliveries, w.accept(queue), logr)

	sugar.Infow("worker shutting down")
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("metrics server shutdown", "error", err)
		}
	}
}
