package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"placementai/config"
	"placementai/db"
	phttp "placementai/http"
	"placementai/inference"
	"placementai/ml"
	"placementai/monitoring"
	"placementai/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "placementai: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config; a missing default config.yaml means defaults only
	configPath := config.GetConfigPath()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) && configPath == config.DefaultPath {
		configPath = ""
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := monitoring.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	// 2. Initialize audit store
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	// 3. Load the served model; without one predictions answer 503
	_, artifact, err := ml.LoadModel(cfg.ML.ModelType, cfg.ML.ModelPath)
	if err != nil {
		logger.Warn("model not loaded, predictions unavailable until an artifact is written",
			zap.String("path", cfg.ML.ModelPath), zap.Error(err))
	}
	service, err := inference.NewService(artifact,
		inference.WithLogger(logger),
		inference.WithCacheSize(cfg.ML.CacheSize))
	if err != nil {
		return fmt.Errorf("create inference service: %w", err)
	}

	metrics := monitoring.NewMetricsCollector()
	events := monitoring.NewEventHub(cfg.HTTP.AllowedOrigins, logger)

	retrainer := scheduler.NewRetrainer(scheduler.RetrainerConfig{
		Train:       cfg.ML.TrainConfig(),
		Samples:     cfg.ML.Samples,
		ModelPath:   cfg.ML.ModelPath,
		DatasetPath: cfg.ML.DatasetPath,
	}, service, logger)
	retrainer.Recorder = store
	retrainer.Publisher = events
	retrainer.Metrics = metrics

	server := phttp.NewServer(phttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.Timeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		RateLimit:      cfg.HTTP.RateLimit.RPS,
		RateBurst:      cfg.HTTP.RateLimit.Burst,
	}, phttp.Dependencies{
		Predictor: service,
		Trainer:   retrainer,
		Store:     store,
		Metrics:   metrics,
		Events:    events,
		Logger:    logger,
	})

	// bind before starting workers so a busy port fails fast
	listener, err := net.Listen("tcp", server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.Addr(), err)
	}

	// 4. Run everything until a signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		events.Run(gctx)
		return nil
	})
	g.Go(func() error {
		metrics.Run(gctx, 15*time.Second)
		return nil
	})

	if cfg.ML.WatchModel {
		reloader := inference.NewReloader(cfg.ML.ModelPath, service, logger)
		reloader.OnReload = func(a *ml.ModelArtifact) {
			metrics.IncrCounter(monitoring.MetricModelReloads, 1, nil)
			var meta interface{}
			if a.Metadata != nil {
				meta = a.Metadata
			}
			if err := events.Publish(monitoring.EventModelReloaded, meta); err != nil {
				logger.Warn("failed to publish reload event", zap.Error(err))
			}
		}
		g.Go(func() error {
			return reloader.Run(gctx)
		})
	}

	if cfg.ML.RetrainSchedule != "" {
		if err := retrainer.Start(cfg.ML.RetrainSchedule); err != nil {
			return fmt.Errorf("start retraining schedule: %w", err)
		}
		defer retrainer.Stop()
	}

	g.Go(func() error {
		return server.Serve(listener)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return server.Stop(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("exiting")
	return nil
}
