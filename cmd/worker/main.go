package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olho-vivo/presenca/internal/api"
	"github.com/olho-vivo/presenca/internal/blob"
	"github.com/olho-vivo/presenca/internal/config"
	"github.com/olho-vivo/presenca/internal/database"
	"github.com/olho-vivo/presenca/internal/ingest"
	"github.com/olho-vivo/presenca/internal/metrics"
	"github.com/olho-vivo/presenca/internal/pipeline"
	"github.com/olho-vivo/presenca/internal/provider/deepface"
	"github.com/olho-vivo/presenca/internal/queue"
	"github.com/olho-vivo/presenca/internal/repository"
	"github.com/olho-vivo/presenca/internal/resolver"
	"github.com/olho-vivo/presenca/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting presence worker",
		slog.String("environment", cfg.Environment),
		slog.String("model", cfg.Model),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Blob store
	blobs, err := blob.New(ctx, blob.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}
	if err := blobs.EnsureBucket(ctx, cfg.RecognitionBucket); err != nil {
		logger.Warn("recognition bucket not ready", slog.Any("error", err))
	}

	// Repositories
	personRepo := repository.NewPersonRepository(pool)
	presenceRepo := repository.NewPresenceRepository(pool)
	frameRepo := repository.NewFrameRepository(pool)
	runRepo := repository.NewRunRepository(pool)

	// Embedding comparator
	comparator := deepface.NewProvider(deepface.Config{
		BaseURL:    cfg.DeepFaceURL,
		Timeout:    cfg.DeepFaceTimeout,
		Model:      cfg.Model,
		Detector:   "retinaface",
		RetryCount: 3,
	})

	// Resolver
	var index *resolver.Index
	if cfg.ANNIndexEnabled {
		index = resolver.NewIndex(cfg.ANNCandidates)
	}
	engine := resolver.NewEngine(personRepo, comparator, index, logger, resolver.Config{
		DistanceThreshold: cfg.SimilarityThreshold,
		RatioThreshold:    cfg.MatchRatioThreshold,
	})
	if err := engine.Warm(ctx); err != nil {
		return fmt.Errorf("failed to warm resolver: %w", err)
	}

	// Queue
	publisher := queue.NewPublisher(pool, cfg.QueueMaxAttempts)

	recognitionStage := pipeline.NewRecognitionStage(blobs, comparator, engine, publisher, logger, pipeline.RecognitionConfig{
		DetectionsBucket:  cfg.DetectionsBucket,
		RecognitionBucket: cfg.RecognitionBucket,
		NextTopic:         queue.TopicRecognitions,
	})
	persistenceStage := pipeline.NewPersistenceStage(runRepo, frameRepo, presenceRepo, logger, cfg.Model)

	recognitionConsumer := queue.NewConsumer(pool, logger, queue.ConsumerConfig{
		Topic:          queue.TopicDetections,
		Prefetch:       cfg.QueuePrefetch,
		PollInterval:   cfg.QueuePollInterval,
		HandlerTimeout: cfg.HandlerTimeout,
	}, recognitionStage.Handle)
	persistenceConsumer := queue.NewConsumer(pool, logger, queue.ConsumerConfig{
		Topic:          queue.TopicRecognitions,
		Prefetch:       cfg.QueuePrefetch,
		PollInterval:   cfg.QueuePollInterval,
		HandlerTimeout: cfg.HandlerTimeout,
	}, persistenceStage.Handle)

	go func() { _ = recognitionConsumer.Run(ctx) }()
	go func() { _ = persistenceConsumer.Run(ctx) }()

	// MQTT ingest bridge
	if cfg.MQTTEnabled {
		bridge := ingest.NewBridge(ingest.Config{
			Broker:     cfg.MQTTBroker,
			Port:       cfg.MQTTPort,
			ClientID:   cfg.MQTTClientID,
			Username:   cfg.MQTTUsername,
			Password:   cfg.MQTTPassword,
			Topic:      cfg.MQTTTopic,
			QueueTopic: queue.TopicDetections,
		}, publisher, logger)
		if err := bridge.Start(ctx); err != nil {
			return fmt.Errorf("failed to start mqtt bridge: %w", err)
		}
		defer bridge.Stop()
	}

	// Metrics engine and service
	metricsEngine := metrics.NewEngine(runRepo, presenceRepo, personRepo, frameRepo, logger)
	svc := service.New(comparator, engine, persistenceStage, metricsEngine, runRepo, presenceRepo, logger)

	// Ops API
	router := api.NewRouter(logger, &api.Dependencies{
		Service: svc,
		DB:      pool,
	})
	router.Setup()

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down...")
	if err := router.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	logger.Info("worker stopped")

	return nil
}
