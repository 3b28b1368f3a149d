package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/audio"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/calls"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/config"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/database"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/httpclient"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/kafka"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/feeds"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/observability/systemlog"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/reference"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/scheduler"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/transcription"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init()
	cfg := config.Load()

	logger.Log.Info("Starting Scheduler Service...")

	mgr := database.NewManager(cfg)
	ctx := context.Background()

	db, err := mgr.Postgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	if err := mgr.VerifySchema(ctx); err != nil {
		logger.Log.WithError(err).Fatal("Schema verification failed")
	}
	cache, err := mgr.Redis()
	if err != nil {
		logger.Log.WithError(err).Warn("Redis unavailable, feed tokens will be minted per process")
	}

	thresholds, err := audio.LoadThresholds(cfg.AudioTierConfigPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load audio tier thresholds")
	}
	tempDir := cfg.TempAudioDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "scanner-audio")
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		logger.Log.WithError(err).Fatal("Failed to create temp audio directory")
	}

	store, err := audio.NewStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to create object storage client")
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Log.WithError(err).Fatal("Failed to prepare audio bucket")
	}

	feedRepo := feeds.NewRepository(db)
	callRepo := calls.NewRepository(db)
	audit := systemlog.NewRecorder(db)

	tokens := feeds.NewTokenSource(feeds.Credentials{
		APIKey:   cfg.FeedAPIKey,
		APIKeyID: cfg.FeedAPIKeyID,
		AppID:    cfg.FeedAppID,
		TokenTTL: cfg.FeedTokenTTL,
	}, cache)
	client := feeds.NewClient(httpclient.New(cfg.FeedHTTPTimeout), cfg.FeedAPIBaseURL, tokens, feedRepo)
	poller := feeds.NewPoller(feedRepo, callRepo, client, audit)

	worker := audio.NewWorker(
		callRepo,
		store,
		audio.NewDownloader(httpclient.New(cfg.FeedHTTPTimeout)),
		audio.NewAnalyzer(cfg.AudioSampleRate),
		audio.NewConverter(cfg.AudioSampleRate, cfg.ConvertTimeoutFloor),
		audio.Options{
			BatchSize:      cfg.AudioWorkerBatchSize,
			MaxRetries:     cfg.AudioWorkerMaxRetries,
			RetryInterval:  cfg.AudioRetryInterval,
			StuckTimeout:   cfg.AudioStuckTimeout,
			TempDir:        tempDir,
			BucketPath:     cfg.AudioBucketPath,
			SampleRate:     cfg.AudioSampleRate,
			TargetLoudness: cfg.AudioTargetLoudness,
			Thresholds:     thresholds,
		},
	)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.TranscriptionTopic)
	dispatcher := transcription.NewDispatcher(
		transcription.NewRepository(db),
		producer,
		audit,
		transcription.Options{
			BatchSize:   cfg.TranscriptionBatchSize,
			MaxAgeHours: cfg.TranscriptionMaxAgeHours,
			RateDelay:   cfg.TranscriptionRateLimitDelay,
		},
	)

	refresher := reference.NewRefresher(client, reference.NewRepository(db))

	sched := scheduler.New(cfg.HealthFile)
	sched.Add("refresh_common", cfg.ReferenceInterval, true, refresher.RefreshCommon)
	sched.Add("run_ingest", cfg.IngestInterval, false, func(ctx context.Context) error {
		_, err := poller.RunIngestCycle(ctx)
		return err
	})
	sched.Add("audio_worker", cfg.AudioWorkerInterval, false, func(ctx context.Context) error {
		_, _, err := worker.ProcessPending(ctx)
		return err
	})
	sched.Add("transcription_dispatcher", cfg.DispatchInterval, false, func(ctx context.Context) error {
		_, err := dispatcher.DispatchPending(ctx)
		return err
	})

	health := scheduler.NewHealthServer(cfg.HealthHost, cfg.HealthPort, sched)
	health.Start()
	sched.Start(ctx)

	logger.Log.WithFields(map[string]interface{}{
		"ingest_interval":   cfg.IngestInterval.String(),
		"audio_interval":    cfg.AudioWorkerInterval.String(),
		"dispatch_interval": cfg.DispatchInterval.String(),
	}).Info("Scheduler Service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Scheduler Service...")
	sched.Shutdown(cfg.ShutdownTimeout)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := health.Stop(stopCtx); err != nil {
		logger.Log.WithError(err).Error("Health server forced to shutdown")
	}
	if err := producer.Close(); err != nil {
		logger.Log.WithError(err).Error("Failed to close Kafka producer")
	}
	if err := mgr.Close(); err != nil {
		logger.Log.WithError(err).Error("Failed to close database connections")
	}
	logger.Log.Info("Scheduler Service stopped")
}
