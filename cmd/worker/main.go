package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cinegen/internal/adapter/repo"
	"cinegen/internal/domain"
	"cinegen/internal/infra"
	"cinegen/internal/personas"
	"cinegen/internal/providers/kling"
	"cinegen/internal/providers/sora"
	"cinegen/internal/providers/veo"
	"cinegen/internal/providers/video"
	"cinegen/internal/queue"
	"cinegen/internal/router"
	"cinegen/internal/storage"
	"cinegen/internal/store"
	"cinegen/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var jobStore domain.JobStore
	switch cfg.JobStoreBackend {
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: db connection failed")
		}
		defer pool.Close()
		pg := repo.NewJobStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("worker: ensure schema failed")
		}
		jobStore = pg
	default:
		// An in-memory store only makes sense when api and worker run in one
		// process; as a standalone binary it is for local smoke testing.
		jobStore = store.NewMemoryJobStore()
	}

	var jobQueue queue.Queue
	switch cfg.QueueBackend {
	case "nats":
		nq, err := queue.ConnectNATS(queue.NATSOptions{URL: cfg.NATSURL})
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: queue connection failed")
		}
		jobQueue = nq
	default:
		jobQueue = queue.NewMemory()
	}
	defer jobQueue.Close()

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: storage init failed")
	}
	resolver := personas.NewDirectoryResolver(cfg.PersonasPath, logger)

	veoClient := veo.NewClient(veo.Options{
		AccessToken: cfg.GoogleAccessToken,
		ProjectID:   cfg.GoogleProjectID,
		Location:    cfg.GoogleLocation,
		Model:       cfg.VeoModel,
		Logger:      &logger,
	})
	generators := []video.Generator{
		veo.NewGenerator(veoClient),
		kling.New(kling.Options{
			AccessKey: cfg.KlingAccessKey,
			SecretKey: cfg.KlingSecretKey,
			BaseURL:   cfg.KlingBaseURL,
		}),
		sora.New(sora.Options{
			APIKey: cfg.SoraAPIKey,
			Model:  cfg.SoraModel,
		}),
	}
	providerRouter := router.New(logger, cfg.DefaultProvider, generators...)

	for _, desc := range providerRouter.Providers() {
		logger.Info().
			Str("provider", desc.Name).
			Str("model", desc.ModelID).
			Bool("available", desc.Available).
			Msg("worker: provider registered")
	}

	w := worker.New(jobQueue, jobStore, providerRouter, fileStore, resolver, logger, worker.Options{
		IdleBackoff:      cfg.WorkerIdleBackoff,
		OperationPoll:    cfg.OperationPoll,
		OperationTimeout: cfg.OperationTimeout,
	})

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: run failed")
	}
	logger.Info().Msg("worker stopped")
}
