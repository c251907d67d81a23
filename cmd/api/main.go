package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cinegen/internal/adapter/repo"
	"cinegen/internal/domain"
	"cinegen/internal/http/handlers"
	httpapi "cinegen/internal/http/httpapi"
	"cinegen/internal/infra"
	"cinegen/internal/providers/kling"
	"cinegen/internal/providers/sora"
	"cinegen/internal/providers/veo"
	"cinegen/internal/providers/video"
	"cinegen/internal/queue"
	"cinegen/internal/router"
	"cinegen/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	var jobStore domain.JobStore
	switch cfg.JobStoreBackend {
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		pg := repo.NewJobStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		jobStore = pg
	default:
		jobStore = store.NewMemoryJobStore()
	}

	var jobQueue queue.Queue
	switch cfg.QueueBackend {
	case "nats":
		nq, err := queue.ConnectNATS(queue.NATSOptions{URL: cfg.NATSURL})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect queue")
		}
		jobQueue = nq
	default:
		jobQueue = queue.NewMemory()
	}
	defer jobQueue.Close()

	providerRouter := buildRouter(cfg, logger)
	app := handlers.NewApp(logger, jobStore, jobQueue, providerRouter)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, cfg))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func buildRouter(cfg *infra.Config, logger infra.Logger) *router.Router {
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
	return router.New(logger, cfg.DefaultProvider, generators...)
}
