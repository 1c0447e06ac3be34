package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"session-capture/config"
	"session-capture/constant"
	"session-capture/handler"
	"session-capture/pkg/rabbitmq"
	"session-capture/service"
	"session-capture/storage"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	store := storage.NewMinioStore(cfg.Storage, cfg.MinIOBucket)
	if err := store.EnsureBucket(ctx); err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("object store bucket is not available")
	}

	ingestService := service.NewIngestService(store)
	reassemblyService := service.NewReassemblyService(store, cfg.Reassembly.MinChunks)
	retrievalService := service.NewRetrievalService(store)

	// optional queue-triggered per-session merges alongside the sweep
	if cfg.Queue.Host != "" {
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
		} else {
			consumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, handler.ReassembleHandler)
			go func() {
				err := consumer.Consume(ctx, handler.ServiceDependencies{Reassembly: reassemblyService})
				if err != nil {
					zerolog.Ctx(ctx).Error().Err(err).Msg("reassemble consumer error")
				}
			}()
		}
	}

	go runReassemblySweep(ctx, reassemblyService, cfg.Reassembly.Interval)

	r := gin.Default()
	addHealth(r)
	httpHandler := &handler.HTTP{
		Ingest:           ingestService,
		Reassembly:       reassemblyService,
		Retrieval:        retrievalService,
		ReassembleSecret: cfg.Reassembly.Secret,
	}
	httpHandler.Register(r)

	srv := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

// runReassemblySweep merges eligible sessions on a fixed interval. Sweep
// errors are logged and the next tick tries again; per-session outcomes are
// already folded into the summary.
func runReassemblySweep(ctx context.Context, svc service.ReassemblyService, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := svc.Run(ctx); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("reassembly sweep failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
