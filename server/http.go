package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"study-pipeline/config"
	"study-pipeline/constant"
	"study-pipeline/handler"
	"study-pipeline/pkg/rabbitmq"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to build dependencies")
		return err
	}

	var publisher handler.Publisher
	consumerDone := make(chan struct{})
	// the connection outlives the signal so in-flight deliveries can still ack
	connCtx, closeConn := context.WithCancel(context.WithoutCancel(ctx))
	defer closeConn()
	if cfg.Queue.Enabled() {
		conn, err := config.NewRabbitMQConn(connCtx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
			close(consumerDone)
		} else {
			publisher = rabbitmq.NewPublisher(conn, cfg.Queue)

			serviceDeps := handler.ServiceDependencies{Pipeline: deps.Pipeline}
			retry := rabbitmq.RetryPolicy{
				MaxTries:        cfg.Pipeline.Retry.MaxTries,
				InitialInterval: cfg.Pipeline.Retry.InitialInterval,
				MaxInterval:     cfg.Pipeline.Retry.MaxInterval,
			}
			uploadConsumer := rabbitmq.NewConsumer[handler.ServiceDependencies](conn, cfg.Queue, cfg.Server.Workers, retry, handler.ProcessUploadHandler)
			go func() {
				defer close(consumerDone)
				err := uploadConsumer.Consume(ctx, serviceDeps)
				if err != nil && !errors.Is(err, context.Canceled) {
					zerolog.Ctx(ctx).Error().Err(err).Msg("upload consumer error")
				}
			}()
		}
	} else {
		zerolog.Ctx(ctx).Info().Msg("rabbitmq not configured, uploads are processed in-process")
		close(consumerDone)
	}

	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(*zerolog.Ctx(ctx)), handler.CORS())
	api := handler.NewAPI(deps.Pipeline, deps.Repo, deps.Store, publisher, cfg.Server.MaxUploadBytes)
	handler.RegisterRoutes(r, api)

	srv := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("addr", srv.Addr).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
			cancel()
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Msg("waiting for in-flight uploads")
	<-consumerDone
	closeConn()
	api.Wait()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return nil
}

func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
