package server

import (
	"errors"
	"github.com/rs/zerolog"
	"os/signal"
	"syscall"
	"video-chapters/cache"
	"video-chapters/config"
	"video-chapters/handler"
	"video-chapters/pkg/rabbitmq"
	"video-chapters/repository"
)

// RunWorker consumes toc.changed events and invalidates cached chapter lists.
func RunWorker(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := config.WaitForRedis(ctx, cfg.Redis); err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("redis unavailable")
	}
	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("NewRabbitMQConn")
	}

	deps := handler.EventDependencies{
		Entries: cache.NewRedisEntries(cfg.Redis, cfg.CacheTTL),
	}
	consumer := rabbitmq.NewConsumer(conn, cfg.Queue, tocBinding(cfg), cfg.Server.Workers, handler.TocChangedHandler)

	zerolog.Ctx(ctx).Info().Int("workers", cfg.Server.Workers).Msg("start toc change consumer")
	if err := consumer.Consume(ctx, deps); err != nil && !errors.Is(err, ctx.Err()) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("toc change consumer error")
	}
	zerolog.Ctx(ctx).Info().Msg("worker shutdown")
}

// RunMigrate creates or updates the chapter tables.
func RunMigrate(cfg *config.Config) error {
	ctx := SetupLogger(cfg)
	if err := config.WaitForDB(ctx, cfg.DB); err != nil {
		return err
	}
	repo, err := repository.NewRepo(cfg.DB, gormLogLevel(cfg))
	if err != nil {
		return err
	}
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Msg("migrations applied")
	return nil
}
