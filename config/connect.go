package config

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"time"
)

const maxConnectTries = uint(5)

func retryConnect[T any](ctx context.Context, name string, operation func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	notify := func(err error, next time.Duration) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dependency", name).Dur("retry_in", next).Msg("connection failed, retrying")
	}
	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(maxConnectTries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("dependency", name).Msg("giving up connecting")
		return out, err
	}
	zerolog.Ctx(ctx).Info().Str("dependency", name).Msg("connected")
	return out, nil
}

func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQ) (*amqp.Connection, error) {
	connAddr := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.User, cfg.Pass, cfg.Host, cfg.Port)

	conn, err := retryConnect(ctx, "rabbitmq", func() (*amqp.Connection, error) {
		return amqp.Dial(connAddr)
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		if err := conn.Close(); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to close RabbitMQ connection")
			return
		}
		zerolog.Ctx(ctx).Info().Msg("RabbitMQ connection closed")
	}()

	return conn, nil
}

// WaitForDB pings the database until it answers.
func WaitForDB(ctx context.Context, db *sql.DB) error {
	_, err := retryConnect(ctx, "postgres", func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	})
	return err
}

func WaitForRedis(ctx context.Context, rdb *redis.Client) error {
	_, err := retryConnect(ctx, "redis", func() (struct{}, error) {
		return struct{}{}, rdb.Ping(ctx).Err()
	})
	return err
}
