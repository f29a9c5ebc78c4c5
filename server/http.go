package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"video-chapters/cache"
	"video-chapters/config"
	"video-chapters/constant"
	"video-chapters/handler"
	"video-chapters/pkg/rabbitmq"
	"video-chapters/repository"
	"video-chapters/service"
	"video-chapters/storage"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := config.WaitForDB(ctx, cfg.DB); err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("database unavailable")
	}
	repo, err := repository.NewRepo(cfg.DB, gormLogLevel(cfg))
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("NewRepo")
	}

	blobs := storage.NewMinio(cfg.Storage, cfg.MinIOBucket)
	if err := blobs.EnsureBucket(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("bucket", cfg.MinIOBucket).Msg("EnsureBucket")
	}

	checks := []healthCheck{{name: "database", required: true, ping: cfg.DB.PingContext}}
	var entries cache.Entries = cache.Noop{}
	if err := config.WaitForRedis(ctx, cfg.Redis); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("redis unavailable, serving chapters uncached")
	} else {
		entries = cache.NewRedisEntries(cfg.Redis, cfg.CacheTTL)
		checks = append(checks, healthCheck{name: "cache", ping: func(ctx context.Context) error {
			return cfg.Redis.Ping(ctx).Err()
		}})
	}

	var events service.EventPublisher
	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	} else {
		events = rabbitmq.NewPublisher(conn, cfg.Queue, tocBinding(cfg))
	}

	api := handler.NewAPI(handler.HTTPDependencies{
		Chapters: service.NewChapterService(repo, entries, events),
		Quizzes:  service.NewQuizService(repo),
		Blobs:    blobs,
	})

	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(cfg), requestLogger(*zerolog.Ctx(ctx)))
	addHealth(r, checks...)
	api.Register(r)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("addr", handler.Addr).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

// healthCheck pings one dependency. A failing required check turns the
// health endpoint red; an optional one only marks it degraded.
type healthCheck struct {
	name     string
	required bool
	ping     func(ctx context.Context) error
}

func addHealth(r *gin.Engine, checks ...healthCheck) {
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		deps := gin.H{}
		for _, hc := range checks {
			err := hc.ping(ctx)
			if err == nil {
				deps[hc.name] = "ok"
				continue
			}
			deps[hc.name] = err.Error()
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("dependency", hc.name).Msg("health check failed")
			switch {
			case hc.required:
				status, code = "unavailable", http.StatusServiceUnavailable
			case code == http.StatusOK:
				status = "degraded"
			}
		}
		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	})
}

// requestLogger attaches a per-request logger to the request context.
func requestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestId := c.GetHeader("X-Request-ID")
		if requestId == "" {
			requestId = uuid.NewString()
		}
		l := base.With().Str("request_id", requestId).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Header("X-Request-ID", requestId)

		c.Next()

		l.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// corsMiddleware lets the browser player and authoring UI call the API.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.Server.CorsOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.Server.CorsOrigins
	}
	return cors.New(c)
}

func tocBinding(cfg *config.Config) rabbitmq.Binding {
	exchange := constant.TocExchange
	if cfg.Queue != nil && cfg.Queue.ExchangeName != "" {
		exchange = cfg.Queue.ExchangeName
	}
	return rabbitmq.Binding{
		Exchange:   exchange,
		Queue:      constant.TocQueue,
		RoutingKey: constant.TocRoutingKey,
	}
}

func gormLogLevel(cfg *config.Config) logger.LogLevel {
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		return logger.Info
	}
	return logger.Warn
}

func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "video-chapters").Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
