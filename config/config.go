package config

import (
	"database/sql"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"time"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Redis       *redis.Client `yaml:"redis"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	Server      Server        `yaml:"server"`
	Gateway     Gateway       `yaml:"gateway"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort    string   `yaml:"http_port"`
	Workers     int      `yaml:"workers"`
	CorsOrigins []string `yaml:"cors_origins"`
}

// Gateway configures the authoring client that talks to the chapters API.
type Gateway struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	LegacyIDProbing bool          `yaml:"legacy_id_probing"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.workers", 4)
	viper.SetDefault("redis.ttl", "5m")
	viper.SetDefault("gateway.base_url", "http://localhost:8080")
	viper.SetDefault("gateway.timeout", "15s")
	viper.SetDefault("rabbitmq_kind", "topic")
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host:         viper.GetString("rabbitmq_host"),
		Port:         viper.GetInt("rabbitmq_port"),
		User:         viper.GetString("rabbitmq_user"),
		Pass:         viper.GetString("rabbitmq_pass"),
		ExchangeName: viper.GetString("rabbitmq_exchange"),
		Kind:         viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: viper.GetBool("minio.secure"),
	})
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     viper.GetString("redis.addr"),
		Username: viper.GetString("redis.username"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort:    viper.GetString("server.port"),
			Workers:     viper.GetInt("server.workers"),
			CorsOrigins: viper.GetStringSlice("server.cors_origins"),
		},
		Gateway: Gateway{
			BaseURL:         viper.GetString("gateway.base_url"),
			Timeout:         viper.GetDuration("gateway.timeout"),
			LegacyIDProbing: viper.GetBool("gateway.legacy_id_probing"),
		},
		DB:       db,
		Queue:    rabbitmq,
		Storage:  minioClient,
		Redis:    redisClient,
		CacheTTL: viper.GetDuration("redis.ttl"),
	}, nil
}
