package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Queue and archive backend names accepted in configuration.
const (
	BackendNone     = "none"
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendMinio    = "minio"
	BackendGCS      = "gcs"
)

type Config struct {
	Env        string `env:"ENV" envDefault:"prod"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"5001"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// StorageURI is a full Postgres connection string. When empty the
	// Database fields are used to build one.
	StorageURI string `env:"STORAGE_URI"`
	Database   DatabaseConfig

	Auth     AuthConfig
	MQ       MQConfig
	Archive  ArchiveConfig
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
	Minio    MinioConfig
	GCS      GCSConfig
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"incidentdesk"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	DBName   string `env:"DB_NAME" envDefault:"incidentdesk"`
	UseSSL   bool   `env:"DB_USE_SSL" envDefault:"false"`
}

type AuthConfig struct {
	AccessSecret       string        `env:"ACCESS_SECRET"`
	RefreshSecret      string        `env:"REFRESH_SECRET"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	LoginRatePerMinute int           `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
	LoginBurst         int           `env:"LOGIN_BURST" envDefault:"5"`
}

type MQConfig struct {
	Backend string `env:"MQ_BACKEND" envDefault:"none"`
	Channel string `env:"MQ_AUDIT_CHANNEL" envDefault:"audit.records"`
}

type ArchiveConfig struct {
	Backend string `env:"ARCHIVE_BACKEND" envDefault:"none"`
	Prefix  string `env:"ARCHIVE_PREFIX" envDefault:"audit-archive"`
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH_COUNT" envDefault:"10"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// LoadConfig reads configuration from the environment. In dev mode a local
// .env file is loaded first; variables already set in the environment win.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.MQ.Backend = strings.ToLower(strings.TrimSpace(cfg.MQ.Backend))
	cfg.Archive.Backend = strings.ToLower(strings.TrimSpace(cfg.Archive.Backend))
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.AccessSecret) == "" {
		return errors.New("ACCESS_SECRET is required")
	}
	if strings.TrimSpace(c.Auth.RefreshSecret) == "" {
		return errors.New("REFRESH_SECRET is required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("ACCESS_SECRET and REFRESH_SECRET must differ")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	switch c.MQ.Backend {
	case BackendNone, BackendRabbitMQ, BackendPubSub:
	default:
		return fmt.Errorf("unsupported MQ_BACKEND %q", c.MQ.Backend)
	}
	switch c.Archive.Backend {
	case BackendNone, BackendMinio, BackendGCS:
	default:
		return fmt.Errorf("unsupported ARCHIVE_BACKEND %q", c.Archive.Backend)
	}
	return nil
}

// PostgresURL returns StorageURI when set, otherwise a DSN assembled from
// the individual DB_* settings.
func (c Config) PostgresURL() string {
	if uri := strings.TrimSpace(c.StorageURI); uri != "" {
		return uri
	}

	sslmode := "disable"
	if c.Database.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Path:   c.Database.DBName,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}
