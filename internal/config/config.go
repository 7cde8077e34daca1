// Package config loads runtime settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	HTTP     HTTPConfig     `yaml:"http"`
	JWT      JWTConfig      `yaml:"jwt"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Events   EventsConfig   `yaml:"events"`
	Admin    AdminConfig    `yaml:"admin"`
}

type AppConfig struct {
	Name         string `yaml:"name" env:"APP_NAME" env-default:"guide-api"`
	Env          string `yaml:"env" env:"APP_ENV" env-default:"development"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":3010"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"*"`
}

// JWTConfig holds the two signing secrets and token lifetimes. Access and
// refresh tokens must be signed with different secrets.
type JWTConfig struct {
	AccessSecret  string        `yaml:"access_secret" env:"JWT_SECRET"`
	RefreshSecret string        `yaml:"refresh_secret" env:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"JWT_ACCESS_TTL" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"JWT_REFRESH_TTL" env-default:"168h"`
	RevokeOnReuse bool          `yaml:"revoke_on_reuse" env:"REVOKE_ON_REUSE" env-default:"false"`
}

type DatabaseConfig struct {
	Host     string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     uint          `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password string        `yaml:"password" env:"DB_PASSWORD"`
	Name     string        `yaml:"name" env:"DB_NAME" env-default:"assembler"`
	SSLMode  string        `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	SecretID string        `yaml:"secret_id" env:"DB_SECRET_ID"`
	Timeout  time.Duration `yaml:"timeout" env:"DB_TIMEOUT" env-default:"5s"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"disk"`
	UploadDir   string `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"./uploads"`
	MaxBytes    int64  `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"26214400"`
	S3Endpoint  string `yaml:"s3_endpoint" env:"S3_ENDPOINT"`
	S3Bucket    string `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Region    string `yaml:"s3_region" env:"S3_REGION" env-default:"us-east-1"`
	S3AccessKey string `yaml:"s3_access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey string `yaml:"s3_secret_key" env:"S3_SECRET_KEY"`
	S3PublicURL string `yaml:"s3_public_url" env:"S3_PUBLIC_URL"`
	S3PathStyle bool   `yaml:"s3_path_style" env:"S3_FORCE_PATH_STYLE" env-default:"true"`
}

type EventsConfig struct {
	NATSURL    string `yaml:"nats_url" env:"NATS_URL"`
	WebhookURL string `yaml:"webhook_url" env:"WEBHOOK_URL"`
}

type AdminConfig struct {
	Email    string `yaml:"email" env:"ADMIN_EMAIL"`
	Password string `yaml:"password" env:"ADMIN_PASSWORD"`
	Name     string `yaml:"name" env:"ADMIN_NAME" env-default:"Admin"`
}

// Load reads configuration. When path is empty only the environment (after
// an optional .env file) is consulted.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT_ACCESS_TTL must be shorter than JWT_REFRESH_TTL")
	}
	switch c.Storage.Driver {
	case "disk":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

// DSN builds a libpq-style connection string. Credentials are passed in so
// they can come from Secrets Manager instead of the config.
func (d DatabaseConfig) DSN(user, password string) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, user, password, d.Name, d.Port, d.SSLMode)
}

func (a AppConfig) IsProduction() bool { return a.Env == "production" }
