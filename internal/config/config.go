package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Database    DatabaseConfig    `yaml:"database"`
	MinIO       MinIOConfig       `yaml:"minio"`
	NATS        NATSConfig        `yaml:"nats"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Upload      UploadConfig      `yaml:"upload"`
	Notify      NotifyConfig      `yaml:"notify"`
	Mail        MailConfig        `yaml:"mail"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port" env:"EVENTLENS_SERVER_PORT"`
	// MetricsKey guards /metrics with X-API-Key. Empty disables the check.
	MetricsKey string `yaml:"metrics_key" env:"EVENTLENS_METRICS_KEY"`
	Pprof      bool   `yaml:"pprof" env:"EVENTLENS_PPROF"`
	// MaxUploadBytes bounds the multipart form kept in memory.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"EVENTLENS_MAX_UPLOAD_BYTES"`
}

type AuthConfig struct {
	Issuer    string `yaml:"issuer" env:"EVENTLENS_AUTH_ISSUER"`
	ClientID  string `yaml:"client_id" env:"EVENTLENS_AUTH_CLIENT_ID"`
	RoleClaim string `yaml:"role_claim" env:"EVENTLENS_AUTH_ROLE_CLAIM"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"EVENTLENS_DB_HOST"`
	Port     int    `yaml:"port" env:"EVENTLENS_DB_PORT"`
	Name     string `yaml:"name" env:"EVENTLENS_DB_NAME"`
	User     string `yaml:"user" env:"EVENTLENS_DB_USER"`
	Password string `yaml:"password" env:"EVENTLENS_DB_PASSWORD"`
	MaxConns int    `yaml:"max_conns" env:"EVENTLENS_DB_MAX_CONNS"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"EVENTLENS_MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"EVENTLENS_MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"EVENTLENS_MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"EVENTLENS_MINIO_BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"EVENTLENS_MINIO_USE_SSL"`
	// PublicURL is the base under which bucket objects are publicly served,
	// e.g. https://cdn.example.com/photos. Empty means endpoint/bucket.
	PublicURL string `yaml:"public_url" env:"EVENTLENS_MINIO_PUBLIC_URL"`
	Prefix    string `yaml:"prefix" env:"EVENTLENS_MINIO_PREFIX"`
}

type NATSConfig struct {
	URL string `yaml:"url" env:"EVENTLENS_NATS_URL"`
}

type RecognitionConfig struct {
	URL     string        `yaml:"url" env:"EVENTLENS_RECOGNITION_URL"`
	APIKey  string        `yaml:"api_key" env:"EVENTLENS_RECOGNITION_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"EVENTLENS_RECOGNITION_TIMEOUT"`
	// MaxDistance rejects matches farther than this. Zero accepts every match.
	MaxDistance float64 `yaml:"max_distance" env:"EVENTLENS_RECOGNITION_MAX_DISTANCE"`
}

type UploadConfig struct {
	MaxPhotos      int           `yaml:"max_photos" env:"EVENTLENS_UPLOAD_MAX_PHOTOS"`
	Workers        int           `yaml:"workers" env:"EVENTLENS_UPLOAD_WORKERS"`
	StorageTimeout time.Duration `yaml:"storage_timeout" env:"EVENTLENS_UPLOAD_STORAGE_TIMEOUT"`
	DBTimeout      time.Duration `yaml:"db_timeout" env:"EVENTLENS_UPLOAD_DB_TIMEOUT"`
}

type NotifyConfig struct {
	// Transport is "smtp" (send from the API process) or "nats" (hand off to cmd/notifier).
	Transport   string        `yaml:"transport" env:"EVENTLENS_NOTIFY_TRANSPORT"`
	Workers     int           `yaml:"workers" env:"EVENTLENS_NOTIFY_WORKERS"`
	QueueSize   int           `yaml:"queue_size" env:"EVENTLENS_NOTIFY_QUEUE_SIZE"`
	SendTimeout time.Duration `yaml:"send_timeout" env:"EVENTLENS_NOTIFY_SEND_TIMEOUT"`
}

type MailConfig struct {
	Host     string `yaml:"host" env:"EVENTLENS_MAIL_HOST"`
	Port     int    `yaml:"port" env:"EVENTLENS_MAIL_PORT"`
	Username string `yaml:"username" env:"EVENTLENS_MAIL_USERNAME"`
	Password string `yaml:"password" env:"EVENTLENS_MAIL_PASSWORD"`
	From     string `yaml:"from" env:"EVENTLENS_MAIL_FROM"`
	// TLS is "mandatory", "opportunistic" or "none".
	TLS string `yaml:"tls" env:"EVENTLENS_MAIL_TLS"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"EVENTLENS_LOG_LEVEL"`
	Format string `yaml:"format" env:"EVENTLENS_LOG_FORMAT"`
}

// Load reads config from YAML file and applies environment variable overrides.
// A missing file is not an error: the environment alone can configure the service.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 64 << 20
	}
	if cfg.Auth.RoleClaim == "" {
		cfg.Auth.RoleClaim = "role"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "photos"
	}
	if cfg.MinIO.Prefix == "" {
		cfg.MinIO.Prefix = "photos"
	}
	if cfg.Recognition.Timeout == 0 {
		cfg.Recognition.Timeout = 60 * time.Second
	}
	if cfg.Upload.MaxPhotos == 0 {
		cfg.Upload.MaxPhotos = 20
	}
	if cfg.Upload.Workers == 0 {
		cfg.Upload.Workers = 4
	}
	if cfg.Upload.StorageTimeout == 0 {
		cfg.Upload.StorageTimeout = 30 * time.Second
	}
	if cfg.Upload.DBTimeout == 0 {
		cfg.Upload.DBTimeout = 10 * time.Second
	}
	if cfg.Notify.Transport == "" {
		cfg.Notify.Transport = "smtp"
	}
	if cfg.Notify.Workers == 0 {
		cfg.Notify.Workers = 2
	}
	if cfg.Notify.QueueSize == 0 {
		cfg.Notify.QueueSize = 256
	}
	if cfg.Notify.SendTimeout == 0 {
		cfg.Notify.SendTimeout = 30 * time.Second
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Mail.TLS == "" {
		cfg.Mail.TLS = "mandatory"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
