package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Redis         RedisConfig         `yaml:"redis"`
	Webhooks      WebhooksConfig      `yaml:"webhooks"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// StorageConfig selects the SQL backend for webhook subscriptions and the
// audit trail
type StorageConfig struct {
	// Driver is "sqlite3" or "postgres"
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig configures the optional distributed rate limiter
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WebhooksConfig holds delivery engine settings
type WebhooksConfig struct {
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	RateLimit       int           `yaml:"rate_limit"`
	RatePeriod      time.Duration `yaml:"rate_period"`
}

// AuditConfig holds audit retention settings
type AuditConfig struct {
	RetentionDays  int    `yaml:"retention_days"`
	ArchiveEnabled bool   `yaml:"archive_enabled"`
	ArchiveBucket  string `yaml:"archive_bucket"`
	ArchivePrefix  string `yaml:"archive_prefix"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from an optional YAML file and the
// environment; environment variables win over file values
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Storage: StorageConfig{
			Driver: "sqlite3",
			DSN:    "backoffice.db",
		},
		Webhooks: WebhooksConfig{
			DeliveryTimeout: 10 * time.Second,
			MaxConcurrent:   16,
			RateLimit:       100,
			RatePeriod:      time.Minute,
		},
		Audit: AuditConfig{
			RetentionDays: 90,
			ArchivePrefix: "audit-archive",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			OTelServiceName:    "backoffice",
			OTelServiceVersion: "dev",
		},
	}
}

// applyEnv overrides configuration from environment variables
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("BACKOFFICE_HOST", c.Server.Host)
	c.Server.Port = getEnv("BACKOFFICE_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("BACKOFFICE_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("BACKOFFICE_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("BACKOFFICE_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("BACKOFFICE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("BACKOFFICE_HEALTH_PORT", c.Server.HealthPort)

	c.Storage.Driver = getEnv("BACKOFFICE_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DSN = getEnv("BACKOFFICE_STORAGE_DSN", c.Storage.DSN)

	c.Redis.Addr = getEnv("BACKOFFICE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("BACKOFFICE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("BACKOFFICE_REDIS_DB", c.Redis.DB)

	c.Webhooks.DeliveryTimeout = getEnvDuration("BACKOFFICE_WEBHOOK_DELIVERY_TIMEOUT", c.Webhooks.DeliveryTimeout)
	c.Webhooks.MaxConcurrent = getEnvInt("BACKOFFICE_WEBHOOK_MAX_CONCURRENT", c.Webhooks.MaxConcurrent)
	c.Webhooks.RateLimit = getEnvInt("BACKOFFICE_WEBHOOK_RATE_LIMIT", c.Webhooks.RateLimit)
	c.Webhooks.RatePeriod = getEnvDuration("BACKOFFICE_WEBHOOK_RATE_PERIOD", c.Webhooks.RatePeriod)

	c.Audit.RetentionDays = getEnvInt("BACKOFFICE_AUDIT_RETENTION_DAYS", c.Audit.RetentionDays)
	c.Audit.ArchiveEnabled = getEnvBool("BACKOFFICE_AUDIT_ARCHIVE_ENABLED", c.Audit.ArchiveEnabled)
	c.Audit.ArchiveBucket = getEnv("BACKOFFICE_AUDIT_ARCHIVE_BUCKET", c.Audit.ArchiveBucket)
	c.Audit.ArchivePrefix = getEnv("BACKOFFICE_AUDIT_ARCHIVE_PREFIX", c.Audit.ArchivePrefix)

	c.Observability.LogLevel = getEnv("BACKOFFICE_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.OTelEnabled = getEnvBool("BACKOFFICE_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("BACKOFFICE_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("BACKOFFICE_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("BACKOFFICE_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("BACKOFFICE_OTEL_INSECURE", c.Observability.OTelInsecure)
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Storage.Driver != "sqlite3" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage DSN is required")
	}
	if c.Audit.ArchiveEnabled && c.Audit.ArchiveBucket == "" {
		return fmt.Errorf("audit archive bucket is required when archiving is enabled")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
