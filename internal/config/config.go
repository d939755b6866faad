package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/EcommerceGo/storefront/pkg/config"
	"github.com/utafrali/EcommerceGo/storefront/pkg/database"
	"github.com/utafrali/EcommerceGo/storefront/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/storefront/pkg/logger"
	"github.com/utafrali/EcommerceGo/storefront/pkg/tracing"
)

const serviceName = "storefront"

// Persistence backends for the local collections.
const (
	PersistenceMemory   = "memory"
	PersistenceRedis    = "redis"
	PersistencePostgres = "postgres"
)

// Config holds all configuration for the storefront sync service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional rotating log file
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"7"`

	// HTTP server
	HTTPPort    int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`
	CORSOrigins []string `env:"STOREFRONT_CORS_ORIGINS" envDefault:"*" envSeparator:","`

	// Storefront backend
	APIURL    string `env:"STOREFRONT_API_URL" envDefault:"http://localhost:3000"`
	Namespace string `env:"STOREFRONT_NAMESPACE" envDefault:"default"`
	JWTSecret string `env:"STOREFRONT_JWT_SECRET"`

	// Local persistence: memory, redis or postgres
	Persistence   string `env:"PERSISTENCE" envDefault:"memory"`
	CollectionTTL int    `env:"COLLECTION_TTL_HOURS" envDefault:"0"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Retry policy for backend calls
	SyncMaxRetries    int     `env:"SYNC_MAX_RETRIES" envDefault:"3"`
	SyncBaseDelayMS   int     `env:"SYNC_BASE_DELAY_MS" envDefault:"1000"`
	SyncMaxDelayMS    int     `env:"SYNC_MAX_DELAY_MS" envDefault:"10000"`
	SyncBackoffFactor float64 `env:"SYNC_BACKOFF_FACTOR" envDefault:"2"`
	SyncTimeoutMS     int     `env:"SYNC_TIMEOUT_MS" envDefault:"30000"`

	// Offline queue and connectivity
	OfflineQueueMax          int     `env:"OFFLINE_QUEUE_MAX" envDefault:"1000"`
	OfflineReplayRPS         float64 `env:"OFFLINE_REPLAY_RPS" envDefault:"0"`
	StartOnline              bool    `env:"START_ONLINE" envDefault:"true"`
	ConnectivityProbeSeconds int     `env:"CONNECTIVITY_PROBE_SECONDS" envDefault:"0"`

	// Circuit breaker around the backend
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBIntervalSecs int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeoutSecs  int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Kafka; sync events are disabled when no brokers are set
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid storefront API URL: %q", c.APIURL)
	}
	if c.Namespace == "" {
		return fmt.Errorf("storefront namespace must not be empty")
	}
	switch c.Persistence {
	case PersistenceMemory, PersistenceRedis, PersistencePostgres:
	default:
		return fmt.Errorf("invalid persistence %q: want memory, redis or postgres", c.Persistence)
	}
	if c.CollectionTTL < 0 {
		return fmt.Errorf("invalid collection TTL: %dh", c.CollectionTTL)
	}
	if c.SyncMaxRetries < 0 {
		return fmt.Errorf("invalid sync max retries: %d", c.SyncMaxRetries)
	}
	if c.SyncBaseDelayMS < 0 || c.SyncMaxDelayMS < c.SyncBaseDelayMS {
		return fmt.Errorf("invalid sync delays: base %dms, max %dms", c.SyncBaseDelayMS, c.SyncMaxDelayMS)
	}
	if c.SyncBackoffFactor < 1 {
		return fmt.Errorf("invalid sync backoff factor: %v", c.SyncBackoffFactor)
	}
	if c.SyncTimeoutMS <= 0 {
		return fmt.Errorf("invalid sync timeout: %dms", c.SyncTimeoutMS)
	}
	if c.OfflineQueueMax < 1 {
		return fmt.Errorf("invalid offline queue size: %d", c.OfflineQueueMax)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("invalid circuit breaker failure ratio: %v", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("invalid OTEL sample rate: %v", c.OTELSampleRate)
	}
	return nil
}

// HTTPClient returns the retry policy for backend calls.
func (c *Config) HTTPClient() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = c.SyncMaxRetries
	cfg.BaseDelay = time.Duration(c.SyncBaseDelayMS) * time.Millisecond
	cfg.MaxDelay = time.Duration(c.SyncMaxDelayMS) * time.Millisecond
	cfg.BackoffFactor = c.SyncBackoffFactor
	cfg.Timeout = time.Duration(c.SyncTimeoutMS) * time.Millisecond
	return cfg
}

// CircuitBreaker returns the breaker settings for the backend.
func (c *Config) CircuitBreaker() httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         "storefront-api",
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBIntervalSecs) * time.Second,
		Timeout:      time.Duration(c.CBTimeoutSecs) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPass, DB: c.RedisDB}
}

// Postgres returns the PostgreSQL connection settings.
func (c *Config) Postgres() database.PostgresConfig {
	cfg := database.DefaultPostgresConfig()
	cfg.Host = c.PostgresHost
	cfg.Port = c.PostgresPort
	cfg.User = c.PostgresUser
	cfg.Password = c.PostgresPassword
	cfg.DBName = c.PostgresDB
	cfg.SSLMode = c.PostgresSSLMode
	return cfg
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	cfg := tracing.DefaultConfig(serviceName)
	cfg.Environment = c.Environment
	cfg.Enabled = c.OTELEnabled
	cfg.OTLPEndpoint = c.OTELEndpoint
	cfg.SampleRate = c.OTELSampleRate
	return cfg
}

// LogFileConfig returns the rotating log file settings.
func (c *Config) LogFileConfig() logger.FileConfig {
	return logger.FileConfig{
		Path:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
	}
}

// CollectionTTLDuration is how long an idle Redis collection is kept. Zero,
// the default, keeps collections until they are cleared.
func (c *Config) CollectionTTLDuration() time.Duration {
	return time.Duration(c.CollectionTTL) * time.Hour
}

// ProbeInterval is the connectivity probe period; zero disables probing.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ConnectivityProbeSeconds) * time.Second
}
