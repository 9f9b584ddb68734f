package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/agsys-platform/svclink/pkg/config"
	"github.com/agsys-platform/svclink/pkg/endpoint"
)

// Config holds the runtime configuration for a probe-service instance.
// It supports environment-based initialization, with sensible defaults.
type Config struct {
	ServiceName string // identity used for credential resolution
	Project     string // e.g. "agsys"
	Env         string // e.g. "dev", "uat", "prod"
	GatewayURL  string // API gateway base URL
	AWSRegion   string // for AWS SDK client
	LogLevel    string // "debug", "info", etc.
	Port        int    // service HTTP port

	HTTPTimeout      time.Duration // outbound relay timeout
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	CacheTTL    time.Duration // TTL for credential cache, <=0 caches until restart
	CleanupFreq time.Duration // frequency for cache cleanup goroutine

	NATSURL     string // e.g. nats://localhost:4222
	RabbitURL   string // empty disables the command consumer
	RedisAddr   string // e.g. localhost:6379
	RedisDB     int
	RedisPass   string
	DatabaseURL string // empty disables the Postgres audit trail

	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	ProbeInterval time.Duration // 0 disables the background prober
	ProbeTimeout  time.Duration // per-probe deadline
	ProbePath     string        // path swept by the prober
	ProbeTargets  []string      // empty falls back on credential discovery
	StatusTTL     time.Duration // lifetime of a status snapshot in Redis

	ThrottleRPS   int // 0 disables client-side throttling
	ThrottleBurst int

	RelaySubject string // NATS subject for relay events
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: pkgconfig.GetEnv("SERVICE_NAME", "probe-service"),
		Project:     pkgconfig.GetEnv("PROJECT_NAME", "agsys"),
		Env:         pkgconfig.GetEnv("ENV", "dev"),
		GatewayURL:  pkgconfig.GetEnv("API_GATEWAY_URL", ""),
		AWSRegion:   pkgconfig.GetEnv("AWS_REGION", "us-east-1"),
		LogLevel:    pkgconfig.GetEnv("LOG_LEVEL", "info"),
		Port:        pkgconfig.GetEnvInt("PORT", 9020),

		HTTPTimeout:      pkgconfig.GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		HTTPReadTimeout:  pkgconfig.GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: pkgconfig.GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:  pkgconfig.GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    pkgconfig.GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),

		CacheTTL:    pkgconfig.GetEnvDuration("CREDENTIAL_CACHE_TTL", 24*time.Hour),
		CleanupFreq: pkgconfig.GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),

		NATSURL:     pkgconfig.GetEnv("NATS_URL", "nats://localhost:4222"),
		RabbitURL:   pkgconfig.GetEnv("RABBITMQ_URL", ""),
		RedisAddr:   pkgconfig.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass:   pkgconfig.GetEnv("REDIS_PASS", ""),
		DatabaseURL: pkgconfig.GetEnv("DATABASE_URL", ""),

		PGMaxConns:          pkgconfig.GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:          pkgconfig.GetEnvInt("PG_MIN_CONNS", 2),
		PGMaxConnLifetime:   pkgconfig.GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   pkgconfig.GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: pkgconfig.GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),

		ProbeInterval: pkgconfig.GetEnvDuration("PROBE_INTERVAL", 5*time.Minute),
		ProbeTimeout:  pkgconfig.GetEnvDuration("PROBE_TIMEOUT", 10*time.Second),
		ProbePath:     pkgconfig.GetEnv("PROBE_PATH", "/health"),
		ProbeTargets:  pkgconfig.GetEnvStrings("PROBE_TARGETS", nil),
		StatusTTL:     pkgconfig.GetEnvDuration("STATUS_TTL", 15*time.Minute),

		ThrottleRPS:   pkgconfig.GetEnvInt("THROTTLE_RPS", 0),
		ThrottleBurst: pkgconfig.GetEnvInt("THROTTLE_BURST", 0),

		RelaySubject: pkgconfig.GetEnv("RELAY_SUBJECT", "evt.relay.completed.v1"),
	}

	return cfg
}

// Validate checks the fields that have no workable default. main calls it
// before anything opens a socket.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Project) == "" {
		return &endpoint.ConfigurationError{Field: "project", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.GatewayURL) == "" {
		return &endpoint.ConfigurationError{Field: "gateway_url", Reason: "must not be empty"}
	}
	return nil
}
