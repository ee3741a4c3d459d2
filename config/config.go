// Package config loads queue daemon configuration from the environment,
// with godotenv support for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the queue daemon.
type Config struct {
	Env         string
	HTTPPort    string
	MetricsAddr string

	// Store selection: "memory", "redis", or "postgres".
	StoreBackend string
	RedisURI     string
	PostgresDSN  string

	// Chain defaults.
	ChainID    int64
	BundlerURL string

	// Retry policy.
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	Jitter            bool

	// Engine.
	ProcessingCeiling time.Duration
	SenderConcurrency int

	// Connectivity probe.
	ProbeURL      string
	ProbeInterval time.Duration

	// Circuit breaker.
	BreakerEnabled   bool
	BreakerThreshold int
	BreakerWindow    time.Duration
	BreakerReset     time.Duration

	// Attachments.
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PathStyle  bool
	MediaBaseURL string

	// Event mirroring.
	AMQPURI      string
	AMQPExchange string

	// CORS for browser clients of the admin API.
	AllowedOrigins []string
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("No .env file loaded", "error", err)
	}

	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		StoreBackend: getEnv("STORE_BACKEND", "redis"),
		RedisURI:     getEnv("REDIS_URI", "redis://localhost:6379/"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		ChainID:    getEnvInt64("CHAIN_ID", 42161),
		BundlerURL: getEnv("BUNDLER_URL", "https://bundler.greengoods.app/rpc"),

		MaxRetries:        getEnvInt("MAX_RETRIES", 5),
		InitialDelay:      getEnvDuration("RETRY_INITIAL_DELAY", 2*time.Second),
		BackoffMultiplier: getEnvFloat("RETRY_BACKOFF_MULTIPLIER", 2),
		MaxDelay:          getEnvDuration("RETRY_MAX_DELAY", 2*time.Minute),
		Jitter:            getEnvBool("RETRY_JITTER", true),

		ProcessingCeiling: getEnvDuration("PROCESSING_CEILING", 2*time.Minute),
		SenderConcurrency: getEnvInt("SENDER_CONCURRENCY", 4),

		ProbeURL:      getEnv("PROBE_URL", "https://rpc.ankr.com/base"),
		ProbeInterval: getEnvDuration("PROBE_INTERVAL", 15*time.Second),

		BreakerEnabled:   getEnvBool("BREAKER_ENABLED", true),
		BreakerThreshold: getEnvInt("BREAKER_THRESHOLD", 5),
		BreakerWindow:    getEnvDuration("BREAKER_WINDOW", 5*time.Minute),
		BreakerReset:     getEnvDuration("BREAKER_RESET", 15*time.Minute),

		S3Bucket:     getEnv("MEDIA_S3_BUCKET", ""),
		S3Region:     getEnv("MEDIA_S3_REGION", "us-east-1"),
		S3Endpoint:   getEnv("MEDIA_S3_ENDPOINT", ""),
		S3PathStyle:  getEnvBool("MEDIA_S3_PATH_STYLE", false),
		MediaBaseURL: getEnv("MEDIA_BASE_URL", ""),

		AMQPURI:      getEnv("AMQP_URI", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gardenqueue.events"),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"https://greengoods.app"}),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
