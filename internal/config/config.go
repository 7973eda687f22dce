package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Cache backends selectable with CACHE_BACKEND.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheTiered = "tiered"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	LookupConfig    string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	CacheBackend string
	CacheTTL     time.Duration
	CacheSize    int
	RedisURL     string

	// Charset is the IANA name lookup files are decoded with.
	Charset string
	// Location is where _date0/_time0 pairs are interpreted.
	Location *time.Location

	// StorePath is the SQLite record store; empty disables persistence.
	StorePath string

	KafkaBrokers []string
	// KafkaSinkTopic receives loaded lookups; empty disables publishing.
	KafkaSinkTopic string

	WatchEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("CACHE_TTL", "6h"))
	if err != nil || cacheTTL <= 0 {
		return nil, errors.New("invalid CACHE_TTL")
	}

	tz := sharedcfg.EnvOrDefault("LOOKUP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKUP_TIMEZONE: %w", err)
	}

	cfg := &Config{
		LookupConfig:       sharedcfg.EnvOrDefault("LOOKUP_CONFIG", "lookups.yaml"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		CacheBackend: sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheMemory),
		CacheTTL:     cacheTTL,
		CacheSize:    parseCacheSize(),
		RedisURL:     os.Getenv("REDIS_URL"),

		Charset:  sharedcfg.EnvOrDefault("LOOKUP_CHARSET", "utf-8"),
		Location: loc,

		StorePath: os.Getenv("STORE_PATH"),

		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: os.Getenv("KAFKA_SINK_TOPIC"),

		WatchEnabled: sharedcfg.EnvOrDefault("WATCH_ENABLED", "true") == "true",
	}

	switch cfg.CacheBackend {
	case CacheMemory:
	case CacheRedis, CacheTiered:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("CACHE_BACKEND %s requires REDIS_URL", cfg.CacheBackend)
		}
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q", cfg.CacheBackend)
	}
	if cfg.KafkaSinkTopic != "" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_SINK_TOPIC is set")
	}

	return cfg, nil
}

func parseCacheSize() int {
	if s := os.Getenv("CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
