package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stablehand/internal/selection/models"
	pkgstrings "stablehand/pkg/platform/strings"
)

// Config is the full process configuration.
type Config struct {
	Server          Server
	Database        DatabaseConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
	Auth            AuthConfig
	Selection       SelectionPolicy
	Archive         ArchiveConfig
	RateLimit       RateLimitConfig
	RoutineCacheTTL time.Duration
	// SeedFile preloads the in-memory directory and catalog. Ignored with a database.
	SeedFile        string
	LogLevel        string
	LogFormat       string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	// AdminToken guards the operator endpoints. Empty disables them.
	AdminToken string
}

// DatabaseConfig selects Postgres. An empty URL runs everything in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the routine instance cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	Partitions    int32
	Replication   int16
	RelayInterval time.Duration
	RelayBatch    int
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// SelectionPolicy resolves the tunable corners of the ordering algorithms.
type SelectionPolicy struct {
	QuotaRounding      models.QuotaRounding      `yaml:"quota_rounding"`
	NewMemberPlacement models.NewMemberPlacement `yaml:"new_member_placement"`
}

// ArchiveConfig tunes the history archive retry worker.
type ArchiveConfig struct {
	RetryInterval    time.Duration `yaml:"retry_interval"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	SweepLookback    time.Duration `yaml:"sweep_lookback"`
	QueueSize        int           `yaml:"queue_size"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

// RateLimitConfig bounds mutating requests per caller.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// policyFile is the on-disk shape of SELECTION_POLICY_FILE.
type policyFile struct {
	Selection SelectionPolicy `yaml:"selection"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// Load reads an optional .env file, then builds the config from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: Server{
			Addr:            envOr("STABLEHAND_ADDR", ":8080"),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  envDuration("REQUEST_TIMEOUT", 15*time.Second),
			AdminToken:      os.Getenv("ADMIN_TOKEN"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       pkgstrings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			Topic:         envOr("KAFKA_SELECTION_TOPIC", "stablehand.selection-events"),
			Partitions:    int32(envInt("KAFKA_TOPIC_PARTITIONS", 3)),
			Replication:   int16(envInt("KAFKA_TOPIC_REPLICATION", 1)),
			RelayInterval: envDuration("OUTBOX_RELAY_INTERVAL", 2*time.Second),
			RelayBatch:    envInt("OUTBOX_RELAY_BATCH", 100),
		},
		Auth: AuthConfig{
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        envOr("JWT_ISSUER", "stablehand"),
			Audience:      os.Getenv("JWT_AUDIENCE"),
		},
		Selection: SelectionPolicy{
			QuotaRounding:      models.QuotaRounding(envOr("QUOTA_ROUNDING", string(models.RoundingFloorRemainderFirst))),
			NewMemberPlacement: models.NewMemberPlacement(envOr("NEW_MEMBER_PLACEMENT", string(models.PlacementEnd))),
		},
		Archive: ArchiveConfig{
			RetryInterval:    envDuration("ARCHIVE_RETRY_INTERVAL", 30*time.Second),
			MaxBackoff:       envDuration("ARCHIVE_MAX_BACKOFF", 15*time.Minute),
			SweepInterval:    envDuration("ARCHIVE_SWEEP_INTERVAL", 10*time.Minute),
			SweepLookback:    envDuration("ARCHIVE_SWEEP_LOOKBACK", 7*24*time.Hour),
			QueueSize:        envInt("ARCHIVE_QUEUE_SIZE", 256),
			FailureThreshold: envInt("ARCHIVE_FAILURE_THRESHOLD", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloat("RATE_LIMIT_RPS", 5),
			Burst:             envInt("RATE_LIMIT_BURST", 10),
		},
		RoutineCacheTTL: envDuration("ROUTINE_CACHE_TTL", 5*time.Minute),
		SeedFile:        os.Getenv("STABLEHAND_SEED_FILE"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
	}

	if path := os.Getenv("SELECTION_POLICY_FILE"); path != "" {
		if err := cfg.LoadPolicyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPolicyFile overlays the YAML policy file onto the selection and archive
// sections. Fields absent from the file keep their current values.
func (c *Config) LoadPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	parsed := policyFile{Selection: c.Selection, Archive: c.Archive}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Selection = parsed.Selection
	c.Archive = parsed.Archive
	return nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	if _, err := models.ParseQuotaRounding(string(c.Selection.QuotaRounding)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := models.ParseNewMemberPlacement(string(c.Selection.NewMemberPlacement)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Archive.RetryInterval <= 0 || c.Archive.SweepInterval <= 0 {
		return fmt.Errorf("config: archive intervals must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("config: rate limit must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
