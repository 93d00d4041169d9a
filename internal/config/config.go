// Package config loads the release engine's configuration via viper,
// binding env vars, an optional YAML file, and defaults, one struct per
// concern.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	// Profile selects the storage backend: "standard" (Postgres+Redis) or
	// "lite" (embedded SQLite, single node, no external dependencies).
	Profile DeploymentProfile `mapstructure:"profile"`

	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Log            LogConfig            `mapstructure:"log"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	ObjectStore    ObjectStoreConfig    `mapstructure:"object_store"`
	ExternalConfig ExternalConfigConfig `mapstructure:"external_config"`
	Lock           LockConfig           `mapstructure:"lock"`
	WorkspaceCache WorkspaceCacheConfig `mapstructure:"workspace_cache"`
	Outbox         OutboxConfig         `mapstructure:"outbox"`
}

// DeploymentProfile selects which storage backend is active.
type DeploymentProfile string

const (
	ProfileLite     DeploymentProfile = "lite"
	ProfileStandard DeploymentProfile = "standard"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port                    int           `mapstructure:"port"`
	Host                    string        `mapstructure:"host"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// DatabaseConfig holds the relational store (Postgres, standard profile;
// SQLite file, lite profile) connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	// SQLitePath is used only when Profile == ProfileLite.
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DSN returns the pgx connection string for the standard profile.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds the Redis connection used by the workspace cache.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig holds the Prometheus exposition server configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// ObjectStoreConfig holds the artifact-store adapter configuration.
type ObjectStoreConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Bucket     string        `mapstructure:"bucket"`
	AccessKey  string        `mapstructure:"access_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	UseTLS     bool          `mapstructure:"use_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// ExternalConfigConfig holds the configuration-and-experimentation service
// client configuration.
type ExternalConfigConfig struct {
	BaseURL                string        `mapstructure:"base_url"`
	OrgID                  string        `mapstructure:"org_id"`
	APIToken               string        `mapstructure:"api_token"`
	Timeout                time.Duration `mapstructure:"timeout"`
	MaxRetries             int           `mapstructure:"max_retries"`
	CircuitBreakerThreshold int          `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerCooldown time.Duration `mapstructure:"circuit_breaker_cooldown"`
}

// LockConfig holds advisory lock configuration.
type LockConfig struct {
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

// WorkspaceCacheConfig holds the workspace-directory cache configuration.
type WorkspaceCacheConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	LRUSize   int           `mapstructure:"lru_size"`
	UseRedis  bool          `mapstructure:"use_redis"`
}

// OutboxConfig holds the cleanup outbox drain worker configuration.
type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BaseBackoff  time.Duration `mapstructure:"base_backoff"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"`
}

// Load reads configuration from defaults, an optional YAML file, and
// environment variables, in that order of increasing precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "standard")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_shutdown_timeout", "30s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "release_engine")
	v.SetDefault("database.username", "release_engine")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "5m")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.sqlite_path", "/data/release_engine.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.min_retry_backoff", "100ms")
	v.SetDefault("redis.max_retry_backoff", "500ms")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("object_store.endpoint", "localhost:9000")
	v.SetDefault("object_store.bucket", "release-assets")
	v.SetDefault("object_store.use_tls", false)
	v.SetDefault("object_store.timeout", "30s")
	v.SetDefault("object_store.max_retries", 3)

	v.SetDefault("external_config.timeout", "5s")
	v.SetDefault("external_config.max_retries", 3)
	v.SetDefault("external_config.circuit_breaker_threshold", 5)
	v.SetDefault("external_config.circuit_breaker_cooldown", "30s")

	v.SetDefault("lock.acquire_timeout", "2s")

	v.SetDefault("workspace_cache.ttl", "168h") // 7 days
	v.SetDefault("workspace_cache.lru_size", 1024)
	v.SetDefault("workspace_cache.use_redis", true)

	v.SetDefault("outbox.poll_interval", "5s")
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.max_attempts", 8)
	v.SetDefault("outbox.base_backoff", "1s")
	v.SetDefault("outbox.max_backoff", "5m")
}

// Validate sanity-checks the loaded configuration.
func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileLite, ProfileStandard:
	default:
		return fmt.Errorf("invalid profile: %s", c.Profile)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Profile == ProfileStandard {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for the standard profile")
		}
		if c.Database.MaxConnections <= 0 {
			return fmt.Errorf("database.max_connections must be greater than 0")
		}
		if c.Database.MinConnections > c.Database.MaxConnections {
			return fmt.Errorf("database.min_connections cannot exceed database.max_connections")
		}
	} else if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required for the lite profile")
	}

	if c.WorkspaceCache.TTL <= 0 {
		return fmt.Errorf("workspace_cache.ttl must be greater than 0")
	}

	return nil
}
