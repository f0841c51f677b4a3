package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the orchestrator process configuration, loaded from YAML with
// SCHOLARFLOW_* environment overrides.
type Config struct {
	Temporal        TemporalConfig        `mapstructure:"temporal"`
	AgentService    AgentServiceConfig    `mapstructure:"agent_service"`
	SemanticScholar SemanticScholarConfig `mapstructure:"semantic_scholar"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Postgres        PostgresConfig        `mapstructure:"postgres"`
	Observability   ObservabilityConfig   `mapstructure:"observability"`
	Research        ResearchConfig        `mapstructure:"research"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
}

type AgentServiceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c AgentServiceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type SemanticScholarConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKeyEnv         string  `mapstructure:"api_key_env"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// APIKey reads the key from the configured environment variable, if any.
func (c SemanticScholarConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN builds the lib/pq connection string. Empty host disables the run
// history store.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type ObservabilityConfig struct {
	MetricsPort int           `mapstructure:"metrics_port"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type ResearchConfig struct {
	ChunkedReporting bool `mapstructure:"chunked_reporting"`
	EnrichWorkers    int  `mapstructure:"enrich_workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("agent_service.base_url", "http://agent-service:8000")
	v.SetDefault("agent_service.timeout_seconds", 120)
	v.SetDefault("semantic_scholar.base_url", "https://api.semanticscholar.org")
	v.SetDefault("semantic_scholar.api_key_env", "SEMANTIC_SCHOLAR_API_KEY")
	v.SetDefault("semantic_scholar.requests_per_second", 1.0)
	v.SetDefault("storage.bucket", "scholarflow-processed-papers")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl_minutes", 1440)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("observability.metrics_port", 8081)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.service_name", "scholarflow-orchestrator")
	v.SetDefault("observability.tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("research.chunked_reporting", true)
	v.SetDefault("research.enrich_workers", 3)
}

// Load reads configuration from path (or SCHOLARFLOW_CONFIG_PATH, or
// defaults only when neither exists) and applies environment overrides of
// the form SCHOLARFLOW_TEMPORAL_HOST_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SCHOLARFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("SCHOLARFLOW_CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Watch re-reads the config file on change and hands the new value to
// onChange. Reload failures keep the previous configuration.
func Watch(path string, logger *zap.Logger, onChange func(*Config)) error {
	if path == "" {
		return fmt.Errorf("no config path to watch")
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			logger.Warn("Config reload failed, keeping previous values",
				zap.String("file", e.Name),
				zap.Error(err))
			return
		}
		logger.Info("Config reloaded", zap.String("file", e.Name))
		onChange(&cfg)
	})
	v.WatchConfig()
	return nil
}
