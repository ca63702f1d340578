package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Site           SiteConfig           `mapstructure:"site"`
	Form           FormConfig           `mapstructure:"form"`
	Feed           FeedConfig           `mapstructure:"feed"`
	Analytics      AnalyticsConfig      `mapstructure:"analytics"`
	Session        SessionConfig        `mapstructure:"session"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	Infra          InfraOutputs         `mapstructure:"infra"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	MongoDB       MongoDBConfig  `mapstructure:"mongodb"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers        []string    `mapstructure:"brokers"`
	GroupID        string      `mapstructure:"group_id"`
	AnalyticsTopic string      `mapstructure:"analytics_topic"`
	DLQTopic       string      `mapstructure:"dlq_topic"`
	Retry          RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SiteConfig points at the static microsite served next to the API.
type SiteConfig struct {
	Root        string `mapstructure:"root"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type FormConfig struct {
	Name     string           `mapstructure:"name"`
	Endpoint string           `mapstructure:"endpoint"` // "simulated", "store", "forward"
	Timeout  time.Duration    `mapstructure:"timeout"`
	Simulate SimulationConfig `mapstructure:"simulate"`
	Store    StoreConfig      `mapstructure:"store"`
	Forward  ForwardConfig    `mapstructure:"forward"`
}

type SimulationConfig struct {
	Latency     time.Duration `mapstructure:"latency"`
	FailureRate float64       `mapstructure:"failure_rate"`
}

type StoreConfig struct {
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type ForwardConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type FeedConfig struct {
	URL                  string        `mapstructure:"url"`
	File                 string        `mapstructure:"file"`
	Timeout              time.Duration `mapstructure:"timeout"`
	WatchDebounce        time.Duration `mapstructure:"watch_debounce"`
	VisibilityExpression string        `mapstructure:"visibility_expression"`
	AllowMarkup          bool          `mapstructure:"allow_markup"`
}

type AnalyticsConfig struct {
	Collector string        `mapstructure:"collector"` // "kafka", "webhook", "log"
	Timeout   time.Duration `mapstructure:"timeout"`
	Webhook   WebhookConfig `mapstructure:"webhook"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type SessionConfig struct {
	Store          string        `mapstructure:"store"` // "redis", "memory"
	TTL            time.Duration `mapstructure:"ttl"`
	ScrollThrottle time.Duration `mapstructure:"scroll_throttle"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

// InfraOutputs carries the named outputs of the provisioning stacks. They are
// consumed as plain values; nothing here talks to the cloud provider.
type InfraOutputs struct {
	ResourceGroupName             string `mapstructure:"resource_group_name"`
	StaticWebAppName              string `mapstructure:"static_web_app_name"`
	StaticWebAppURL               string `mapstructure:"static_web_app_url"`
	ApplicationInsightsConnString string `mapstructure:"application_insights_connection_string"`
	LogAnalyticsWorkspaceID       string `mapstructure:"log_analytics_workspace_id"`
	KeyVaultURI                   string `mapstructure:"key_vault_uri"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
