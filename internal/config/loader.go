package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"microsite/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "15s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("database.redis.port", 6379)
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.sslmode", "disable")
	viper.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)

	viper.SetDefault("broker.kafka.analytics_topic", constants.DefaultAnalyticsTopic)
	viper.SetDefault("broker.kafka.group_id", "microsite-archive")

	viper.SetDefault("site.root", "website")
	viper.SetDefault("site.environment", "staging")
	viper.SetDefault("site.version", "1.0.0")

	viper.SetDefault("form.name", constants.EarlyAccessFormName)
	viper.SetDefault("form.endpoint", constants.EndpointSimulated)
	viper.SetDefault("form.timeout", "10s")
	viper.SetDefault("form.simulate.latency", constants.DefaultSubmissionLatency.String())
	viper.SetDefault("form.simulate.failure_rate", constants.DefaultFailureRate)
	viper.SetDefault("form.store.idempotency_ttl", "24h")

	viper.SetDefault("feed.url", "http://localhost:8080"+constants.FeedPath)
	viper.SetDefault("feed.file", "website/data/announcements.json")
	viper.SetDefault("feed.timeout", "5s")
	viper.SetDefault("feed.watch_debounce", "250ms")

	viper.SetDefault("analytics.collector", constants.CollectorLog)
	viper.SetDefault("analytics.timeout", "2s")

	viper.SetDefault("session.store", constants.SessionStoreMemory)
	viper.SetDefault("session.ttl", "30m")
	viper.SetDefault("session.scroll_throttle", "1s")

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 3)
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.analytics_topic", "BROKER_KAFKA_ANALYTICS_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("form.endpoint", "FORM_ENDPOINT")
	viper.BindEnv("form.forward.url", "FORM_FORWARD_URL")
	viper.BindEnv("feed.url", "FEED_URL")
	viper.BindEnv("analytics.collector", "ANALYTICS_COLLECTOR")
	viper.BindEnv("analytics.webhook.url", "ANALYTICS_WEBHOOK_URL")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")

	// Stack outputs are exported by the provisioning pipeline under these names.
	viper.BindEnv("infra.static_web_app_url", "STATIC_WEB_APP_URL")
	viper.BindEnv("infra.application_insights_connection_string", "APPLICATIONINSIGHTS_CONNECTION_STRING")
	viper.BindEnv("infra.key_vault_uri", "KEY_VAULT_URI")
}

func applyEnvOverrides(cfg *Config) {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}
}
