package config

import (
	"fmt"
	"net/url"
	"strings"

	"microsite/internal/constants"
	"microsite/pkg/cel"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	checks := []func() error{
		func() error { return validateServer(cfg.Server) },
		func() error { return validateBroker(cfg.Broker, cfg.Analytics) },
		func() error { return validateDatabase(cfg.Database) },
		func() error { return validateForm(cfg.Form, cfg.Database) },
		func() error { return validateFeed(cfg.Feed) },
		func() error { return validateAnalytics(cfg.Analytics) },
		func() error { return validateSession(cfg.Session, cfg.Database) },
	}

	for _, check := range checks {
		if err := check(); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

// validateBroker only requires Kafka settings when something publishes to it.
func validateBroker(cfg BrokerConfig, analytics AnalyticsConfig) error {
	if cfg.Type == "" && analytics.Collector != constants.CollectorKafka {
		return nil
	}

	switch cfg.Type {
	case "kafka":
		return validateKafka(cfg.Kafka)
	case "":
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required when analytics.collector is kafka",
		}
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.AnalyticsTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.analytics_topic",
			Message: "analytics topic is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be non-negative",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.DB < 0 {
		return &ValidationError{
			Field:   "database.redis.db",
			Message: "db index must be non-negative",
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateForm(cfg FormConfig, db DatabaseConfig) error {
	if cfg.Name == "" {
		return &ValidationError{
			Field:   "form.name",
			Message: "form name is required",
		}
	}

	switch cfg.Endpoint {
	case constants.EndpointSimulated:
		if cfg.Simulate.Latency < 0 {
			return &ValidationError{
				Field:   "form.simulate.latency",
				Message: "latency must be non-negative",
			}
		}
		if cfg.Simulate.FailureRate < 0 || cfg.Simulate.FailureRate > 1 {
			return &ValidationError{
				Field:   "form.simulate.failure_rate",
				Message: fmt.Sprintf("failure rate must be between 0 and 1, got %g", cfg.Simulate.FailureRate),
			}
		}
	case constants.EndpointStore:
		if db.Postgres.Host == "" {
			return &ValidationError{
				Field:   "database.postgres.host",
				Message: "PostgreSQL is required by the store endpoint",
			}
		}
	case constants.EndpointForward:
		if err := validateURL("form.forward.url", cfg.Forward.URL); err != nil {
			return err
		}
	default:
		return &ValidationError{
			Field:   "form.endpoint",
			Message: fmt.Sprintf("unknown endpoint: %s (supported: simulated, store, forward)", cfg.Endpoint),
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "form.timeout",
			Message: "timeout must be positive",
		}
	}

	return nil
}

func validateFeed(cfg FeedConfig) error {
	if err := validateURL("feed.url", cfg.URL); err != nil {
		return err
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "feed.timeout",
			Message: "timeout must be positive",
		}
	}

	if cfg.WatchDebounce < 0 {
		return &ValidationError{
			Field:   "feed.watch_debounce",
			Message: "watch debounce must be non-negative",
		}
	}

	if cfg.VisibilityExpression != "" {
		evaluator, err := cel.NewEvaluator(constants.VisibilityVariable)
		if err != nil {
			return err
		}
		if err := evaluator.ValidateExpression(cfg.VisibilityExpression); err != nil {
			return &ValidationError{
				Field:   "feed.visibility_expression",
				Message: err.Error(),
			}
		}
	}

	return nil
}

func validateAnalytics(cfg AnalyticsConfig) error {
	switch cfg.Collector {
	case constants.CollectorLog, constants.CollectorKafka:
	case constants.CollectorWebhook:
		if err := validateURL("analytics.webhook.url", cfg.Webhook.URL); err != nil {
			return err
		}
	default:
		return &ValidationError{
			Field:   "analytics.collector",
			Message: fmt.Sprintf("unknown collector: %s (supported: webhook, kafka, log)", cfg.Collector),
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "analytics.timeout",
			Message: "timeout must be positive",
		}
	}

	return nil
}

func validateSession(cfg SessionConfig, db DatabaseConfig) error {
	switch cfg.Store {
	case constants.SessionStoreMemory:
	case constants.SessionStoreRedis:
		if db.Redis.Host == "" {
			return &ValidationError{
				Field:   "database.redis.host",
				Message: "Redis is required by the redis session store",
			}
		}
	default:
		return &ValidationError{
			Field:   "session.store",
			Message: fmt.Sprintf("unknown session store: %s (supported: memory, redis)", cfg.Store),
		}
	}

	if cfg.TTL <= 0 {
		return &ValidationError{
			Field:   "session.ttl",
			Message: "ttl must be positive",
		}
	}

	if cfg.ScrollThrottle < 0 {
		return &ValidationError{
			Field:   "session.scroll_throttle",
			Message: "scroll throttle must be non-negative",
		}
	}

	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return &ValidationError{Field: field, Message: "URL is required"}
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid URL: %s (must be absolute http or https)", raw),
		}
	}

	return nil
}
