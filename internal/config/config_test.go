package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "early_access_form", cfg.Form.Name)
	assert.Equal(t, "simulated", cfg.Form.Endpoint)
	assert.Equal(t, 1500*time.Millisecond, cfg.Form.Simulate.Latency)
	assert.InDelta(t, 0.05, cfg.Form.Simulate.FailureRate, 1e-9)
	assert.Equal(t, time.Second, cfg.Session.ScrollThrottle)
	assert.Equal(t, "log", cfg.Analytics.Collector)
	assert.Equal(t, "memory", cfg.Session.Store)
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "microsite.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "microsite_analytics", cfg.Broker.Kafka.AnalyticsTopic)
	assert.Equal(t, `announcement.type != "internal"`, cfg.Feed.VisibilityExpression)
	assert.Equal(t, "rg-microsite-staging", cfg.Infra.ResourceGroupName)
}

func TestLoadConfig_ExplicitZeroFailureRate(t *testing.T) {
	path := writeConfig(t, "form:\n  simulate:\n    failure_rate: 0\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Form.Simulate.FailureRate)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_BrokersFromEnv(t *testing.T) {
	t.Setenv("BROKER_KAFKA_BROKERS", "k1:9092, k2:9092")
	path := writeConfig(t, "broker:\n  type: kafka\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Kafka.Brokers)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeoutSeconds: time.Second, WriteTimeoutSeconds: time.Second},
		Form: FormConfig{
			Name:     "early_access_form",
			Endpoint: "simulated",
			Timeout:  time.Second,
			Simulate: SimulationConfig{Latency: time.Millisecond, FailureRate: 0.05},
		},
		Feed:      FeedConfig{URL: "http://localhost:8080/data/announcements.json", Timeout: time.Second},
		Analytics: AnalyticsConfig{Collector: "log", Timeout: time.Second},
		Session:   SessionConfig{Store: "memory", TTL: time.Minute, ScrollThrottle: time.Second},
	}
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "failure rate above one",
			mutate:  func(c *Config) { c.Form.Simulate.FailureRate = 1.5 },
			wantErr: "form.simulate.failure_rate",
		},
		{
			name:    "unknown endpoint",
			mutate:  func(c *Config) { c.Form.Endpoint = "carrier-pigeon" },
			wantErr: "form.endpoint",
		},
		{
			name:    "store endpoint without postgres",
			mutate:  func(c *Config) { c.Form.Endpoint = "store" },
			wantErr: "database.postgres.host",
		},
		{
			name:    "forward endpoint with relative url",
			mutate:  func(c *Config) { c.Form.Endpoint = "forward"; c.Form.Forward.URL = "/signup" },
			wantErr: "form.forward.url",
		},
		{
			name:    "kafka collector without broker",
			mutate:  func(c *Config) { c.Analytics.Collector = "kafka" },
			wantErr: "broker.type",
		},
		{
			name:    "webhook collector without url",
			mutate:  func(c *Config) { c.Analytics.Collector = "webhook" },
			wantErr: "analytics.webhook.url",
		},
		{
			name:    "redis session store without redis",
			mutate:  func(c *Config) { c.Session.Store = "redis" },
			wantErr: "database.redis.host",
		},
		{
			name:   "visibility expression",
			mutate: func(c *Config) { c.Feed.VisibilityExpression = `announcement.type != "internal"` },
		},
		{
			name:    "visibility expression syntax error",
			mutate:  func(c *Config) { c.Feed.VisibilityExpression = `announcement.type ==` },
			wantErr: "feed.visibility_expression",
		},
		{
			name:    "visibility expression unknown variable",
			mutate:  func(c *Config) { c.Feed.VisibilityExpression = `post.type == "news"` },
			wantErr: "feed.visibility_expression",
		},
		{
			name:    "bad mongodb uri",
			mutate:  func(c *Config) { c.Database.MongoDB = MongoDBConfig{URI: "http://mongo", Database: "x"} },
			wantErr: "database.mongodb.uri",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateStatic(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
