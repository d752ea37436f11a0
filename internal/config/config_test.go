package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/dispatcher/internal/classifier"
	"github.com/smartcity/dispatcher/internal/types"
)

const sampleConfig = `
baseUrl: https://dispatch.city.gov
entityUrls:
  red-cross: https://cruzroja.example/hook
timeoutSeconds: 3
maxConcurrency: 4
rateLimitPerMinute: 120
fallbackPolicy: fallbackOnEmptyResult
criticalLevels: [CRITICAL, CRÍTICO, " SEVERE "]
suppressDuplicateMinutes: 30
source:
  url: https://alerts.city.gov
  take: 25
kafka:
  brokers: [kafka-1:9092]
`

func TestDefault_IsValidOnceEndpointSet(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseUrl or entityUrls is required")

	cfg.BaseURL = "http://localhost:9000"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "correlated.alerts", cfg.Kafka.Topic)
	assert.Equal(t, 10, cfg.Source.Take)
	assert.Equal(t, 1000, cfg.ResultHistory)
	assert.Equal(t, string(classifier.FallbackOnUnknownOnly), cfg.FallbackPolicy)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://dispatch.city.gov", cfg.BaseURL)
	assert.Equal(t, map[string]string{"red-cross": "https://cruzroja.example/hook"}, cfg.EntityURLs)
	assert.Equal(t, 3, cfg.TimeoutSeconds)
	assert.Equal(t, 25, cfg.Source.Take)
	assert.Equal(t, 60, cfg.Source.PollIntervalSeconds, "unset nested fields keep defaults")
	assert.Equal(t, "correlated.alerts", cfg.Kafka.Topic)
	assert.Equal(t, "municipal-police", cfg.FallbackEntity)

	copts := cfg.ClassifierOptions()
	assert.Equal(t, classifier.FallbackOnEmptyResult, copts.FallbackPolicy)
	assert.Equal(t, types.EntityID("national-police"), copts.EscalationEntity)
	assert.Equal(t, []string{"CRITICAL", "CRÍTICO", "SEVERE"}, copts.CriticalLevels)

	dopts := cfg.DispatcherOptions()
	assert.Equal(t, 4, dopts.MaxConcurrency)
	assert.Equal(t, 120, dopts.RateLimitPerMinute)

	assert.Equal(t, 30, cfg.EngineOptions().SuppressDuplicateMinutes)
	assert.Equal(t, "https://cruzroja.example/hook", cfg.SenderConfig().EntityURLs["red-cross"])
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte("baseUrl: http://x\nretries: 3\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	t.Setenv(EnvAuthToken, "from-env")
	t.Setenv(EnvBaseURL, "https://override.city.gov")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AuthToken)
	assert.Equal(t, "https://override.city.gov", cfg.BaseURL)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "bad base url", mutate: func(c *Config) { c.BaseURL = "ftp://x" }, wantErr: "baseUrl"},
		{name: "bad override", mutate: func(c *Config) { c.EntityURLs = map[string]string{"a": "nope"} }, wantErr: "entityUrls[a]"},
		{name: "zero timeout", mutate: func(c *Config) { c.TimeoutSeconds = 0 }, wantErr: "timeoutSeconds"},
		{name: "zero concurrency", mutate: func(c *Config) { c.MaxConcurrency = 0 }, wantErr: "maxConcurrency"},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimitPerMinute = -1 }, wantErr: "rateLimitPerMinute"},
		{name: "negative window", mutate: func(c *Config) { c.SuppressDuplicateMinutes = -1 }, wantErr: "suppressDuplicateMinutes"},
		{name: "negative history", mutate: func(c *Config) { c.ResultHistory = -1 }, wantErr: "resultHistory"},
		{name: "blank fallback", mutate: func(c *Config) { c.FallbackEntity = " " }, wantErr: "fallbackEntity"},
		{name: "blank escalation", mutate: func(c *Config) { c.EscalationEntity = "" }, wantErr: "escalationEntity"},
		{name: "bad policy", mutate: func(c *Config) { c.FallbackPolicy = "never" }, wantErr: "unknown fallback policy"},
		{name: "bad source", mutate: func(c *Config) { c.Source.URL = "alerts" }, wantErr: "source.url"},
		{name: "zero take", mutate: func(c *Config) { c.Source.URL = "http://a"; c.Source.Take = 0 }, wantErr: "source.take"},
		{name: "kafka without topic", mutate: func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }, wantErr: "kafka.topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.BaseURL = "http://localhost:9000"
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRoutingTable(t *testing.T) {
	cfg := Default()
	table, err := cfg.RoutingTable()
	require.NoError(t, err)
	assert.Greater(t, table.Len(), 0)

	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n- pattern: INCENDIO\n  entities: [fire-department]\n"), 0o600))
	cfg.RoutingTablePath = path
	table, err = cfg.RoutingTable()
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	cfg.RoutingTablePath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.RoutingTable()
	assert.Error(t, err)
}

func TestEngineOptions_PollingDefaultsWindow(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0, cfg.EngineOptions().SuppressDuplicateMinutes)

	cfg.Source.URL = "https://alerts.city.gov"
	assert.Equal(t, PollSuppressDuplicateMinutes, cfg.EngineOptions().SuppressDuplicateMinutes)

	cfg.SuppressDuplicateMinutes = 15
	assert.Equal(t, 15, cfg.EngineOptions().SuppressDuplicateMinutes)
}
