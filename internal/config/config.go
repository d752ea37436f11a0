// Package config loads the dispatcher configuration from a YAML file and the
// environment. CLI flags are layered on top by the caller before Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/smartcity/dispatcher/internal/classifier"
	"github.com/smartcity/dispatcher/internal/engine"
	"github.com/smartcity/dispatcher/internal/indexer"
	"github.com/smartcity/dispatcher/internal/notifier"
	"github.com/smartcity/dispatcher/internal/routing"
	"github.com/smartcity/dispatcher/internal/types"
	"github.com/smartcity/dispatcher/internal/util"
)

// Environment variables that override file values.
const (
	EnvAuthToken = "DISPATCHER_AUTH_TOKEN"
	EnvBaseURL   = "DISPATCHER_BASE_URL"
)

// PollSuppressDuplicateMinutes is the duplicate window used while polling
// when suppressDuplicateMinutes is not set.
const PollSuppressDuplicateMinutes = 60

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// SourceConfig configures pull ingestion from the alerts API.
type SourceConfig struct {
	// URL of the alerts API; empty disables polling.
	URL                 string `json:"url,omitempty"`
	Take                int    `json:"take,omitempty"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds,omitempty"`
	TimeoutSeconds      int    `json:"timeoutSeconds,omitempty"`
}

// KafkaConfig configures push ingestion from a Kafka topic.
type KafkaConfig struct {
	Brokers []string `json:"brokers,omitempty"`
	Topic   string   `json:"topic,omitempty"`
	GroupID string   `json:"groupId,omitempty"`
}

// Config is the complete dispatcher configuration.
type Config struct {
	// Delivery
	BaseURL            string            `json:"baseUrl,omitempty"`
	EntityURLs         map[string]string `json:"entityUrls,omitempty"`
	AuthToken          string            `json:"authToken,omitempty"`
	InsecureSkipVerify bool              `json:"insecureSkipVerify,omitempty"`
	TimeoutSeconds     int               `json:"timeoutSeconds,omitempty"`
	MaxConcurrency     int               `json:"maxConcurrency,omitempty"`
	RateLimitPerMinute int               `json:"rateLimitPerMinute,omitempty"`
	SystemID           string            `json:"systemId,omitempty"`

	// Classification
	RoutingTablePath string   `json:"routingTablePath,omitempty"`
	FallbackEntity   string   `json:"fallbackEntity,omitempty"`
	FallbackPolicy   string   `json:"fallbackPolicy,omitempty"`
	EscalationEntity string   `json:"escalationEntity,omitempty"`
	CriticalLevels   []string `json:"criticalLevels,omitempty"`

	// Processing
	// SuppressDuplicateMinutes is the cross-batch duplicate window. 0 disables
	// it, except while polling (see EngineOptions).
	SuppressDuplicateMinutes int `json:"suppressDuplicateMinutes,omitempty"`
	// ResultHistory is the number of recent results served by the API.
	// 0 disables the result index.
	ResultHistory int `json:"resultHistory,omitempty"`

	// Ingestion and serving
	ListenAddress string       `json:"listenAddress,omitempty"`
	Source        SourceConfig `json:"source,omitempty"`
	Kafka         KafkaConfig  `json:"kafka,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`
}

// Default returns the production defaults.
func Default() Config {
	copts := classifier.DefaultOptions()
	dopts := notifier.DefaultDispatcherOptions()
	return Config{
		TimeoutSeconds:   dopts.TimeoutSeconds,
		MaxConcurrency:   dopts.MaxConcurrency,
		SystemID:         dopts.SystemID,
		FallbackEntity:   string(copts.FallbackEntity),
		FallbackPolicy:   string(copts.FallbackPolicy),
		EscalationEntity: string(copts.EscalationEntity),
		CriticalLevels:   copts.CriticalLevels,
		ResultHistory:    indexer.DefaultCapacity,
		ListenAddress:    ":8080",
		Source: SourceConfig{
			Take:                10,
			PollIntervalSeconds: 60,
			TimeoutSeconds:      5,
		},
		Kafka: KafkaConfig{
			Topic:   "correlated.alerts",
			GroupID: "alert-dispatcher",
		},
		LogLevel: "info",
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAuthToken); v != "" {
		c.AuthToken = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
}

// Validate fails fast on any setting that would break processing.
func (c Config) Validate() error {
	var errs []error
	if c.BaseURL == "" && len(c.EntityURLs) == 0 {
		errs = append(errs, fmt.Errorf("baseUrl or entityUrls is required"))
	}
	if c.BaseURL != "" {
		if err := notifier.ValidateURL(c.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("baseUrl: %w", err))
		}
	}
	for entity, u := range c.EntityURLs {
		if err := notifier.ValidateURL(u); err != nil {
			errs = append(errs, fmt.Errorf("entityUrls[%s]: %w", entity, err))
		}
	}
	if c.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("timeoutSeconds must be positive"))
	}
	if c.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("maxConcurrency must be positive"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rateLimitPerMinute must not be negative"))
	}
	if c.SuppressDuplicateMinutes < 0 {
		errs = append(errs, fmt.Errorf("suppressDuplicateMinutes must not be negative"))
	}
	if c.ResultHistory < 0 {
		errs = append(errs, fmt.Errorf("resultHistory must not be negative"))
	}
	if strings.TrimSpace(c.FallbackEntity) == "" {
		errs = append(errs, fmt.Errorf("fallbackEntity is required"))
	}
	if strings.TrimSpace(c.EscalationEntity) == "" {
		errs = append(errs, fmt.Errorf("escalationEntity is required"))
	}
	if _, err := classifier.ParseFallbackPolicy(c.FallbackPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Source.URL != "" {
		if err := notifier.ValidateURL(c.Source.URL); err != nil {
			errs = append(errs, fmt.Errorf("source.url: %w", err))
		}
		if c.Source.Take <= 0 {
			errs = append(errs, fmt.Errorf("source.take must be positive"))
		}
		if c.Source.PollIntervalSeconds <= 0 {
			errs = append(errs, fmt.Errorf("source.pollIntervalSeconds must be positive"))
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, fmt.Errorf("kafka.topic is required when brokers are set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// RoutingTable loads the configured table, or the built-in one.
func (c Config) RoutingTable() (*routing.Table, error) {
	if c.RoutingTablePath == "" {
		return routing.Default(), nil
	}
	return routing.LoadFile(c.RoutingTablePath)
}

// ClassifierOptions maps the configuration onto classifier.Options.
func (c Config) ClassifierOptions() classifier.Options {
	return classifier.Options{
		FallbackPolicy:   classifier.FallbackPolicy(strings.TrimSpace(c.FallbackPolicy)),
		FallbackEntity:   types.EntityID(c.FallbackEntity),
		EscalationEntity: types.EntityID(c.EscalationEntity),
		CriticalLevels:   util.TrimAll(c.CriticalLevels),
	}
}

// DispatcherOptions maps the configuration onto notifier.DispatcherOptions.
func (c Config) DispatcherOptions() notifier.DispatcherOptions {
	return notifier.DispatcherOptions{
		MaxConcurrency:     c.MaxConcurrency,
		TimeoutSeconds:     c.TimeoutSeconds,
		RateLimitPerMinute: c.RateLimitPerMinute,
		SystemID:           c.SystemID,
	}
}

// SenderConfig maps the configuration onto notifier.HTTPSenderConfig.
func (c Config) SenderConfig() notifier.HTTPSenderConfig {
	return notifier.HTTPSenderConfig{
		BaseURL:            c.BaseURL,
		EntityURLs:         c.EntityURLs,
		TimeoutSeconds:     c.TimeoutSeconds,
		InsecureSkipVerify: c.InsecureSkipVerify,
		AuthToken:          c.AuthToken,
	}
}

// EngineOptions maps the configuration onto engine.Options. Polling re-reads
// the latest alerts on every tick, so with a source URL and no explicit
// window the window defaults to PollSuppressDuplicateMinutes.
func (c Config) EngineOptions() engine.Options {
	window := c.SuppressDuplicateMinutes
	if window == 0 && c.Source.URL != "" {
		window = PollSuppressDuplicateMinutes
	}
	return engine.Options{SuppressDuplicateMinutes: window}
}
