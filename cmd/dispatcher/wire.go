package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/smartcity/dispatcher/internal/classifier"
	"github.com/smartcity/dispatcher/internal/config"
	"github.com/smartcity/dispatcher/internal/engine"
	"github.com/smartcity/dispatcher/internal/indexer"
	"github.com/smartcity/dispatcher/internal/notifier"
	"github.com/smartcity/dispatcher/internal/util"
)

// overrides holds CLI flag values layered on top of the config file.
// A flag only applies when it was set explicitly.
type overrides struct {
	baseURL        string
	routingTable   string
	fallbackPolicy string
	maxConcurrency int
	timeout        int
	listen         string
	sourceURL      string
	pollInterval   int
	brokers        string
	topic          string
	groupID        string
}

func addClassificationFlags(cmd *cobra.Command, o *overrides) {
	cmd.Flags().StringVar(&o.routingTable, "routing-table", "", "Path to a YAML routing table. Defaults to the built-in table.")
	cmd.Flags().StringVar(&o.fallbackPolicy, "fallback-policy", "", "Fallback policy: fallbackOnUnknownOnly or fallbackOnEmptyResult.")
}

func addDeliveryFlags(cmd *cobra.Command, o *overrides) {
	addClassificationFlags(cmd, o)
	cmd.Flags().StringVar(&o.baseURL, "base-url", "", "Responder base URL; alerts are POSTed to {base-url}/dispatch/{entity}.")
	cmd.Flags().IntVar(&o.maxConcurrency, "max-concurrency", 0, "Maximum concurrent deliveries per alert.")
	cmd.Flags().IntVar(&o.timeout, "timeout", 0, "Per-delivery timeout in seconds.")
}

// loadConfig reads the config file and environment, then applies the flags
// that were set on cmd. The result is not validated.
func loadConfig(cmd *cobra.Command, o *overrides) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("base-url") {
		cfg.BaseURL = o.baseURL
	}
	if changed("routing-table") {
		cfg.RoutingTablePath = o.routingTable
	}
	if changed("fallback-policy") {
		cfg.FallbackPolicy = o.fallbackPolicy
	}
	if changed("max-concurrency") {
		cfg.MaxConcurrency = o.maxConcurrency
	}
	if changed("timeout") {
		cfg.TimeoutSeconds = o.timeout
	}
	if changed("listen") {
		cfg.ListenAddress = o.listen
	}
	if changed("source-url") {
		cfg.Source.URL = o.sourceURL
	}
	if changed("poll-interval") {
		cfg.Source.PollIntervalSeconds = o.pollInterval
	}
	if changed("brokers") {
		cfg.Kafka.Brokers = util.SplitCSV(o.brokers)
	}
	if changed("topic") {
		cfg.Kafka.Topic = o.topic
	}
	if changed("group-id") {
		cfg.Kafka.GroupID = o.groupID
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logConfig.Level = zap.NewAtomicLevelAt(lvl)
	return logConfig.Build()
}

func buildClassifier(cfg config.Config, logger *zap.Logger) (*classifier.Classifier, error) {
	table, err := cfg.RoutingTable()
	if err != nil {
		return nil, err
	}
	return classifier.New(table, logger, cfg.ClassifierOptions())
}

// app is the fully wired processing pipeline.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	classifier *classifier.Classifier
	dispatcher *notifier.Dispatcher
	engine     *engine.Engine
	index      *indexer.Indexer // nil when resultHistory is 0
}

// buildApp validates cfg and wires classifier, sender, dispatcher and engine.
// Any failure here is fatal before an alert is processed.
func buildApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := buildClassifier(cfg, logger)
	if err != nil {
		return nil, err
	}
	sender, err := notifier.NewHTTPSender(logger, cfg.SenderConfig())
	if err != nil {
		return nil, err
	}
	d := notifier.NewDispatcher(sender, logger, cfg.DispatcherOptions())

	var idx *indexer.Indexer
	engineOpts := cfg.EngineOptions()
	if cfg.ResultHistory > 0 {
		idx = indexer.New(cfg.ResultHistory)
		engineOpts.Recorder = idx
	}

	logger.Info("Dispatcher configured",
		zap.String("version", version),
		zap.String("base_url", notifier.RedactURL(cfg.BaseURL)),
		zap.Int("entity_overrides", len(cfg.EntityURLs)),
		zap.Int("rules", c.Table().Len()),
		zap.String("fallback_policy", cfg.FallbackPolicy),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Int("timeout_seconds", cfg.TimeoutSeconds),
		zap.Int("result_history", cfg.ResultHistory),
		zap.Int("suppress_duplicate_minutes", engineOpts.SuppressDuplicateMinutes),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		classifier: c,
		dispatcher: d,
		engine:     engine.New(c, d, logger, engineOpts),
		index:      idx,
	}, nil
}
