package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/ingest"
	"github.com/smartcity/dispatcher/internal/types"
)

func consumeCmd() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume alerts from a Kafka topic and dispatch them",
		Long: `Consume one JSON alert record per Kafka message, classify it, and
dispatch it to every target entity. Messages are committed after
processing; undecodable messages are committed and skipped.

Examples:
  dispatcher consume --brokers kafka-1:9092,kafka-2:9092 --topic correlated.alerts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			consumer, err := ingest.NewStreamConsumer(logger, ingest.StreamConfig{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
				GroupID: cfg.Kafka.GroupID,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := consumer.Close(); err != nil {
					logger.Warn("Failed to close stream consumer", zap.Error(err))
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.dispatcher.Start(ctx)
			a.engine.Start(ctx)
			err = consumer.Run(ctx, processAlert(a))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	addDeliveryFlags(cmd, &o)
	cmd.Flags().StringVar(&o.brokers, "brokers", "", "Comma-separated Kafka broker addresses.")
	cmd.Flags().StringVar(&o.topic, "topic", "", "Kafka topic (default correlated.alerts).")
	cmd.Flags().StringVar(&o.groupID, "group-id", "", "Kafka consumer group (default alert-dispatcher).")

	return cmd
}

// processAlert adapts the engine to a stream handler. Only unexpected
// failures are reported; rejected and duplicate alerts are normal outcomes.
func processAlert(a *app) ingest.AlertHandler {
	return func(ctx context.Context, alert types.AlertRecord) error {
		res := a.engine.Process(ctx, alert)
		if res.State == types.StateFailed {
			return errors.New(res.Error)
		}
		return nil
	}
}
