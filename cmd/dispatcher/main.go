// dispatcher classifies emergency alerts and delivers them to the responder
// entities in charge.
//
// Installation:
//
//	go build -o dispatcher ./cmd/dispatcher
//
// Usage:
//
//	dispatcher serve --config dispatcher.yaml
//	dispatcher consume --brokers kafka-1:9092
//	dispatcher classify -f alerts.json
//	dispatcher routes -o yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	outputFmt  string
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dispatcher",
		Short: "Classify emergency alerts and dispatch them to responders",
		Long: `dispatcher routes emergency alert records to the responder entities
(police, fire, medical, traffic) responsible for each event type and
delivers one notification per entity.

Alerts arrive by HTTP push, by polling the alerts API, or from a Kafka
topic. Routing rules come from the built-in table or a YAML file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error). Overrides the config file.")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(consumeCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(routesCmd())

	return rootCmd
}
