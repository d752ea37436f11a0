package main

import (
	"github.com/spf13/cobra"
)

func routesCmd() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the routing table in evaluation order",
		Long: `Print the routing table the classifier evaluates, in order. Rules with
no entities mark informative-only alert types.

Examples:
  dispatcher routes
  dispatcher routes --routing-table routes.yaml -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}
			table, err := cfg.RoutingTable()
			if err != nil {
				return err
			}

			result := RoutesResult{}
			for i, r := range table.Rules() {
				result.Rules = append(result.Rules, RouteRow{
					Order:    i + 1,
					Pattern:  r.Pattern,
					Entities: r.Entities,
				})
			}
			result.Total = len(result.Rules)
			return outputResult(result, outputFmt)
		},
	}

	cmd.Flags().StringVar(&o.routingTable, "routing-table", "", "Path to a YAML routing table. Defaults to the built-in table.")

	return cmd
}
