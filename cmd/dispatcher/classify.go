package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/ingest"
	"github.com/smartcity/dispatcher/internal/types"
)

func classifyCmd() *cobra.Command {
	var (
		o    overrides
		file string
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Dry-run classification of alert records",
		Long: `Classify alert records without dispatching them. Input is a single
JSON record or a JSON array of records, read from a file or stdin.

Examples:
  # Classify a batch exported from the alerts API
  dispatcher classify -f alerts.json

  # Try the other fallback policy
  echo '{"alert_id":"a","type":"REGISTRO VEHICULAR"}' | \
    dispatcher classify --fallback-policy fallbackOnEmptyResult -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}
			c, err := buildClassifier(cfg, zap.NewNop())
			if err != nil {
				return err
			}

			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			alerts, err := decodeInput(data)
			if err != nil {
				return err
			}

			result := ClassifyResult{Total: len(alerts)}
			for _, a := range alerts {
				row := ClassifyRow{AlertID: a.AlertID, Types: a.Types()}
				cr, err := c.Classify(a)
				if err != nil {
					row.Error = err.Error()
					result.Rejected++
				} else {
					row.Entities = cr.Entities
					row.FallbackApplied = cr.FallbackApplied
					row.Escalated = cr.Escalated
				}
				result.Results = append(result.Results, row)
			}
			return outputResult(result, outputFmt)
		},
	}

	addClassificationFlags(cmd, &o)
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Input file, or - for stdin.")

	return cmd
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

// decodeInput accepts a single record or an array. Undecodable array
// elements fail the whole command so the user sees every problem at once.
func decodeInput(data []byte) ([]types.AlertRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("no input")
	}
	if trimmed[0] != '[' {
		a, err := ingest.Decode(trimmed)
		if err != nil {
			return nil, err
		}
		return []types.AlertRecord{a}, nil
	}

	alerts, decodeErrs, err := ingest.DecodeBatch(trimmed)
	if err != nil {
		return nil, err
	}
	if len(decodeErrs) > 0 {
		msgs := make([]error, len(decodeErrs))
		for i, de := range decodeErrs {
			msgs[i] = de
		}
		return nil, fmt.Errorf("%d undecodable records: %w", len(decodeErrs), errors.Join(msgs...))
	}
	return alerts, nil
}
