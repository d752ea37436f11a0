package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"sigs.k8s.io/yaml"

	"github.com/smartcity/dispatcher/internal/types"
)

// ClassifyResult is the result of a classify command.
type ClassifyResult struct {
	Results  []ClassifyRow `json:"results"`
	Total    int           `json:"total"`
	Rejected int           `json:"rejected"`
}

// ClassifyRow is the classification of one alert record.
type ClassifyRow struct {
	AlertID         string           `json:"alertId"`
	Types           []string         `json:"types"`
	Entities        []types.EntityID `json:"entities"`
	FallbackApplied bool             `json:"fallbackApplied,omitempty"`
	Escalated       bool             `json:"escalated,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// RoutesResult is the result of a routes command.
type RoutesResult struct {
	Rules []RouteRow `json:"rules"`
	Total int        `json:"total"`
}

// RouteRow is one routing rule.
type RouteRow struct {
	Order    int              `json:"order"`
	Pattern  string           `json:"pattern"`
	Entities []types.EntityID `json:"entities"`
}

// outputResult outputs the result in the specified format.
func outputResult(result interface{}, format string) error {
	switch format {
	case "json":
		return outputJSON(result)
	case "yaml":
		return outputYAML(result)
	default:
		return outputTable(result)
	}
}

func outputJSON(result interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(result interface{}) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func outputTable(result interface{}) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case ClassifyResult:
		return outputClassifyTable(w, r)
	case RoutesResult:
		return outputRoutesTable(w, r)
	default:
		// Fall back to JSON for unknown types
		return outputJSON(result)
	}
}

func outputClassifyTable(w *tabwriter.Writer, r ClassifyResult) error {
	fmt.Fprintf(w, "TOTAL\t%d\n", r.Total)
	fmt.Fprintf(w, "REJECTED\t%d\n\n", r.Rejected)

	fmt.Fprintln(w, "ALERT\tTYPES\tENTITIES\tFLAGS")
	for _, row := range r.Results {
		entities := joinEntities(row.Entities)
		if row.Error != "" {
			entities = "REJECTED: " + row.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			row.AlertID, strings.Join(row.Types, ", "), entities, flags(row))
	}

	return nil
}

func outputRoutesTable(w *tabwriter.Writer, r RoutesResult) error {
	fmt.Fprintf(w, "TOTAL\t%d\n\n", r.Total)

	fmt.Fprintln(w, "#\tPATTERN\tENTITIES")
	for _, row := range r.Rules {
		fmt.Fprintf(w, "%d\t%s\t%s\n", row.Order, row.Pattern, joinEntities(row.Entities))
	}

	return nil
}

func joinEntities(entities []types.EntityID) string {
	if len(entities) == 0 {
		return "-"
	}
	parts := make([]string, len(entities))
	for i, e := range entities {
		parts[i] = string(e)
	}
	return strings.Join(parts, ", ")
}

func flags(row ClassifyRow) string {
	var f []string
	if row.FallbackApplied {
		f = append(f, "fallback")
	}
	if row.Escalated {
		f = append(f, "escalated")
	}
	return strings.Join(f, ",")
}
