// Package testutil provides shared test helpers for the dispatcher project.
// Import this in test files to avoid duplicating alert builders and fixtures.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/classifier"
	"github.com/smartcity/dispatcher/internal/routing"
	"github.com/smartcity/dispatcher/internal/types"
)

// MakeAlert creates a flat alert record with the given identifier and type.
func MakeAlert(id, alertType string) types.AlertRecord {
	return types.AlertRecord{
		AlertID:       id,
		CorrelationID: "corr-" + id,
		Type:          alertType,
		Zone:          "Zona 10",
	}
}

// MakeCompositeAlert creates a composite alert record with one sub-alert per
// type, all at the given level.
func MakeCompositeAlert(id, level string, alertTypes ...string) types.AlertRecord {
	subs := make([]types.SubAlert, 0, len(alertTypes))
	for _, t := range alertTypes {
		subs = append(subs, types.SubAlert{Type: t, Level: level})
	}
	return types.AlertRecord{
		AlertID:       id,
		CorrelationID: "corr-" + id,
		EventType:     "citizen.report",
		Zone:          "Zona 1",
		Alerts:        subs,
	}
}

// Entities converts strings to entity identifiers.
func Entities(s ...string) []types.EntityID {
	out := make([]types.EntityID, len(s))
	for i, v := range s {
		out[i] = types.EntityID(v)
	}
	return out
}

// NewClassifier builds a classifier over the built-in routing table.
// Fails the test immediately if construction fails.
func NewClassifier(t *testing.T, opts classifier.Options) *classifier.Classifier {
	t.Helper()
	c, err := classifier.New(routing.Default(), zap.NewNop(), opts)
	require.NoError(t, err)
	return c
}
