package notifier

import "github.com/smartcity/dispatcher/internal/types"

// Aggregate folds per-entity outcomes into a summary. It never fails; an
// empty outcome list yields a summary with Total 0.
func Aggregate(alertID string, outcomes []types.DispatchOutcome) types.DispatchSummary {
	summary := types.DispatchSummary{
		AlertID:  alertID,
		Outcomes: make([]types.DispatchOutcome, len(outcomes)),
		Total:    len(outcomes),
	}
	copy(summary.Outcomes, outcomes)
	for _, o := range outcomes {
		if o.Success {
			summary.Succeeded++
		}
	}
	return summary
}
