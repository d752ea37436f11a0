package types

import "time"

// EntityID identifies a responder entity (e.g., "traffic-police").
type EntityID string

// ClassificationResult is the deduplicated set of entities an alert routes to.
type ClassificationResult struct {
	AlertID string `json:"alertId"`
	// Entities is sorted and free of duplicates.
	Entities []EntityID `json:"entities"`

	// Audit fields. They never influence dispatch.
	FallbackApplied bool     `json:"fallbackApplied,omitempty"`
	Escalated       bool     `json:"escalated,omitempty"`
	UnknownTypes    []string `json:"unknownTypes,omitempty"`
}

// Empty reports whether the alert requires no dispatch.
func (r ClassificationResult) Empty() bool {
	return len(r.Entities) == 0
}

// Contains reports whether e is a target of the alert.
func (r ClassificationResult) Contains(e EntityID) bool {
	for _, got := range r.Entities {
		if got == e {
			return true
		}
	}
	return false
}

// DispatchOutcome is the result of delivering one alert to one entity.
type DispatchOutcome struct {
	EntityID   EntityID  `json:"entityId"`
	AlertID    string    `json:"alertId"`
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	LatencyMs  int64     `json:"latencyMs"`
}

// DispatchSummary collects every outcome for one alert.
type DispatchSummary struct {
	AlertID   string            `json:"alertId"`
	Outcomes  []DispatchOutcome `json:"outcomes"`
	Succeeded int               `json:"succeeded"`
	Total     int               `json:"total"`
}

// Failed returns the number of unsuccessful outcomes.
func (s DispatchSummary) Failed() int {
	return s.Total - s.Succeeded
}

// AlertState is a step of the per-alert processing state machine.
type AlertState string

const (
	StateReceived         AlertState = "Received"
	StateClassified       AlertState = "Classified"
	StateNoDispatchNeeded AlertState = "NoDispatchNeeded" // terminal
	StateDispatching      AlertState = "Dispatching"
	StateSummarized       AlertState = "Summarized" // terminal
	StateRejected         AlertState = "Rejected"   // terminal, malformed record
	StateDuplicate        AlertState = "Duplicate"  // terminal, alert id already processed
	StateFailed           AlertState = "Failed"     // terminal, unexpected internal failure
)

// Terminal reports whether no further transition is allowed from s.
func (s AlertState) Terminal() bool {
	switch s {
	case StateNoDispatchNeeded, StateSummarized, StateRejected, StateDuplicate, StateFailed:
		return true
	default:
		return false
	}
}
