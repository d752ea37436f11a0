package notifier

import (
	"encoding/json"
	"time"

	"github.com/smartcity/dispatcher/internal/types"
)

// PayloadSchemaVersion lets responders detect breaking changes.
const PayloadSchemaVersion = "1"

// DispatchPayload is the JSON body delivered to a responder entity.
type DispatchPayload struct {
	SchemaVersion string `json:"schema_version"`

	// Alert identity
	AlertID       string `json:"alert_id"`
	CorrelationID string `json:"correlation_id,omitempty"`

	// What happened
	Type   string           `json:"type,omitempty"`
	Level  string           `json:"level,omitempty"`
	Alerts []types.SubAlert `json:"alerts,omitempty"`
	Score  *float64         `json:"score,omitempty"`

	// Where and when
	EventType   string             `json:"event_type,omitempty"`
	Zone        string             `json:"zone,omitempty"`
	Coordinates *types.Coordinates `json:"coordinates,omitempty"`
	Timestamp   *types.Timestamp   `json:"timestamp,omitempty"`
	WindowStart *types.Timestamp   `json:"window_start,omitempty"`
	WindowEnd   *types.Timestamp   `json:"window_end,omitempty"`

	Details json.RawMessage `json:"details,omitempty"`

	// Delivery
	EntityID     types.EntityID  `json:"entity_id"`
	DispatchedBy string          `json:"dispatched_by"`
	DispatchedAt types.Timestamp `json:"dispatched_at"`
}

// PayloadBuilder creates DispatchPayloads stamped with the dispatching system.
type PayloadBuilder struct {
	systemID string
	now      func() time.Time
}

// NewPayloadBuilder creates a PayloadBuilder. An empty systemID defaults to
// "alert-dispatcher".
func NewPayloadBuilder(systemID string) *PayloadBuilder {
	if systemID == "" {
		systemID = "alert-dispatcher"
	}
	return &PayloadBuilder{systemID: systemID, now: time.Now}
}

// Build normalizes a for delivery to entity. Slices and raw details are
// copied so the payload never aliases the record.
func (b *PayloadBuilder) Build(a types.AlertRecord, entity types.EntityID) DispatchPayload {
	p := DispatchPayload{
		SchemaVersion: PayloadSchemaVersion,
		AlertID:       a.AlertID,
		CorrelationID: a.CorrelationID,
		Type:          a.Type,
		Level:         a.Level,
		Score:         a.Score,
		EventType:     a.EventType,
		Zone:          a.Zone,
		Coordinates:   a.Coordinates,
		Timestamp:     a.Timestamp,
		WindowStart:   a.WindowStart,
		WindowEnd:     a.WindowEnd,
		EntityID:      entity,
		DispatchedBy:  b.systemID,
		DispatchedAt:  types.Timestamp{Time: b.now().UTC()},
	}
	if len(a.Alerts) > 0 {
		p.Alerts = append([]types.SubAlert(nil), a.Alerts...)
	}
	if len(a.Details) > 0 {
		p.Details = append(json.RawMessage(nil), a.Details...)
	}
	return p
}
