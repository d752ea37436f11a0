package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedAlert is returned when an AlertRecord lacks a required field.
// Callers treat it as a per-alert skip signal, never as a batch failure.
var ErrMalformedAlert = errors.New("malformed alert")

// SubAlert is one classified event inside a composite alert record.
type SubAlert struct {
	Type    string `json:"type"`
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AlertRecord is an emergency alert as received from an ingestion source.
// A record carries either a flat Type (with an optional Level) or a list of
// SubAlerts. It is treated as immutable once decoded.
type AlertRecord struct {
	// Identity
	AlertID       string `json:"alert_id"`
	CorrelationID string `json:"correlation_id,omitempty"`

	// Classification input
	Type   string     `json:"type,omitempty"`
	Level  string     `json:"level,omitempty"`
	Alerts []SubAlert `json:"alerts,omitempty"`

	// Event metadata
	EventType   string       `json:"event_type,omitempty"`
	Zone        string       `json:"zone,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Score       *float64     `json:"score,omitempty"`
	Timestamp   *Timestamp   `json:"timestamp,omitempty"`
	WindowStart *Timestamp   `json:"window_start,omitempty"`
	WindowEnd   *Timestamp   `json:"window_end,omitempty"`

	// Details is free-form and passed through to responders untouched.
	Details json.RawMessage `json:"details,omitempty"`
}

// IsComposite reports whether the record carries a sub-alert list.
func (a AlertRecord) IsComposite() bool {
	return len(a.Alerts) > 0
}

// Types returns the alert types carried by the record, in record order.
func (a AlertRecord) Types() []string {
	if !a.IsComposite() {
		return []string{a.Type}
	}
	out := make([]string, 0, len(a.Alerts))
	for _, s := range a.Alerts {
		out = append(out, s.Type)
	}
	return out
}

// Validate checks the required fields. The returned error wraps ErrMalformedAlert.
func (a AlertRecord) Validate() error {
	if strings.TrimSpace(a.AlertID) == "" {
		return fmt.Errorf("%w: missing alert identifier", ErrMalformedAlert)
	}
	if !a.IsComposite() {
		if strings.TrimSpace(a.Type) == "" {
			return fmt.Errorf("%w: alert %s has no type", ErrMalformedAlert, a.AlertID)
		}
		return nil
	}
	for i, s := range a.Alerts {
		if strings.TrimSpace(s.Type) == "" {
			return fmt.Errorf("%w: alert %s sub-alert %d has no type", ErrMalformedAlert, a.AlertID, i)
		}
	}
	return nil
}

// UnmarshalJSON accepts both the snake_case wire format and the camelCase
// aliases emitted by the alerts API. snake_case wins when both are present.
func (a *AlertRecord) UnmarshalJSON(data []byte) error {
	type plain AlertRecord
	var aux struct {
		plain
		AlertIDAlias       string     `json:"alertId"`
		CorrelationIDAlias string     `json:"correlationId"`
		EventTypeAlias     string     `json:"eventType"`
		WindowStartAlias   *Timestamp `json:"windowStart"`
		WindowEndAlias     *Timestamp `json:"windowEnd"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = AlertRecord(aux.plain)
	if a.AlertID == "" {
		a.AlertID = aux.AlertIDAlias
	}
	if a.CorrelationID == "" {
		a.CorrelationID = aux.CorrelationIDAlias
	}
	if a.EventType == "" {
		a.EventType = aux.EventTypeAlias
	}
	if a.WindowStart == nil {
		a.WindowStart = aux.WindowStartAlias
	}
	if a.WindowEnd == nil {
		a.WindowEnd = aux.WindowEndAlias
	}
	return nil
}

// timestampLayouts are tried in order when decoding a Timestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp is a time.Time that decodes RFC 3339 values with or without a
// zone designator. Zone-less values are taken as UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC()}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}
