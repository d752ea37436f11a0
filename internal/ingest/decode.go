package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/smartcity/dispatcher/internal/types"
)

// DecodeError reports a batch element that could not be decoded.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a single JSON alert record.
func Decode(data []byte) (types.AlertRecord, error) {
	var a types.AlertRecord
	if err := json.Unmarshal(data, &a); err != nil {
		return types.AlertRecord{}, fmt.Errorf("decode alert: %w", err)
	}
	return a, nil
}

// DecodeBatch parses a JSON array of alert records element by element, so
// one bad record never poisons the rest. A body that is not a JSON array
// returns an error and no records.
func DecodeBatch(data []byte) ([]types.AlertRecord, []*DecodeError, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode alert batch: %w", err)
	}

	alerts := make([]types.AlertRecord, 0, len(raw))
	var errs []*DecodeError
	for i, r := range raw {
		a, err := Decode(r)
		if err != nil {
			errs = append(errs, &DecodeError{Index: i, Err: err})
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, errs, nil
}
