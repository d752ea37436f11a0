package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	a, err := Decode([]byte(`{"alertId":"a-1","type":"INCENDIO REPORTADO","windowStart":"2024-05-01T12:00:00"}`))
	require.NoError(t, err)
	assert.Equal(t, "a-1", a.AlertID)
	require.NotNil(t, a.WindowStart)

	_, err = Decode([]byte(`{"alert_id":`))
	assert.Error(t, err)
}

func TestDecodeBatch_SkipsBadElements(t *testing.T) {
	body := `[
		{"alert_id":"a-1","type":"INCENDIO REPORTADO"},
		{"alert_id":"a-2","timestamp":"yesterday"},
		"not an object",
		{"alert_id":"a-4","alerts":[{"type":"RUIDO EXCESIVO","level":"CRÍTICO"}]}
	]`
	alerts, errs, err := DecodeBatch([]byte(body))
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a-1", alerts[0].AlertID)
	assert.Equal(t, "a-4", alerts[1].AlertID)

	require.Len(t, errs, 2)
	assert.Equal(t, 1, errs[0].Index)
	assert.Equal(t, 2, errs[1].Index)
	assert.Contains(t, errs[0].Error(), "record 1")
}

func TestDecodeBatch_EmptyAndInvalid(t *testing.T) {
	for _, body := range []string{"", "  ", "null", "[]"} {
		alerts, errs, err := DecodeBatch([]byte(body))
		require.NoError(t, err, "body %q", body)
		assert.Empty(t, alerts)
		assert.Empty(t, errs)
	}

	_, _, err := DecodeBatch([]byte(`{"alert_id":"a-1"}`))
	assert.Error(t, err)
}
