package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smartcity/dispatcher/internal/types"
)

func TestAggregate(t *testing.T) {
	outcomes := []types.DispatchOutcome{
		{EntityID: "a", Success: true, StatusCode: 200},
		{EntityID: "b", Success: false, StatusCode: 500, Error: "deliver to b: HTTP 500"},
		{EntityID: "c", Success: true, StatusCode: 202},
	}
	s := Aggregate("alert-1", outcomes)

	assert.Equal(t, "alert-1", s.AlertID)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, outcomes, s.Outcomes)

	outcomes[0].Success = false
	assert.True(t, s.Outcomes[0].Success, "summary must not alias the input")
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate("alert-2", nil)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0, s.Succeeded)
	assert.Empty(t, s.Outcomes)
}
