package engine

import (
	"errors"
	"fmt"

	"github.com/smartcity/dispatcher/internal/types"
)

// ErrIllegalTransition is returned when a state change is not allowed.
var ErrIllegalTransition = errors.New("illegal state transition")

// transitions lists the allowed next states. Failed is reachable from any
// non-terminal state and is handled separately.
var transitions = map[types.AlertState][]types.AlertState{
	types.StateReceived:    {types.StateClassified, types.StateRejected, types.StateDuplicate},
	types.StateClassified:  {types.StateNoDispatchNeeded, types.StateDispatching},
	types.StateDispatching: {types.StateSummarized},
}

// tracker follows one alert through the processing state machine.
type tracker struct {
	state   types.AlertState
	history []types.AlertState
}

func newTracker() *tracker {
	return &tracker{
		state:   types.StateReceived,
		history: []types.AlertState{types.StateReceived},
	}
}

// advance moves to next, refusing transitions the state machine forbids.
func (t *tracker) advance(next types.AlertState) error {
	if t.state.Terminal() {
		return fmt.Errorf("%w: %s is terminal, cannot enter %s", ErrIllegalTransition, t.state, next)
	}
	if next == types.StateFailed {
		t.set(next)
		return nil
	}
	for _, allowed := range transitions[t.state] {
		if allowed == next {
			t.set(next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.state, next)
}

func (t *tracker) set(s types.AlertState) {
	t.state = s
	t.history = append(t.history, s)
}
