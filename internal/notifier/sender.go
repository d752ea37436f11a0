package notifier

import (
	"context"
	"fmt"

	"github.com/smartcity/dispatcher/internal/types"
)

// Sender is the interface for responder delivery channels.
// Implementations perform exactly one delivery attempt per call.
type Sender interface {
	// Name returns the sender's identifier (e.g., "http").
	Name() string

	// Send delivers payload to entity. It returns the status code reported by
	// the channel (0 when none was received) and a non-nil error on failure.
	Send(ctx context.Context, entity types.EntityID, payload DispatchPayload) (int, error)
}

// DeliveryError is returned by senders when an entity endpoint could not be
// reached or answered with a non-2xx status.
type DeliveryError struct {
	Entity types.EntityID
	// StatusCode is 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("deliver to %s: HTTP %d: %v", e.Entity, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("deliver to %s: HTTP %d", e.Entity, e.StatusCode)
	}
	return fmt.Sprintf("deliver to %s: %v", e.Entity, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
