// Package notifier delivers classified alerts to responder entities and
// aggregates the per-entity outcomes.
//
// # Contract
//
// The Dispatcher:
//  1. Receives an AlertRecord and the entity set produced by the classifier
//  2. Builds one normalized DispatchPayload per entity
//  3. Delivers each payload through a Sender (HTTP by default):
//     POST {baseUrl}/dispatch/{entityId}, or a per-entity override URL
//  4. Converts every failure (transport error, timeout, non-2xx, rate-limit
//     wait failure, sender panic) into a failed DispatchOutcome for that
//     entity only. Nothing is raised to the caller.
//
// DispatchAll fans out one call per entity, bounded by MaxConcurrency. Each
// call runs under its own timeout and writes to its own result slot, so a
// slow or failing entity never cancels its siblings.
//
// # Retries
//
// The Dispatcher never retries. Retry and backoff belong to the caller or
// to the responder endpoint.
//
// # Rate Limiting
//
// Optional token bucket per entity (RateLimitPerMinute). Calls wait for a
// token; a call whose context ends while waiting fails rather than being
// dropped silently.
//
// # Types
//
//	type Sender interface {
//	    Name() string
//	    Send(ctx context.Context, entity types.EntityID, payload DispatchPayload) (int, error)
//	}
//
//	func NewDispatcher(sender Sender, logger *zap.Logger, opts DispatcherOptions) *Dispatcher
//	func (d *Dispatcher) Dispatch(ctx context.Context, entity types.EntityID, a types.AlertRecord) types.DispatchOutcome
//	func (d *Dispatcher) DispatchAll(ctx context.Context, a types.AlertRecord, entities []types.EntityID) []types.DispatchOutcome
//	func Aggregate(alertID string, outcomes []types.DispatchOutcome) types.DispatchSummary
package notifier
