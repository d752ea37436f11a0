// Package indexer provides a concurrent-safe, bounded in-memory store of
// recent alert results.
//
// # Contract
//
// The Indexer stores engine.Result values keyed by alert id. It supports
// O(1) upsert and lookup by id and O(n) queries by state and target entity.
// When the store is full the oldest result is evicted first. Nothing is
// persisted; a restart starts empty.
//
// Thread safety: all methods are safe for concurrent use via sync.RWMutex.
//
// # Methods
//
//	Record(res engine.Result)
//	  - Stores res, replacing an earlier result with the same alert id.
//	  - Results without an alert id are ignored.
//	  - A Duplicate result never replaces the result of the original alert.
//
//	Get(alertID string) (engine.Result, bool)
//
//	Query(q Query) []engine.Result
//	  - Newest first, filtered by state and entity, truncated to q.Limit.
//
//	Count() int
package indexer
