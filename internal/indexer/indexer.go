package indexer

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartcity/dispatcher/internal/engine"
	"github.com/smartcity/dispatcher/internal/types"
)

// DefaultCapacity is the number of results kept when New is given zero.
const DefaultCapacity = 1000

var indexedResults = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_indexed_results",
	Help: "Number of alert results held in the in-memory index.",
})

// Query filters a listing. Zero fields match everything.
type Query struct {
	State  types.AlertState
	Entity types.EntityID
	Limit  int
}

// Indexer keeps the most recent alert results in memory.
type Indexer struct {
	mu       sync.RWMutex
	capacity int
	byID     map[string]engine.Result
	order    []string // alert ids, oldest first
}

// New creates an Indexer holding at most capacity results.
func New(capacity int) *Indexer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Indexer{
		capacity: capacity,
		byID:     make(map[string]engine.Result, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Record stores res. It implements engine.Recorder.
func (idx *Indexer) Record(res engine.Result) {
	id := strings.TrimSpace(res.AlertID)
	if id == "" {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.byID[id]; exists {
		if res.State == types.StateDuplicate {
			return
		}
		idx.byID[id] = res
		idx.touch(id)
		return
	}

	if len(idx.order) >= idx.capacity {
		oldest := idx.order[0]
		idx.order = idx.order[1:]
		delete(idx.byID, oldest)
	}
	idx.byID[id] = res
	idx.order = append(idx.order, id)
	indexedResults.Set(float64(len(idx.byID)))
}

// touch moves id to the newest position. Caller holds mu.
func (idx *Indexer) touch(id string) {
	for i, existing := range idx.order {
		if existing == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	idx.order = append(idx.order, id)
}

// Get returns the result stored for alertID.
func (idx *Indexer) Get(alertID string) (engine.Result, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	res, ok := idx.byID[strings.TrimSpace(alertID)]
	return res, ok
}

// Query returns matching results, newest first.
func (idx *Indexer) Query(q Query) []engine.Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := []engine.Result{}
	for i := len(idx.order) - 1; i >= 0; i-- {
		res := idx.byID[idx.order[i]]
		if q.State != "" && res.State != q.State {
			continue
		}
		if q.Entity != "" && !targets(res, q.Entity) {
			continue
		}
		result = append(result, res)
		if q.Limit > 0 && len(result) == q.Limit {
			break
		}
	}
	return result
}

// targets reports whether entity was a classification target of res.
func targets(res engine.Result, entity types.EntityID) bool {
	if res.Classification == nil {
		return false
	}
	for _, e := range res.Classification.Entities {
		if e == entity {
			return true
		}
	}
	return false
}

// Count returns the number of stored results.
func (idx *Indexer) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byID)
}
