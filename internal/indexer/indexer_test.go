package indexer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/dispatcher/internal/engine"
	"github.com/smartcity/dispatcher/internal/types"
)

func makeResult(id string, state types.AlertState, entities ...types.EntityID) engine.Result {
	res := engine.Result{AlertID: id, State: state}
	if entities != nil {
		res.Classification = &types.ClassificationResult{AlertID: id, Entities: entities}
	}
	return res
}

func TestRecordAndCount(t *testing.T) {
	idx := New(10)
	assert.Equal(t, 0, idx.Count())

	idx.Record(makeResult("a-1", types.StateSummarized, "red-cross"))
	assert.Equal(t, 1, idx.Count())

	// Same id replaces, count stays 1
	idx.Record(makeResult("a-1", types.StateFailed))
	assert.Equal(t, 1, idx.Count())
	res, ok := idx.Get("a-1")
	require.True(t, ok)
	assert.Equal(t, types.StateFailed, res.State)

	idx.Record(makeResult("a-2", types.StateRejected))
	assert.Equal(t, 2, idx.Count())
}

func TestRecord_IgnoresBlankID(t *testing.T) {
	idx := New(10)
	idx.Record(makeResult("  ", types.StateRejected))
	assert.Equal(t, 0, idx.Count())
}

func TestRecord_DuplicateKeepsOriginal(t *testing.T) {
	idx := New(10)
	idx.Record(makeResult("a-1", types.StateSummarized, "red-cross"))
	idx.Record(makeResult("a-1", types.StateDuplicate))

	res, ok := idx.Get("a-1")
	require.True(t, ok)
	assert.Equal(t, types.StateSummarized, res.State)

	// A duplicate of an id no longer held is stored.
	idx.Record(makeResult("a-2", types.StateDuplicate))
	res, ok = idx.Get("a-2")
	require.True(t, ok)
	assert.Equal(t, types.StateDuplicate, res.State)
}

func TestRecord_EvictsOldest(t *testing.T) {
	idx := New(3)
	for i := 1; i <= 4; i++ {
		idx.Record(makeResult(fmt.Sprintf("a-%d", i), types.StateNoDispatchNeeded))
	}

	assert.Equal(t, 3, idx.Count())
	_, ok := idx.Get("a-1")
	assert.False(t, ok)
	_, ok = idx.Get("a-4")
	assert.True(t, ok)
}

func TestRecord_ReplaceRefreshesAge(t *testing.T) {
	idx := New(2)
	idx.Record(makeResult("a-1", types.StateSummarized))
	idx.Record(makeResult("a-2", types.StateSummarized))
	idx.Record(makeResult("a-1", types.StateFailed))
	idx.Record(makeResult("a-3", types.StateSummarized))

	_, ok := idx.Get("a-1")
	assert.True(t, ok)
	_, ok = idx.Get("a-2")
	assert.False(t, ok)
}

func TestNew_DefaultCapacity(t *testing.T) {
	idx := New(0)
	assert.Equal(t, DefaultCapacity, idx.capacity)
}

func TestGet_NotFound(t *testing.T) {
	idx := New(10)
	_, ok := idx.Get("missing")
	assert.False(t, ok)
}

func TestQuery(t *testing.T) {
	idx := New(10)
	idx.Record(makeResult("a-1", types.StateSummarized, "national-police", "red-cross"))
	idx.Record(makeResult("a-2", types.StateSummarized, "fire-department"))
	idx.Record(makeResult("a-3", types.StateRejected))
	idx.Record(makeResult("a-4", types.StateSummarized, "red-cross"))

	all := idx.Query(Query{})
	require.Len(t, all, 4)
	assert.Equal(t, "a-4", all[0].AlertID, "newest first")
	assert.Equal(t, "a-1", all[3].AlertID)

	rejected := idx.Query(Query{State: types.StateRejected})
	require.Len(t, rejected, 1)
	assert.Equal(t, "a-3", rejected[0].AlertID)

	redCross := idx.Query(Query{Entity: "red-cross"})
	require.Len(t, redCross, 2)
	assert.Equal(t, "a-4", redCross[0].AlertID)
	assert.Equal(t, "a-1", redCross[1].AlertID)

	limited := idx.Query(Query{State: types.StateSummarized, Limit: 2})
	require.Len(t, limited, 2)
	assert.Equal(t, "a-4", limited[0].AlertID)
	assert.Equal(t, "a-2", limited[1].AlertID)

	none := idx.Query(Query{Entity: "army"})
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestConcurrentAccess(t *testing.T) {
	idx := New(50)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx.Record(makeResult(fmt.Sprintf("a-%d", i), types.StateSummarized, "red-cross"))
		}(i)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = idx.Query(Query{Entity: "red-cross", Limit: 5})
			_ = idx.Count()
		}()
	}

	wg.Wait()
	assert.Equal(t, 50, idx.Count())
}

func TestImplementsRecorder(t *testing.T) {
	var _ engine.Recorder = New(1)
}
