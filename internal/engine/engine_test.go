package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/smartcity/dispatcher/internal/classifier"
	"github.com/smartcity/dispatcher/internal/testutil"
	"github.com/smartcity/dispatcher/internal/types"
)

// fakeDispatcher succeeds for every entity except those listed in fail.
type fakeDispatcher struct {
	mu      sync.Mutex
	calls   map[string][]types.EntityID
	count   map[string]int
	fail    map[types.EntityID]bool
	explode bool
	onCall  func()
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		calls: make(map[string][]types.EntityID),
		count: make(map[string]int),
		fail:  make(map[types.EntityID]bool),
	}
}

func (f *fakeDispatcher) DispatchAll(_ context.Context, a types.AlertRecord, entities []types.EntityID) []types.DispatchOutcome {
	f.mu.Lock()
	f.calls[a.AlertID] = append([]types.EntityID(nil), entities...)
	f.count[a.AlertID]++
	out := make([]types.DispatchOutcome, len(entities))
	for i, e := range entities {
		out[i] = types.DispatchOutcome{EntityID: e, AlertID: a.AlertID, Success: !f.fail[e], StatusCode: 200}
		if f.fail[e] {
			out[i].StatusCode = 500
			out[i].Error = "deliver to " + string(e) + ": HTTP 500"
		}
	}
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall()
	}
	if f.explode {
		panic("dispatcher exploded")
	}
	return out
}

func (f *fakeDispatcher) dispatched(id string) ([]types.EntityID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.calls[id]
	return e, ok
}

func (f *fakeDispatcher) dispatchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count[id]
}

func (f *fakeDispatcher) setFail(e types.EntityID, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[e] = fail
}

func newTestEngine(t *testing.T, d Dispatcher, logger *zap.Logger, opts Options) *Engine {
	t.Helper()
	c := testutil.NewClassifier(t, classifier.DefaultOptions())
	return New(c, d, logger, opts)
}

func TestProcess_Summarized(t *testing.T) {
	d := newFakeDispatcher()
	d.fail["fire-department"] = true
	e := newTestEngine(t, d, zap.NewNop(), Options{})

	res := e.Process(context.Background(), testutil.MakeAlert("a-1", "EXPLOSIÓN DETECTADA"))
	assert.Equal(t, types.StateSummarized, res.State)
	assert.Equal(t, []types.AlertState{
		types.StateReceived, types.StateClassified, types.StateDispatching, types.StateSummarized,
	}, res.History)
	require.NotNil(t, res.Classification)
	require.NotNil(t, res.Summary)
	assert.Equal(t, len(res.Classification.Entities), res.Summary.Total)
	assert.Equal(t, 1, res.Summary.Succeeded)
	assert.Equal(t, 1, res.Summary.Failed())
}

func TestProcess_NoDispatchNeeded(t *testing.T) {
	d := newFakeDispatcher()
	e := newTestEngine(t, d, zap.NewNop(), Options{})

	res := e.Process(context.Background(), testutil.MakeCompositeAlert("a-1", "", "REGISTRO VEHICULAR"))
	assert.Equal(t, types.StateNoDispatchNeeded, res.State)
	assert.Nil(t, res.Summary)
	_, called := d.dispatched("a-1")
	assert.False(t, called)
}

func TestProcess_Rejected(t *testing.T) {
	d := newFakeDispatcher()
	e := newTestEngine(t, d, zap.NewNop(), Options{})

	res := e.Process(context.Background(), types.AlertRecord{AlertID: "a-1"})
	assert.Equal(t, types.StateRejected, res.State)
	assert.Contains(t, res.Error, "malformed alert")
	assert.Nil(t, res.Classification)
}

func TestProcess_DispatcherPanicBecomesFailed(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	d := newFakeDispatcher()
	d.explode = true
	e := newTestEngine(t, d, zap.New(core), Options{})

	res := e.Process(context.Background(), testutil.MakeAlert("a-1", "DISPARO DETECTADO"))
	assert.Equal(t, types.StateFailed, res.State)
	assert.Contains(t, res.Error, "dispatcher exploded")
	assert.Equal(t, 1, logs.FilterMessage("Alert processing panicked").Len())
}

func TestProcessBatch_MalformedFourthIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := newFakeDispatcher()
	e := newTestEngine(t, d, zap.New(core), Options{})

	alerts := make([]types.AlertRecord, 10)
	for i := range alerts {
		alerts[i] = testutil.MakeAlert(fmt.Sprintf("a-%d", i+1), "INCENDIO REPORTADO")
	}
	alerts[3] = types.AlertRecord{AlertID: "a-4"} // no type

	report, err := e.ProcessBatch(context.Background(), alerts)
	require.NoError(t, err)
	require.Len(t, report.Results, 10)
	assert.Equal(t, 9, report.Processed)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, types.StateRejected, report.Results[3].State)

	for i, r := range report.Results {
		if i == 3 {
			continue
		}
		assert.Equal(t, types.StateSummarized, r.State, "alert %s", r.AlertID)
	}
	_, called := d.dispatched("a-4")
	assert.False(t, called)

	skipped := logs.FilterMessage("Skipping malformed alert").All()
	require.Len(t, skipped, 1)
	fields := skipped[0].ContextMap()
	assert.Equal(t, int64(3), fields["index"])
	assert.Equal(t, "a-4", fields["alert_id"])
}

func TestProcessBatch_InBatchDuplicate(t *testing.T) {
	d := newFakeDispatcher()
	e := newTestEngine(t, d, zap.NewNop(), Options{})

	alerts := []types.AlertRecord{
		testutil.MakeAlert("a-1", "INCENDIO REPORTADO"),
		testutil.MakeAlert("a-1", "DISPARO DETECTADO"),
		testutil.MakeAlert("a-2", "DISPARO DETECTADO"),
	}
	report, err := e.ProcessBatch(context.Background(), alerts)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, types.StateDuplicate, report.Results[1].State)

	entities, _ := d.dispatched("a-1")
	assert.Equal(t, testutil.Entities("fire-department"), entities, "first occurrence wins")

	// Without a window the next batch processes the same id again.
	report, err = e.ProcessBatch(context.Background(), alerts[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
}

func TestProcessBatch_CrossBatchWindow(t *testing.T) {
	d := newFakeDispatcher()
	e := newTestEngine(t, d, zap.NewNop(), Options{SuppressDuplicateMinutes: 10})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	batch := []types.AlertRecord{testutil.MakeAlert("a-1", "INCENDIO REPORTADO")}

	report, err := e.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	now = now.Add(5 * time.Minute)
	report, err = e.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Duplicates)

	res := e.Process(context.Background(), batch[0])
	assert.Equal(t, types.StateDuplicate, res.State)

	now = now.Add(11 * time.Minute)
	report, err = e.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
}

func TestEvictExpired(t *testing.T) {
	e := newTestEngine(t, newFakeDispatcher(), zap.NewNop(), Options{SuppressDuplicateMinutes: 10})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	_, ok := e.tryMarkSeen("old")
	require.True(t, ok)
	now = now.Add(8 * time.Minute)
	_, ok = e.tryMarkSeen("new")
	require.True(t, ok)
	now = now.Add(5 * time.Minute)

	e.evictExpired()
	assert.NotContains(t, e.dedupeCache, "old")
	assert.Contains(t, e.dedupeCache, "new")
}

func TestProcessBatch_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newFakeDispatcher()
	d.onCall = cancel
	e := newTestEngine(t, d, zap.NewNop(), Options{})

	alerts := []types.AlertRecord{
		testutil.MakeAlert("a-1", "INCENDIO REPORTADO"),
		testutil.MakeAlert("a-2", "INCENDIO REPORTADO"),
		testutil.MakeAlert("a-3", "INCENDIO REPORTADO"),
	}
	report, err := e.ProcessBatch(ctx, alerts)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Results, 1)
	assert.Equal(t, types.StateSummarized, report.Results[0].State)
}

func TestProcessBatch_ExampleRouting(t *testing.T) {
	d := newFakeDispatcher()
	e := newTestEngine(t, d, zap.NewNop(), Options{})

	alerts := []types.AlertRecord{
		testutil.MakeAlert("ex-1", "EXCESO DE VELOCIDAD"),
		testutil.MakeAlert("ex-2", "EXCESO DE VELOCIDAD PELIGROSO"),
		testutil.MakeAlert("ex-3", "FOO BAR"),
		testutil.MakeCompositeAlert("ex-4", "CRÍTICO", "RUIDO EXCESIVO"),
	}
	_, err := e.ProcessBatch(context.Background(), alerts)
	require.NoError(t, err)

	want := map[string][]types.EntityID{
		"ex-1": testutil.Entities("traffic-police"),
		"ex-2": testutil.Entities("national-police", "traffic-police"),
		"ex-3": testutil.Entities("municipal-police"),
		"ex-4": testutil.Entities("municipal-police", "national-police"),
	}
	for id, entities := range want {
		got, ok := d.dispatched(id)
		require.True(t, ok, id)
		assert.Equal(t, entities, got, id)
	}
}

func TestStart_NoWindowIsNoop(t *testing.T) {
	e := newTestEngine(t, newFakeDispatcher(), zap.NewNop(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	cancel()
}

type sliceRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *sliceRecorder) Record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func TestRecorder_ReceivesEveryTerminalResult(t *testing.T) {
	rec := &sliceRecorder{}
	d := newFakeDispatcher()
	e := newTestEngine(t, d, zap.NewNop(), Options{Recorder: rec})

	_, err := e.ProcessBatch(context.Background(), []types.AlertRecord{
		testutil.MakeAlert("a-1", "DISPARO DETECTADO"),
		testutil.MakeAlert("", "DISPARO DETECTADO"),
		testutil.MakeAlert("a-1", "DISPARO DETECTADO"),
	})
	require.NoError(t, err)

	require.Len(t, rec.results, 3)
	assert.Equal(t, types.StateSummarized, rec.results[0].State)
	assert.Equal(t, types.StateRejected, rec.results[1].State)
	assert.Equal(t, types.StateDuplicate, rec.results[2].State)
}

func TestProcess_CountsTerminalStates(t *testing.T) {
	e := newTestEngine(t, newFakeDispatcher(), zap.NewNop(), Options{})
	before := promtestutil.ToFloat64(alertsTotal.WithLabelValues(string(types.StateRejected)))

	e.Process(context.Background(), testutil.MakeAlert("", "DISPARO DETECTADO"))

	assert.Equal(t, before+1, promtestutil.ToFloat64(alertsTotal.WithLabelValues(string(types.StateRejected))))
}

func TestProcessBatch_CorrectedRecordAfterMalformed(t *testing.T) {
	for _, window := range []int{0, 10} {
		t.Run(fmt.Sprintf("window=%d", window), func(t *testing.T) {
			d := newFakeDispatcher()
			e := newTestEngine(t, d, zap.NewNop(), Options{SuppressDuplicateMinutes: window})

			report, err := e.ProcessBatch(context.Background(), []types.AlertRecord{
				{AlertID: "a-1"},
				testutil.MakeAlert("a-1", "DISPARO DETECTADO"),
			})
			require.NoError(t, err)
			require.Len(t, report.Results, 2)
			assert.Equal(t, types.StateRejected, report.Results[0].State)
			assert.Equal(t, types.StateSummarized, report.Results[1].State)
			assert.Equal(t, 0, report.Duplicates)

			entities, ok := d.dispatched("a-1")
			require.True(t, ok)
			assert.Equal(t, testutil.Entities("national-police"), entities)
		})
	}
}

func TestProcess_FailedDeliveryCanBeRedelivered(t *testing.T) {
	d := newFakeDispatcher()
	d.setFail("national-police", true)
	e := newTestEngine(t, d, zap.NewNop(), Options{SuppressDuplicateMinutes: 5})
	alert := testutil.MakeAlert("a-1", "DISPARO DETECTADO")

	res := e.Process(context.Background(), alert)
	assert.Equal(t, types.StateSummarized, res.State)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 0, res.Summary.Succeeded)

	d.setFail("national-police", false)
	res = e.Process(context.Background(), alert)
	assert.Equal(t, types.StateSummarized, res.State)
	assert.Equal(t, 1, res.Summary.Succeeded)
	assert.Equal(t, 2, d.dispatchCount("a-1"))

	// Fully delivered: now suppressed.
	res = e.Process(context.Background(), alert)
	assert.Equal(t, types.StateDuplicate, res.State)
	assert.Equal(t, 2, d.dispatchCount("a-1"))
}

func TestProcess_PartialDeliveryCanBeRedelivered(t *testing.T) {
	d := newFakeDispatcher()
	d.setFail("fire-department", true)
	e := newTestEngine(t, d, zap.NewNop(), Options{SuppressDuplicateMinutes: 5})
	alert := testutil.MakeAlert("a-1", "EXPLOSIÓN DETECTADA")

	res := e.Process(context.Background(), alert)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 1, res.Summary.Failed())

	res = e.Process(context.Background(), alert)
	assert.Equal(t, types.StateSummarized, res.State)
	assert.Equal(t, 2, d.dispatchCount("a-1"))
}

func TestProcessBatch_FailedAlertRetriedInSameBatch(t *testing.T) {
	d := newFakeDispatcher()
	d.setFail("national-police", true)
	d.onCall = func() { d.setFail("national-police", false) }
	e := newTestEngine(t, d, zap.NewNop(), Options{})

	report, err := e.ProcessBatch(context.Background(), []types.AlertRecord{
		testutil.MakeAlert("a-1", "DISPARO DETECTADO"),
		testutil.MakeAlert("a-1", "DISPARO DETECTADO"),
		testutil.MakeAlert("a-1", "DISPARO DETECTADO"),
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 0, report.Results[0].Summary.Succeeded)
	assert.Equal(t, 1, report.Results[1].Summary.Succeeded)
	assert.Equal(t, types.StateDuplicate, report.Results[2].State)
}

func TestProcess_PanicReleasesDuplicateMark(t *testing.T) {
	d := newFakeDispatcher()
	d.explode = true
	e := newTestEngine(t, d, zap.NewNop(), Options{SuppressDuplicateMinutes: 5})
	alert := testutil.MakeAlert("a-1", "DISPARO DETECTADO")

	assert.Equal(t, types.StateFailed, e.Process(context.Background(), alert).State)
	assert.NotContains(t, e.dedupeCache, "a-1")
}

func TestSettled(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want bool
	}{
		{name: "no dispatch needed", res: Result{State: types.StateNoDispatchNeeded}, want: true},
		{name: "all delivered", res: Result{State: types.StateSummarized, Summary: &types.DispatchSummary{Succeeded: 2, Total: 2}}, want: true},
		{name: "partial", res: Result{State: types.StateSummarized, Summary: &types.DispatchSummary{Succeeded: 1, Total: 2}}},
		{name: "none delivered", res: Result{State: types.StateSummarized, Summary: &types.DispatchSummary{Total: 1}}},
		{name: "rejected", res: Result{State: types.StateRejected}},
		{name: "failed", res: Result{State: types.StateFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, settled(tt.res))
		})
	}
}
