package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/notifier"
	"github.com/smartcity/dispatcher/internal/types"
)

// Classifier resolves the target entities of an alert.
type Classifier interface {
	Classify(a types.AlertRecord) (types.ClassificationResult, error)
}

// Dispatcher delivers an alert to a set of entities.
type Dispatcher interface {
	DispatchAll(ctx context.Context, a types.AlertRecord, entities []types.EntityID) []types.DispatchOutcome
}

// Recorder receives every terminal Result. Record must not block.
type Recorder interface {
	Record(res Result)
}

// Options configures the Engine.
type Options struct {
	// SuppressDuplicateMinutes suppresses an alert id already seen within the
	// window across batches. 0 disables cross-batch suppression.
	SuppressDuplicateMinutes int
	// Recorder is optional.
	Recorder Recorder
}

// Result is the final record of one alert's trip through the state machine.
type Result struct {
	AlertID        string                      `json:"alertId"`
	State          types.AlertState            `json:"state"`
	History        []types.AlertState          `json:"history"`
	Classification *types.ClassificationResult `json:"classification,omitempty"`
	Summary        *types.DispatchSummary      `json:"summary,omitempty"`
	Error          string                      `json:"error,omitempty"`
}

// BatchReport summarizes a ProcessBatch call.
type BatchReport struct {
	Results []Result `json:"results"`
	// Processed counts alerts that reached NoDispatchNeeded or Summarized.
	Processed  int `json:"processed"`
	Rejected   int `json:"rejected"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

func (r *BatchReport) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.State {
	case types.StateNoDispatchNeeded, types.StateSummarized:
		r.Processed++
	case types.StateRejected:
		r.Rejected++
	case types.StateDuplicate:
		r.Duplicates++
	case types.StateFailed:
		r.Failed++
	}
}

// Engine drives alerts through classification, dispatch and aggregation.
type Engine struct {
	logger     *zap.Logger
	classifier Classifier
	dispatcher Dispatcher
	opts       Options
	now        func() time.Time

	mu          sync.Mutex
	dedupeCache map[string]time.Time
}

// New creates an Engine.
func New(c Classifier, d Dispatcher, logger *zap.Logger, opts Options) *Engine {
	return &Engine{
		logger:      logger.Named("engine"),
		classifier:  c,
		dispatcher:  d,
		opts:        opts,
		now:         time.Now,
		dedupeCache: make(map[string]time.Time),
	}
}

// Start begins background cleanup of the duplicate window. Non-blocking.
func (e *Engine) Start(ctx context.Context) {
	if e.opts.SuppressDuplicateMinutes <= 0 {
		return
	}
	go e.cleanupDedupeCache(ctx)
}

// Process runs a single alert to a terminal state.
func (e *Engine) Process(ctx context.Context, a types.AlertRecord) Result {
	return e.process(ctx, a, nil)
}

// ProcessBatch processes alerts in order. A per-alert failure never aborts
// the batch; only a cancelled context stops it early, in which case the
// context error is returned with the results gathered so far.
func (e *Engine) ProcessBatch(ctx context.Context, alerts []types.AlertRecord) (BatchReport, error) {
	report := BatchReport{Results: make([]Result, 0, len(alerts))}
	batchSeen := make(map[string]struct{}, len(alerts))

	for i, a := range alerts {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("Batch interrupted",
				zap.Int("processed", i),
				zap.Int("remaining", len(alerts)-i),
				zap.Error(err),
			)
			return report, err
		}
		res := e.process(ctx, a, batchSeen)
		if res.State == types.StateRejected {
			e.logger.Warn("Skipping malformed alert",
				zap.Int("index", i),
				zap.String("alert_id", a.AlertID),
				zap.String("error", res.Error),
			)
		}
		report.add(res)
	}

	e.logger.Info("Batch processed",
		zap.Int("size", len(alerts)),
		zap.Int("processed", report.Processed),
		zap.Int("rejected", report.Rejected),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (e *Engine) process(ctx context.Context, a types.AlertRecord, batchSeen map[string]struct{}) (res Result) {
	t := newTracker()
	res.AlertID = a.AlertID
	var mark *dedupeMark

	defer func() {
		if r := recover(); r != nil {
			_ = t.advance(types.StateFailed)
			res.Error = fmt.Sprintf("internal error: %v", r)
			e.logger.Error("Alert processing panicked",
				zap.String("alert_id", a.AlertID),
				zap.Any("panic", r),
			)
		}
		res.State = t.state
		res.History = t.history
		if mark != nil && !settled(res) {
			e.release(mark)
		}
		alertsTotal.WithLabelValues(string(t.state)).Inc()
		if e.opts.Recorder != nil {
			e.opts.Recorder.Record(res)
		}
	}()

	if id := strings.TrimSpace(a.AlertID); id != "" {
		var dup bool
		if mark, dup = e.claim(id, batchSeen); dup {
			e.must(t, types.StateDuplicate)
			e.logger.Info("Suppressed duplicate alert", zap.String("alert_id", id))
			return res
		}
	}

	classification, err := e.classifier.Classify(a)
	if err != nil {
		if errors.Is(err, types.ErrMalformedAlert) {
			e.must(t, types.StateRejected)
		} else {
			e.must(t, types.StateFailed)
		}
		res.Error = err.Error()
		return res
	}
	e.must(t, types.StateClassified)
	res.Classification = &classification
	recordClassification(classification)

	if classification.Empty() {
		e.must(t, types.StateNoDispatchNeeded)
		e.logger.Info("No dispatch needed", zap.String("alert_id", a.AlertID))
		return res
	}

	e.must(t, types.StateDispatching)
	outcomes := e.dispatcher.DispatchAll(ctx, a, classification.Entities)
	summary := notifier.Aggregate(a.AlertID, outcomes)
	res.Summary = &summary
	e.must(t, types.StateSummarized)

	e.logger.Info("Alert dispatched",
		zap.String("alert_id", a.AlertID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed()),
		zap.Int("total", summary.Total),
	)
	return res
}

// must advances t and panics on an illegal transition. The panic is
// recovered by process and turns the alert into Failed.
func (e *Engine) must(t *tracker, next types.AlertState) {
	if err := t.advance(next); err != nil {
		panic(err)
	}
}

// dedupeMark holds the duplicate marks placed for one alert id while it is
// processed.
type dedupeMark struct {
	id       string
	batch    map[string]struct{}
	markedAt time.Time // zero when the cross-batch window is disabled
}

// claim reports whether id was already seen in this batch or, when enabled,
// within the cross-batch window. Otherwise it marks id as seen and returns
// the marks so they can be released.
func (e *Engine) claim(id string, batchSeen map[string]struct{}) (*dedupeMark, bool) {
	if batchSeen != nil {
		if _, ok := batchSeen[id]; ok {
			return nil, true
		}
	}
	c := &dedupeMark{id: id}
	if e.opts.SuppressDuplicateMinutes > 0 {
		markedAt, ok := e.tryMarkSeen(id)
		if !ok {
			return nil, true
		}
		c.markedAt = markedAt
	}
	if batchSeen != nil {
		batchSeen[id] = struct{}{}
		c.batch = batchSeen
	}
	return c, false
}

// release drops the marks in c so a later delivery of the same id is
// processed again. A window mark renewed by someone else is kept.
func (e *Engine) release(c *dedupeMark) {
	if c.batch != nil {
		delete(c.batch, c.id)
	}
	if c.markedAt.IsZero() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if seenAt, ok := e.dedupeCache[c.id]; ok && seenAt.Equal(c.markedAt) {
		delete(e.dedupeCache, c.id)
	}
}

// settled reports whether res may suppress later deliveries of its id:
// nothing needed dispatching, or every entity was reached. Rejected, failed
// and partially delivered alerts stay eligible for redelivery.
func settled(res Result) bool {
	switch res.State {
	case types.StateNoDispatchNeeded:
		return true
	case types.StateSummarized:
		return res.Summary != nil && res.Summary.Failed() == 0
	default:
		return false
	}
}

// tryMarkSeen atomically checks whether id was processed within the window
// and, if not, marks it. Returns the mark time and true if the alert should
// be processed.
func (e *Engine) tryMarkSeen(id string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if seenAt, exists := e.dedupeCache[id]; exists {
		window := time.Duration(e.opts.SuppressDuplicateMinutes) * time.Minute
		if now.Sub(seenAt) < window {
			return time.Time{}, false
		}
	}
	e.dedupeCache[id] = now
	return now, true
}

// cleanupDedupeCache periodically removes expired entries.
func (e *Engine) cleanupDedupeCache(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evictExpired()
		}
	}
}

func (e *Engine) evictExpired() {
	e.mu.Lock()
	defer e.mu.Unlock()
	window := time.Duration(e.opts.SuppressDuplicateMinutes) * time.Minute
	cutoff := e.now().Add(-window)
	for id, seenAt := range e.dedupeCache {
		if seenAt.Before(cutoff) {
			delete(e.dedupeCache, id)
		}
	}
}

func recordClassification(c types.ClassificationResult) {
	switch {
	case c.FallbackApplied:
		classificationTotal.WithLabelValues("fallback").Inc()
	case c.Empty():
		classificationTotal.WithLabelValues("empty").Inc()
	default:
		classificationTotal.WithLabelValues("matched").Inc()
	}
	if c.Escalated {
		classificationTotal.WithLabelValues("escalated").Inc()
	}
}
