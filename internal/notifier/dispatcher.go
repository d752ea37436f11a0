package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/smartcity/dispatcher/internal/types"
)

// DispatcherOptions configures the Dispatcher behavior.
type DispatcherOptions struct {
	MaxConcurrency     int    // default 8
	TimeoutSeconds     int    // per-call timeout, default 5
	RateLimitPerMinute int    // per entity, 0 disables
	SystemID           string // stamped into every payload
}

// DefaultDispatcherOptions returns sensible defaults.
func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		MaxConcurrency: 8,
		TimeoutSeconds: 5,
		SystemID:       "alert-dispatcher",
	}
}

// entityRateLimiter tracks rate limits per responder entity.
type entityRateLimiter struct {
	mu         sync.Mutex
	limiters   map[types.EntityID]*rate.Limiter
	lastAccess map[types.EntityID]time.Time
	rate       rate.Limit
	burst      int
}

func newEntityRateLimiter(perMinute int) *entityRateLimiter {
	return &entityRateLimiter{
		limiters:   make(map[types.EntityID]*rate.Limiter),
		lastAccess: make(map[types.EntityID]time.Time),
		rate:       rate.Limit(float64(perMinute) / 60.0),
		burst:      max(1, perMinute/10), // 10% burst, minimum 1
	}
}

func (l *entityRateLimiter) get(entity types.EntityID) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.limiters[entity]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[entity] = limiter
	}
	l.lastAccess[entity] = time.Now()
	return limiter
}

// Wait blocks until entity may be called or ctx ends.
func (l *entityRateLimiter) Wait(ctx context.Context, entity types.EntityID) error {
	return l.get(entity).Wait(ctx)
}

// Evict removes entity rate limiters that haven't been accessed within maxAge.
func (l *entityRateLimiter) Evict(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for entity, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.limiters, entity)
			delete(l.lastAccess, entity)
		}
	}
}

// Dispatcher delivers alerts to responder entities through a Sender.
// It is safe for concurrent use.
type Dispatcher struct {
	logger  *zap.Logger
	sender  Sender
	opts    DispatcherOptions
	timeout time.Duration
	limiter *entityRateLimiter
	builder *PayloadBuilder
}

// NewDispatcher creates a new Dispatcher. Zero options fall back to defaults.
func NewDispatcher(sender Sender, logger *zap.Logger, opts DispatcherOptions) *Dispatcher {
	defaults := DefaultDispatcherOptions()
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaults.MaxConcurrency
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = defaults.TimeoutSeconds
	}
	d := &Dispatcher{
		logger:  logger.Named("dispatcher"),
		sender:  sender,
		opts:    opts,
		timeout: time.Duration(opts.TimeoutSeconds) * time.Second,
		builder: NewPayloadBuilder(opts.SystemID),
	}
	if opts.RateLimitPerMinute > 0 {
		d.limiter = newEntityRateLimiter(opts.RateLimitPerMinute)
	}
	return d
}

// Start begins background cleanup of idle rate limiters. Non-blocking.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.limiter == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Evict limiters for entities not seen in 1 hour.
				d.limiter.Evict(time.Hour)
			}
		}
	}()
}

// Dispatch delivers a to a single entity. Every failure is reported in the
// returned outcome; Dispatch never panics and never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, entity types.EntityID, a types.AlertRecord) (outcome types.DispatchOutcome) {
	start := time.Now()
	outcome = types.DispatchOutcome{
		EntityID:  entity,
		AlertID:   a.AlertID,
		Timestamp: start.UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Error = fmt.Sprintf("sender panic: %v", r)
			d.logger.Error("Sender panicked during dispatch",
				zap.String("alert_id", a.AlertID),
				zap.String("entity", string(entity)),
				zap.Any("panic", r),
			)
		}
		outcome.LatencyMs = time.Since(start).Milliseconds()
		status := statusLabel(outcome.Success)
		dispatchTotal.WithLabelValues(string(entity), status).Inc()
		dispatchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, entity); err != nil {
			outcome.Error = fmt.Sprintf("rate limit wait: %v", err)
			d.logger.Warn("Dispatch abandoned while rate limited",
				zap.String("alert_id", a.AlertID),
				zap.String("entity", string(entity)),
				zap.Error(err),
			)
			return outcome
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	payload := d.builder.Build(a, entity)
	code, err := d.sender.Send(callCtx, entity, payload)
	outcome.StatusCode = code
	if err != nil {
		outcome.Error = err.Error()
		var derr *DeliveryError
		if errors.As(err, &derr) && derr.StatusCode != 0 {
			outcome.StatusCode = derr.StatusCode
		}
		d.logger.Warn("Dispatch failed",
			zap.String("alert_id", a.AlertID),
			zap.String("entity", string(entity)),
			zap.String("sender", d.sender.Name()),
			zap.Int("status", outcome.StatusCode),
			zap.Error(err),
		)
		return outcome
	}

	outcome.Success = true
	d.logger.Info("Dispatched alert",
		zap.String("alert_id", a.AlertID),
		zap.String("entity", string(entity)),
		zap.Int("status", code),
	)
	return outcome
}

// DispatchAll delivers a to every entity concurrently, bounded by
// MaxConcurrency. Outcomes are returned in entity order.
func (d *Dispatcher) DispatchAll(ctx context.Context, a types.AlertRecord, entities []types.EntityID) []types.DispatchOutcome {
	outcomes := make([]types.DispatchOutcome, len(entities))
	if len(entities) == 0 {
		return outcomes
	}

	// A plain Group: one failing entity must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(d.opts.MaxConcurrency)
	for i, entity := range entities {
		g.Go(func() error {
			outcomes[i] = d.Dispatch(ctx, entity, a)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Options returns the effective options.
func (d *Dispatcher) Options() DispatcherOptions {
	return d.opts
}
