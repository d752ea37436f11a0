package classifier

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/routing"
	"github.com/smartcity/dispatcher/internal/types"
	"github.com/smartcity/dispatcher/internal/util"
)

// FallbackPolicy selects when the fallback entity is used for composite records.
type FallbackPolicy string

const (
	// FallbackOnUnknownOnly falls back when nothing matched and at least one
	// type is unknown to the table.
	FallbackOnUnknownOnly FallbackPolicy = "fallbackOnUnknownOnly"
	// FallbackOnEmptyResult falls back whenever the result is empty,
	// including when every type matched an informative-only (empty) rule.
	FallbackOnEmptyResult FallbackPolicy = "fallbackOnEmptyResult"
)

// ParseFallbackPolicy validates a policy name.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(strings.TrimSpace(s)); p {
	case FallbackOnUnknownOnly, FallbackOnEmptyResult:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q (want %s or %s)", s, FallbackOnUnknownOnly, FallbackOnEmptyResult)
	}
}

// Options configures the Classifier.
type Options struct {
	FallbackPolicy   FallbackPolicy
	FallbackEntity   types.EntityID
	EscalationEntity types.EntityID
	// CriticalLevels are compared case-insensitively against sub-alert levels.
	CriticalLevels []string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		FallbackPolicy:   FallbackOnUnknownOnly,
		FallbackEntity:   routing.EntityMunicipalPolice,
		EscalationEntity: routing.EntityNationalPolice,
		CriticalLevels:   []string{"CRITICAL", "CRÍTICO"},
	}
}

// Classifier evaluates alert records against an immutable routing table.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	logger *zap.Logger
	table  *routing.Table
	opts   Options
	known  map[types.EntityID]struct{}
}

// New creates a Classifier. It fails if the table is missing or the options
// cannot produce a non-empty fallback.
func New(table *routing.Table, logger *zap.Logger, opts Options) (*Classifier, error) {
	if table == nil || table.Len() == 0 {
		return nil, fmt.Errorf("classifier requires a non-empty routing table")
	}
	if _, err := ParseFallbackPolicy(string(opts.FallbackPolicy)); err != nil {
		return nil, err
	}
	opts.FallbackEntity = types.EntityID(strings.TrimSpace(string(opts.FallbackEntity)))
	if opts.FallbackEntity == "" {
		return nil, fmt.Errorf("fallback entity is required")
	}
	opts.EscalationEntity = types.EntityID(strings.TrimSpace(string(opts.EscalationEntity)))
	if opts.EscalationEntity == "" {
		return nil, fmt.Errorf("escalation entity is required")
	}
	opts.CriticalLevels = util.UniqueStrings(util.TrimAll(opts.CriticalLevels))

	known := make(map[types.EntityID]struct{})
	for _, e := range table.Entities() {
		known[e] = struct{}{}
	}
	known[opts.FallbackEntity] = struct{}{}
	known[opts.EscalationEntity] = struct{}{}

	return &Classifier{
		logger: logger.Named("classifier"),
		table:  table,
		opts:   opts,
		known:  known,
	}, nil
}

// Classify resolves the target entities for a.
func (c *Classifier) Classify(a types.AlertRecord) (types.ClassificationResult, error) {
	if err := a.Validate(); err != nil {
		return types.ClassificationResult{}, err
	}

	set := make(map[types.EntityID]struct{})
	result := types.ClassificationResult{AlertID: a.AlertID}

	var sawUnknown, sawEmptyMatch bool
	for _, alertType := range a.Types() {
		l := c.table.Lookup(alertType)
		if !l.Known() {
			sawUnknown = true
			result.UnknownTypes = append(result.UnknownTypes, alertType)
			continue
		}
		if len(l.Entities) == 0 {
			sawEmptyMatch = true
		}
		for _, e := range l.Entities {
			set[e] = struct{}{}
		}
	}

	if len(set) == 0 && c.shouldFallback(a.IsComposite(), sawUnknown, sawEmptyMatch) {
		set[c.opts.FallbackEntity] = struct{}{}
		result.FallbackApplied = true
	}

	if c.isCritical(a) {
		set[c.opts.EscalationEntity] = struct{}{}
		result.Escalated = true
	}

	result.Entities = sortedEntities(set)

	c.logger.Debug("Classified alert",
		zap.String("alert_id", a.AlertID),
		zap.Strings("types", a.Types()),
		zap.Int("entities", len(result.Entities)),
		zap.Bool("fallback", result.FallbackApplied),
		zap.Bool("escalated", result.Escalated),
	)
	return result, nil
}

// shouldFallback applies the fallback policy once the table union is empty.
func (c *Classifier) shouldFallback(composite, sawUnknown, sawEmptyMatch bool) bool {
	if !composite && sawUnknown {
		return true
	}
	switch c.opts.FallbackPolicy {
	case FallbackOnEmptyResult:
		return sawUnknown || sawEmptyMatch
	default:
		return sawUnknown
	}
}

// isCritical reports whether the record or any sub-alert carries a critical level.
func (c *Classifier) isCritical(a types.AlertRecord) bool {
	if c.criticalLevel(a.Level) {
		return true
	}
	for _, s := range a.Alerts {
		if c.criticalLevel(s.Level) {
			return true
		}
	}
	return false
}

func (c *Classifier) criticalLevel(level string) bool {
	level = strings.TrimSpace(level)
	if level == "" {
		return false
	}
	for _, l := range c.opts.CriticalLevels {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}

// IsKnown reports whether e can appear in a classification result.
func (c *Classifier) IsKnown(e types.EntityID) bool {
	_, ok := c.known[e]
	return ok
}

// KnownEntities returns every entity the classifier can emit, sorted.
func (c *Classifier) KnownEntities() []types.EntityID {
	return sortedEntities(c.known)
}

// Options returns the effective options.
func (c *Classifier) Options() Options {
	opts := c.opts
	opts.CriticalLevels = append([]string(nil), c.opts.CriticalLevels...)
	return opts
}

// Table returns the routing table the classifier evaluates against.
func (c *Classifier) Table() *routing.Table {
	return c.table
}

func sortedEntities(set map[types.EntityID]struct{}) []types.EntityID {
	out := make([]types.EntityID, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
