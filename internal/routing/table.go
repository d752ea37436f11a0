package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/smartcity/dispatcher/internal/types"
)

// ErrInvalidTable is wrapped by every table construction error.
var ErrInvalidTable = errors.New("invalid routing table")

// Rule maps one alert-type pattern to a set of entities.
type Rule struct {
	Pattern string `json:"pattern"`
	// Entities is the target set. An empty, non-nil slice marks the type as
	// informative only.
	Entities []types.EntityID `json:"entities"`
}

// MatchKind describes how a lookup was resolved.
type MatchKind string

const (
	MatchNone      MatchKind = "none"
	MatchExact     MatchKind = "exact"
	MatchSubstring MatchKind = "substring"
)

// Lookup is the result of resolving one alert type.
type Lookup struct {
	Kind MatchKind
	// Pattern is the rule pattern that matched; empty for MatchNone.
	Pattern  string
	Entities []types.EntityID
}

// Known reports whether the type matched a rule (possibly with an empty set).
func (l Lookup) Known() bool {
	return l.Kind != MatchNone
}

// Table is an ordered, immutable list of routing rules.
type Table struct {
	rules []Rule
	exact map[string]int // pattern → index into rules
}

// NewTable validates rules and builds a Table. The input slice is copied.
func NewTable(rules []Rule) (*Table, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", ErrInvalidTable)
	}

	t := &Table{
		rules: make([]Rule, 0, len(rules)),
		exact: make(map[string]int, len(rules)),
	}
	for i, r := range rules {
		pattern := strings.TrimSpace(r.Pattern)
		if pattern == "" {
			return nil, fmt.Errorf("%w: rule %d has a blank pattern", ErrInvalidTable, i)
		}
		if _, dup := t.exact[pattern]; dup {
			return nil, fmt.Errorf("%w: duplicate pattern %q", ErrInvalidTable, pattern)
		}
		if r.Entities == nil {
			return nil, fmt.Errorf("%w: rule %q has no entity list (use [] for informative-only types)", ErrInvalidTable, pattern)
		}
		entities := make([]types.EntityID, 0, len(r.Entities))
		seen := make(map[types.EntityID]struct{}, len(r.Entities))
		for _, e := range r.Entities {
			e = types.EntityID(strings.TrimSpace(string(e)))
			if e == "" {
				return nil, fmt.Errorf("%w: rule %q has a blank entity", ErrInvalidTable, pattern)
			}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			entities = append(entities, e)
		}
		t.exact[pattern] = len(t.rules)
		t.rules = append(t.rules, Rule{Pattern: pattern, Entities: entities})
	}
	return t, nil
}

// Lookup resolves alertType using exact match, then ordered substring match.
func (t *Table) Lookup(alertType string) Lookup {
	alertType = strings.TrimSpace(alertType)
	if alertType == "" {
		return Lookup{Kind: MatchNone}
	}

	if i, ok := t.exact[alertType]; ok {
		return t.lookupAt(i, MatchExact)
	}

	for i, r := range t.rules {
		if strings.Contains(alertType, r.Pattern) || strings.Contains(r.Pattern, alertType) {
			return t.lookupAt(i, MatchSubstring)
		}
	}
	return Lookup{Kind: MatchNone}
}

func (t *Table) lookupAt(i int, kind MatchKind) Lookup {
	r := t.rules[i]
	entities := make([]types.EntityID, len(r.Entities))
	copy(entities, r.Entities)
	return Lookup{Kind: kind, Pattern: r.Pattern, Entities: entities}
}

// Rules returns a copy of the rules in table order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		entities := make([]types.EntityID, len(r.Entities))
		copy(entities, r.Entities)
		out[i] = Rule{Pattern: r.Pattern, Entities: entities}
	}
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// Entities returns every entity referenced by the table, sorted.
func (t *Table) Entities() []types.EntityID {
	seen := make(map[types.EntityID]struct{})
	for _, r := range t.rules {
		for _, e := range r.Entities {
			seen[e] = struct{}{}
		}
	}
	out := make([]types.EntityID, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
