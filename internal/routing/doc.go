// Package routing holds the immutable rule set that maps alert types to
// responder entities.
//
// # Contract
//
// A Table is built once at startup (NewTable, LoadFile or Default) and is
// never mutated afterwards; it is safe for concurrent use without locking.
//
//	Lookup(alertType string) Lookup
//	  1. Exact match against a rule pattern returns that rule's entity set.
//	     The set may be empty: the type is informative only.
//	  2. Otherwise rules are scanned in table order. The first rule whose
//	     pattern is a substring of alertType, or that contains alertType,
//	     wins. Rule order is part of the contract.
//	  3. Otherwise the result is MatchNone ("unknown type"), which is
//	     distinct from a match with an empty entity set.
//
// Surrounding whitespace is trimmed from alertType; matching is otherwise
// case-sensitive. A blank alertType never matches.
//
// # Validation
//
// Construction fails on an empty table, a blank or duplicate pattern, a
// blank entity identifier, or a rule without an entity list. An unreliable
// table silently drops safety-critical dispatches, so callers must treat
// these errors as fatal.
package routing
