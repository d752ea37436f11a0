// Package classifier maps one AlertRecord to the deduplicated set of
// responder entities that must receive it.
//
// # Contract
//
//	Classify(a types.AlertRecord) (types.ClassificationResult, error)
//
// Classify is a pure function of its input and the injected routing table:
// calling it repeatedly with the same record returns the same result.
//
// Composite records (with a sub-alert list) take the union of the routing
// lookups of every sub-alert type. An unknown type contributes nothing by
// itself. Once the union is built, the fallback entity is added according
// to the configured FallbackPolicy:
//
//   - FallbackOnUnknownOnly: union empty and at least one type was unknown.
//     Records whose types all map to an empty set stay informative only.
//   - FallbackOnEmptyResult: union empty, whatever the reason.
//
// Flat records (a single type, no sub-alert list) always fall back when the
// type is unknown; a flat type that maps to an empty set follows the policy.
//
// Escalation: if any sub-alert level, or the record level, is one of the
// configured critical levels, the escalation entity is added regardless of
// the table outcome.
//
// Records missing an identifier or a type are rejected with an error that
// wraps types.ErrMalformedAlert.
package classifier
