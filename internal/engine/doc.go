// Package engine runs each alert through the processing state machine:
//
//	Received -> Classified -> NoDispatchNeeded
//	                       -> Dispatching -> Summarized
//	Received -> Rejected   (malformed record)
//	Received -> Duplicate  (alert id already processed)
//	any non-terminal -> Failed (unexpected internal failure)
//
// Only alerts that needed no dispatch or reached every entity keep their
// alert id marked as seen; any other outcome releases the mark so a
// corrected record or a redelivery is processed again.
//
// Terminal states never transition again. ProcessBatch walks a batch in
// order and keeps going past rejected, duplicate or failed alerts; it stops
// early only when its context is cancelled.
package engine
