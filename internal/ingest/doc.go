// Package ingest reads alert records from the outside world and hands them
// to a handler: a Poller pulls batches from the alerts API, a StreamConsumer
// reads a Kafka topic. Retrieval failures never reach the handler; they are
// logged and produce an empty batch or a skipped message.
package ingest
