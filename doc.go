// Package alertflow ingests monitoring alerts delivered in SQS-style batches.
// Every record is parsed and validated, stamped with an id, a UTC timestamp and
// the PROCESSED status, persisted, and announced through a notification whose
// subject names the alert category. The invocation answers with a single
// aggregate result: status 200 and the processed ids, or status 500 with the
// first failure.
//
// Validation problems never stop a batch. A body that is not JSON, or an
// object missing tipo or servico, becomes a record flagged is_valid=false that
// is still stored and notified. Storage and notification failures do stop it:
// records already handled stay handled and nothing after the failing record
// runs.
//
// # Backends
//
// Storage is selected with STORAGE_BACKEND:
//   - dynamodb: the production default, one item per alert
//   - postgres: JSONB documents keyed by id
//   - sqlite: embedded file for local runs
//   - redis: JSON documents plus a time ordered index
//   - memory: process local, for tests
//
// Notifications are selected with NOTIFICATION_BACKEND. The default, sns,
// publishes through the SNS API with a native subject. The Watermill transports
// (channel, kafka, rabbitmq, nats, http, aws) carry the subject as a message
// header instead.
//
// # Entry points
//
// cmd/alertflow-lambda serves SQS triggers on AWS Lambda. cmd/alertflow runs
// events locally, serves an HTTP invoke endpoint with alert queries, stats and
// Prometheus metrics, and replays batches from a live SQS queue.
//
// # Hooks
//
// RecordHooks provide OnRecordStart, OnRecordDone and OnRecordError callbacks
// around every record; LoggingHooks and MetricsHooks are built in.
package alertflow
