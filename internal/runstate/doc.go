// Package runstate persists pipeline run records: the latest phase/status
// snapshot plus an append-only event log per run.
//
// Two backends implement the Store interface, a local SQLite file for
// development and an Azure Cosmos DB container for shared deployments. The
// factory in New picks one from configuration. Recorder layers the
// best-effort write policy on top: state telemetry must never fail a run.
package runstate
