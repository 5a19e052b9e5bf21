// Package run defines the value types shared across the pipeline: the phase
// and status enums with their fixed ordering, the durable RunState record
// with its append-only event log, per-phase summary payloads, and the queue
// message envelope used by the chained driver.
package run
