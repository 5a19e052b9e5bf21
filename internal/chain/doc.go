// Package chain implements the chained-queue pipeline driver. Each phase
// has its own NATS subject; a consumer per subject runs the phase executor
// and forwards the next message. Delivery is at-least-once, so the
// executors' idempotent writes carry the correctness burden. Terminal
// failures land on the error queue as dead letters.
package chain
