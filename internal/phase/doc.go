// Package phase implements the pipeline's per-phase execution logic:
// copywriter, image, and publish. Executors are driver-agnostic; the chained
// consumers and the workflow coordinator both run them. Each executor records
// its transitions in the run state store, performs its work under the retry
// policy, and reports the message that should trigger the next phase.
package phase
