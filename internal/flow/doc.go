// Package flow implements the workflow pipeline driver: a single in-process
// coordinator that walks each run through copywriter, optional image, and
// publish. It trades the chained driver's queue-level decoupling for a
// simpler deployment with no broker on the hot path.
package flow
