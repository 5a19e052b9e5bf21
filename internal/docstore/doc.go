// Package docstore holds the content-domain documents the pipeline reads
// and writes: brand profiles, post plans, and the posts the pipeline
// produces. The in-memory backend serves development and tests; the Cosmos
// backend serves shared deployments.
package docstore
