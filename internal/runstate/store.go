package runstate

import (
	"context"

	"postforge/internal/run"
)

// storedTimeFormat is RFC 3339 with a fixed-width fractional second. Both
// backends order runs by comparing the stored strings, which only works when
// every timestamp has the same width.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Update describes one status upsert. Empty BrandID/PostPlanID leave the
// stored values untouched.
type Update struct {
	RunTraceID string
	Phase      run.Phase
	Status     run.Status
	Summary    map[string]any
	BrandID    string
	PostPlanID string
}

// Store is the single writer of RunState records. Both backends implement
// the same contract; callers never branch on which one they hold.
//
// GetStatus returns (nil, nil) when no record exists: not-found is a valid
// state distinct from failed, meaning no job has been seeded yet or the seed
// write has not propagated.
type Store interface {
	// SetStatus upserts the record for the update's run. The stored phase
	// never moves backward: an update for an earlier phase (a redelivered
	// message re-executing) keeps the stored phase/status and merges the
	// rest.
	SetStatus(ctx context.Context, update Update) error
	GetStatus(ctx context.Context, runTraceID string) (*run.RunState, error)
	// AddEvent appends to the run's event log, seeding a minimal record
	// when none exists. The log is read-then-appended, never overwritten.
	AddEvent(ctx context.Context, runTraceID string, event run.Event) error
	// List returns all known runs ordered by last update, newest first.
	List(ctx context.Context) ([]*run.RunState, error)
	Close() error
}
