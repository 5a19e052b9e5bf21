package runstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"postforge/internal/logging"
	"postforge/internal/run"
)

// Recorder wraps a Store with the pipeline's best-effort telemetry
// contract: writes are logged and swallowed on failure so a state store
// outage never takes down content production. Reads pass errors through;
// callers asking a question still need a real answer.
type Recorder struct {
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	lastErr error
}

// NewRecorder wraps store. The logger must not be nil.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logging.NewComponentLogger(logger, "runstate"),
	}
}

// SetStatus records a status transition, swallowing any store error.
func (r *Recorder) SetStatus(ctx context.Context, update Update) {
	if err := r.store.SetStatus(ctx, update); err != nil {
		r.note(err)
		r.logger.Warn("status write failed",
			logging.String(logging.FieldRunID, update.RunTraceID),
			logging.String(logging.FieldPhase, string(update.Phase)),
			logging.Error(err),
		)
	}
}

// AddEvent appends a telemetry event, swallowing any store error.
func (r *Recorder) AddEvent(ctx context.Context, runTraceID string, event run.Event) {
	if event.TS.IsZero() {
		event.TS = time.Now().UTC()
	}
	if err := r.store.AddEvent(ctx, runTraceID, event); err != nil {
		r.note(err)
		r.logger.Warn("event write failed",
			logging.String(logging.FieldRunID, runTraceID),
			logging.String(logging.FieldPhase, string(event.Phase)),
			logging.String("action", event.Action),
			logging.Error(err),
		)
	}
}

// Record is the common phase-transition shorthand: one status upsert plus
// one event append, both best-effort. The update's summary is carried on the
// event as well, so each phase's output stays in the audit trail after the
// next phase overwrites the run-level summary.
func (r *Recorder) Record(ctx context.Context, update Update, action, message string) {
	r.SetStatus(ctx, update)
	r.AddEvent(ctx, update.RunTraceID, run.Event{
		Phase:   update.Phase,
		Action:  action,
		Message: message,
		Status:  update.Status,
		Data:    update.Summary,
	})
}

// GetStatus passes through to the store; read errors are the caller's
// problem.
func (r *Recorder) GetStatus(ctx context.Context, runTraceID string) (*run.RunState, error) {
	return r.store.GetStatus(ctx, runTraceID)
}

// List passes through to the store.
func (r *Recorder) List(ctx context.Context) ([]*run.RunState, error) {
	return r.store.List(ctx)
}

// Close closes the underlying store.
func (r *Recorder) Close() error {
	return r.store.Close()
}

// LastErr returns the most recent swallowed write error, or nil. Health
// checks and tests use it to see failures the pipeline deliberately ignores.
func (r *Recorder) LastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Recorder) note(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}
