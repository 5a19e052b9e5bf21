package flow

import (
	"context"
	"log/slog"
	"sync"

	"postforge/internal/logging"
	"postforge/internal/phase"
	"postforge/internal/run"
)

// Driver is the workflow coordinator: one goroutine walks a run through its
// phases in order instead of hopping queues. Phase logic and state writes
// are the same executors the chained driver runs, so the two drivers cannot
// drift in behavior.
type Driver struct {
	deps       *phase.Deps
	copywriter phase.Executor
	image      phase.Executor
	publish    phase.Executor
	logger     *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	active  sync.WaitGroup
}

// NewDriver builds the coordinator around the shared executor set.
func NewDriver(deps *phase.Deps, logger *slog.Logger) *Driver {
	return &Driver{
		deps:       deps,
		copywriter: phase.NewCopywriterExecutor(deps),
		image:      phase.NewImageExecutor(deps),
		publish:    phase.NewPublishExecutor(deps),
		logger:     logging.NewComponentLogger(logger, "flow-driver"),
	}
}

// Start prepares the coordinator context and re-drives any runs a previous
// process left unfinished.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	d.baseCtx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()
	d.resume(ctx)
	return nil
}

// resume scans the state store for non-terminal runs and re-submits each at
// the phase it had reached. Executors tolerate redelivery, so re-running a
// partially finished phase is safe.
func (d *Driver) resume(ctx context.Context) {
	states, err := d.deps.Recorder.List(ctx)
	if err != nil {
		d.logger.Warn("resume scan failed", logging.Error(err))
		return
	}
	for _, state := range states {
		if state.IsComplete || state.Status == run.StatusFailed {
			continue
		}
		msg := run.QueueMessage{
			RunTraceID: state.RunTraceID,
			BrandID:    state.BrandID,
			PostPlanID: state.PostPlanID,
			Step:       resumeStep(state),
		}
		if ref, ok := state.Summary["contentRef"].(string); ok {
			msg.ContentRef = ref
		}
		if ref, ok := state.Summary["mediaRef"].(string); ok {
			msg.MediaRef = ref
		}
		if err := d.Submit(ctx, msg); err != nil {
			d.logger.Warn("resume submit failed",
				logging.String(logging.FieldRunID, state.RunTraceID),
				logging.Error(err),
			)
			continue
		}
		logging.WithRun(d.logger, state.RunTraceID).Info("resuming unfinished run",
			logging.String(logging.FieldPhase, string(state.CurrentPhase)),
		)
	}
}

// resumeStep maps a stored phase/status pair to the step that continues the
// run from there.
func resumeStep(state *run.RunState) string {
	switch state.CurrentPhase {
	case run.PhasePublish:
		return run.StepPublish
	case run.PhaseImage:
		if state.Status == run.StatusCompleted {
			return run.StepPublish
		}
		return run.StepGenerateImage
	case run.PhaseCopywriter:
		if state.Status == run.StatusCompleted {
			return run.StepGenerateImage
		}
		return run.StepGenerateContent
	default:
		return run.StepGenerateContent
	}
}

// Submit accepts a run and coordinates it asynchronously. The caller gets
// an acknowledgement, not a result; progress is read from the state store.
func (d *Driver) Submit(_ context.Context, msg run.QueueMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	ctx := d.baseCtx
	d.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	d.active.Add(1)
	go func() {
		defer d.active.Done()
		d.runWorkflow(ctx, msg)
	}()
	return nil
}

// runWorkflow drives one run to its terminal state, entering the walk at the
// message's step. A phase error ends the walk; the failing executor has
// already recorded the failure.
func (d *Driver) runWorkflow(ctx context.Context, msg run.QueueMessage) {
	logger := logging.WithRun(d.logger, msg.RunTraceID)
	logger.Info("workflow started", logging.String(logging.FieldDriver, "workflow"))

	next := &msg
	var err error
	if next.Step == run.StepGenerateContent {
		next, err = d.copywriter.Execute(ctx, *next)
		if err != nil {
			logger.Error("workflow halted at copywriter", logging.Error(err))
			return
		}
	}

	if next != nil && next.Step == run.StepGenerateImage {
		next, err = d.image.Execute(ctx, *next)
		if err != nil {
			logger.Error("workflow halted at image", logging.Error(err))
			return
		}
	}

	if next == nil || next.Step != run.StepPublish {
		logger.Error("workflow produced no publish step")
		return
	}
	if _, err := d.publish.Execute(ctx, *next); err != nil {
		logger.Error("workflow halted at publish", logging.Error(err))
		return
	}
	logger.Info("workflow completed")
}

// Stop waits for active workflows, then releases the coordinator context.
func (d *Driver) Stop() {
	d.active.Wait()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}
