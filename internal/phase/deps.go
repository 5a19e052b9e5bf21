package phase

import (
	"context"
	"log/slog"

	"postforge/internal/agents"
	"postforge/internal/docstore"
	"postforge/internal/mediastore"
	"postforge/internal/retry"
	"postforge/internal/run"
	"postforge/internal/runstate"
)

// Deps carries the collaborators shared by every phase executor. Both
// pipeline drivers build one Deps and hand it to the executors they run.
type Deps struct {
	Recorder        *runstate.Recorder
	Docs            docstore.Store
	Media           mediastore.Store
	Copywriter      agents.Copywriter
	Images          agents.ImageGenerator
	Publisher       Publisher
	DefaultChannels []string
	Retry           retry.Options
	Logger          *slog.Logger
}

// Executor runs one phase for one queue message and hands back the message
// that should trigger the next phase, or nil when the pipeline ends here.
type Executor interface {
	Phase() run.Phase
	Execute(ctx context.Context, msg run.QueueMessage) (*run.QueueMessage, error)
}

// Executors builds the full executor set keyed by message step.
func Executors(deps *Deps) map[string]Executor {
	return map[string]Executor{
		run.StepGenerateContent: NewCopywriterExecutor(deps),
		run.StepGenerateImage:   NewImageExecutor(deps),
		run.StepPublish:         NewPublishExecutor(deps),
	}
}

// recordStart marks the phase in progress and logs the transition event.
func (d *Deps) recordStart(ctx context.Context, msg run.QueueMessage, phase run.Phase) {
	d.Recorder.Record(ctx, runstate.Update{
		RunTraceID: msg.RunTraceID,
		Phase:      phase,
		Status:     run.StatusInProgress,
		BrandID:    msg.BrandID,
		PostPlanID: msg.PostPlanID,
	}, "start", string(phase)+" started")
}

// recordSuccess marks the phase completed with its summary payload.
func (d *Deps) recordSuccess(ctx context.Context, msg run.QueueMessage, phase run.Phase, summary run.Summary, message string) {
	d.Recorder.Record(ctx, runstate.Update{
		RunTraceID: msg.RunTraceID,
		Phase:      phase,
		Status:     run.StatusCompleted,
		Summary:    summary.SummaryMap(),
		BrandID:    msg.BrandID,
		PostPlanID: msg.PostPlanID,
	}, "agent_output", message)
}

// recordFailure marks the phase failed. The error is recorded and then still
// returned by the executor; halting the chain is the caller's job.
func (d *Deps) recordFailure(ctx context.Context, msg run.QueueMessage, phase run.Phase, err error) {
	d.Recorder.Record(ctx, runstate.Update{
		RunTraceID: msg.RunTraceID,
		Phase:      phase,
		Status:     run.StatusFailed,
		Summary:    run.ErrorSummary{Error: err.Error()}.SummaryMap(),
		BrandID:    msg.BrandID,
		PostPlanID: msg.PostPlanID,
	}, "error", err.Error())
}

// loadPlanContext resolves the brand and plan a message refers to. Missing
// documents are configuration errors, not transient ones.
func (d *Deps) loadPlanContext(ctx context.Context, msg run.QueueMessage) (*docstore.Brand, *docstore.PostPlan, error) {
	brand, err := d.Docs.GetBrand(ctx, msg.BrandID)
	if err != nil {
		return nil, nil, err
	}
	if brand == nil {
		return nil, nil, NewConfigError("brand %q not found", msg.BrandID)
	}
	plan, err := d.Docs.GetPostPlan(ctx, msg.PostPlanID)
	if err != nil {
		return nil, nil, err
	}
	if plan == nil {
		return nil, nil, NewConfigError("post plan %q not found", msg.PostPlanID)
	}
	return brand, plan, nil
}

// channelsFor picks the publish targets: the plan's channels when it names
// any, the configured defaults otherwise.
func (d *Deps) channelsFor(plan *docstore.PostPlan) []string {
	if plan != nil && len(plan.Channels) > 0 {
		return plan.Channels
	}
	return d.DefaultChannels
}
