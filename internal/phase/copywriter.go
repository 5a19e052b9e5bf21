package phase

import (
	"context"
	"fmt"

	"postforge/internal/agents"
	"postforge/internal/docstore"
	"postforge/internal/logging"
	"postforge/internal/retry"
	"postforge/internal/run"
)

// CopywriterExecutor runs the draft-copy phase: resolve the brand and plan,
// invoke the copywriter under retry, and persist the draft post.
type CopywriterExecutor struct {
	deps *Deps
}

// NewCopywriterExecutor builds the executor.
func NewCopywriterExecutor(deps *Deps) *CopywriterExecutor {
	return &CopywriterExecutor{deps: deps}
}

func (e *CopywriterExecutor) Phase() run.Phase { return run.PhaseCopywriter }

func (e *CopywriterExecutor) Execute(ctx context.Context, msg run.QueueMessage) (*run.QueueMessage, error) {
	logger := logging.WithRun(e.deps.Logger, msg.RunTraceID)
	e.deps.recordStart(ctx, msg, run.PhaseCopywriter)

	brand, plan, err := e.deps.loadPlanContext(ctx, msg)
	if err != nil {
		e.deps.recordFailure(ctx, msg, run.PhaseCopywriter, err)
		return nil, err
	}

	draft, err := retry.Value(ctx, func() (*agents.Draft, error) {
		return e.deps.Copywriter.Draft(ctx, agents.DraftRequest{
			RunTraceID: msg.RunTraceID,
			Brand:      brand,
			Plan:       plan,
		})
	}, e.deps.Retry)
	if err != nil {
		err = fmt.Errorf("copywriter: %w", err)
		e.deps.recordFailure(ctx, msg, run.PhaseCopywriter, err)
		return nil, err
	}

	// The draft doc is keyed by run trace id, so a redelivered message
	// rewrites the same document instead of creating a second one.
	if err := e.deps.Docs.UpsertDraft(ctx, &docstore.Post{
		ID:         msg.RunTraceID,
		RunTraceID: msg.RunTraceID,
		BrandID:    msg.BrandID,
		PostPlanID: msg.PostPlanID,
		Caption:    draft.Caption,
		ContentRef: draft.ContentRef,
		Hashtags:   draft.Hashtags,
	}); err != nil {
		err = fmt.Errorf("persist draft: %w", err)
		e.deps.recordFailure(ctx, msg, run.PhaseCopywriter, err)
		return nil, err
	}

	e.deps.recordSuccess(ctx, msg, run.PhaseCopywriter, run.CopywriterSummary{
		ContentRef: draft.ContentRef,
		Caption:    draft.Caption,
		Hashtags:   draft.Hashtags,
	}, "draft copy ready")
	logger.Info("copywriter phase completed",
		logging.String(logging.FieldPhase, string(run.PhaseCopywriter)),
		logging.String("content_ref", draft.ContentRef),
	)

	next := run.QueueMessage{
		RunTraceID: msg.RunTraceID,
		BrandID:    msg.BrandID,
		PostPlanID: msg.PostPlanID,
		Step:       run.StepGenerateImage,
		Agent:      "image",
		ContentRef: draft.ContentRef,
	}
	if plan.TextOnly {
		next.Step = run.StepPublish
		next.Agent = ""
	}
	return &next, nil
}
