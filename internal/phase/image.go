package phase

import (
	"context"
	"fmt"

	"postforge/internal/agents"
	"postforge/internal/logging"
	"postforge/internal/retry"
	"postforge/internal/run"
)

// ImageExecutor runs the media generation phase: invoke the image generator
// under retry, store the media, and attach its reference to the draft.
type ImageExecutor struct {
	deps *Deps
}

// NewImageExecutor builds the executor.
func NewImageExecutor(deps *Deps) *ImageExecutor {
	return &ImageExecutor{deps: deps}
}

func (e *ImageExecutor) Phase() run.Phase { return run.PhaseImage }

func (e *ImageExecutor) Execute(ctx context.Context, msg run.QueueMessage) (*run.QueueMessage, error) {
	logger := logging.WithRun(e.deps.Logger, msg.RunTraceID)
	e.deps.recordStart(ctx, msg, run.PhaseImage)

	_, plan, err := e.deps.loadPlanContext(ctx, msg)
	if err != nil {
		e.deps.recordFailure(ctx, msg, run.PhaseImage, err)
		return nil, err
	}

	// Text-only plans normally route straight to publish; a message landing
	// here anyway (a stale redelivery) completes as a no-op skip.
	if plan.TextOnly {
		e.deps.recordSuccess(ctx, msg, run.PhaseImage, run.ImageSummary{}, "image skipped for text-only plan")
		return e.publishMessage(msg, ""), nil
	}

	caption := e.draftCaption(ctx, msg.RunTraceID)
	image, err := retry.Value(ctx, func() (*agents.Image, error) {
		return e.deps.Images.Generate(ctx, agents.ImageRequest{
			RunTraceID: msg.RunTraceID,
			Plan:       plan,
			Caption:    caption,
		})
	}, e.deps.Retry)
	if err != nil {
		err = fmt.Errorf("image generation: %w", err)
		e.deps.recordFailure(ctx, msg, run.PhaseImage, err)
		return nil, err
	}

	mediaRef := msg.RunTraceID + mediaExtension(image.ContentType)
	url, err := e.deps.Media.Put(ctx, mediaRef, image.Data, image.ContentType)
	if err != nil {
		err = fmt.Errorf("store media: %w", err)
		e.deps.recordFailure(ctx, msg, run.PhaseImage, err)
		return nil, err
	}

	if err := e.attachMedia(ctx, msg.RunTraceID, mediaRef, url); err != nil {
		e.deps.recordFailure(ctx, msg, run.PhaseImage, err)
		return nil, err
	}

	e.deps.recordSuccess(ctx, msg, run.PhaseImage, run.ImageSummary{
		MediaRef: mediaRef,
		URL:      url,
		Provider: image.Provider,
	}, "media generated")
	logger.Info("image phase completed",
		logging.String(logging.FieldPhase, string(run.PhaseImage)),
		logging.String("media_ref", mediaRef),
		logging.String("provider", image.Provider),
	)
	return e.publishMessage(msg, mediaRef), nil
}

func (e *ImageExecutor) publishMessage(msg run.QueueMessage, mediaRef string) *run.QueueMessage {
	return &run.QueueMessage{
		RunTraceID: msg.RunTraceID,
		BrandID:    msg.BrandID,
		PostPlanID: msg.PostPlanID,
		Step:       run.StepPublish,
		ContentRef: msg.ContentRef,
		MediaRef:   mediaRef,
	}
}

// draftCaption fetches the drafted caption for prompt context. Losing it is
// not fatal; the generator falls back to the plan topic.
func (e *ImageExecutor) draftCaption(ctx context.Context, runTraceID string) string {
	post, err := e.deps.Docs.GetPost(ctx, runTraceID)
	if err != nil || post == nil {
		return ""
	}
	return post.Caption
}

func (e *ImageExecutor) attachMedia(ctx context.Context, runTraceID, mediaRef, url string) error {
	post, err := e.deps.Docs.GetPost(ctx, runTraceID)
	if err != nil {
		return fmt.Errorf("load draft for media attach: %w", err)
	}
	if post == nil {
		return NewConfigError("draft for run %q not found", runTraceID)
	}
	post.MediaRef = mediaRef
	post.MediaURL = url
	if err := e.deps.Docs.UpsertDraft(ctx, post); err != nil {
		return fmt.Errorf("attach media to draft: %w", err)
	}
	return nil
}

func mediaExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
