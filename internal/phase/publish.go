package phase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"postforge/internal/docstore"
	"postforge/internal/logging"
	"postforge/internal/run"
)

// PublishExecutor runs the final phase: fan the post out to every target
// channel, collect all results, and persist the published document.
type PublishExecutor struct {
	deps *Deps
}

// NewPublishExecutor builds the executor.
func NewPublishExecutor(deps *Deps) *PublishExecutor {
	return &PublishExecutor{deps: deps}
}

func (e *PublishExecutor) Phase() run.Phase { return run.PhasePublish }

func (e *PublishExecutor) Execute(ctx context.Context, msg run.QueueMessage) (*run.QueueMessage, error) {
	logger := logging.WithRun(e.deps.Logger, msg.RunTraceID)
	e.deps.recordStart(ctx, msg, run.PhasePublish)

	_, plan, err := e.deps.loadPlanContext(ctx, msg)
	if err != nil {
		e.deps.recordFailure(ctx, msg, run.PhasePublish, err)
		return nil, err
	}

	post, err := e.deps.Docs.GetPost(ctx, msg.RunTraceID)
	if err != nil {
		err = fmt.Errorf("load draft: %w", err)
		e.deps.recordFailure(ctx, msg, run.PhasePublish, err)
		return nil, err
	}
	if post == nil {
		err = NewConfigError("draft for run %q not found", msg.RunTraceID)
		e.deps.recordFailure(ctx, msg, run.PhasePublish, err)
		return nil, err
	}

	channels := e.deps.channelsFor(plan)
	if len(channels) == 0 {
		err = NewConfigError("no publish channels configured for plan %q", plan.ID)
		e.deps.recordFailure(ctx, msg, run.PhasePublish, err)
		return nil, err
	}

	results := e.fanOut(ctx, channels, post)

	var posted []string
	failed := 0
	for _, result := range results {
		if result.Posted {
			posted = append(posted, result.Channel)
		} else {
			failed++
		}
	}
	// The phase fails only when no channel accepted the post. Partial
	// success publishes; the per-channel outcomes stay in the summary.
	if failed == len(results) {
		err = fmt.Errorf("publish: all %d channels failed", len(results))
		e.deps.recordFailure(ctx, msg, run.PhasePublish, err)
		return nil, err
	}

	publishedAt := time.Now().UTC()
	post.Channels = posted
	post.PublishedAtUtc = publishedAt
	if err := e.deps.Docs.UpsertPublishedPost(ctx, post); err != nil {
		err = fmt.Errorf("persist published post: %w", err)
		e.deps.recordFailure(ctx, msg, run.PhasePublish, err)
		return nil, err
	}

	e.deps.recordSuccess(ctx, msg, run.PhasePublish, run.PublishSummary{
		PostID:         post.ID,
		PublishedAtUtc: publishedAt.Format(time.RFC3339),
		ContentRef:     post.ContentRef,
		MediaRef:       post.MediaRef,
		Channels:       results,
	}, "post published")
	logger.Info("publish phase completed",
		logging.String(logging.FieldPhase, string(run.PhasePublish)),
		logging.Int("channels_posted", len(posted)),
		logging.Int("channels_failed", failed),
	)
	return nil, nil
}

// fanOut publishes to every channel concurrently and waits for all of them.
// Every channel reports a result; one failure never cancels the others.
func (e *PublishExecutor) fanOut(ctx context.Context, channels []string, post *docstore.Post) []run.ChannelResult {
	results := make([]run.ChannelResult, len(channels))
	var wg sync.WaitGroup
	for i, channel := range channels {
		wg.Add(1)
		go func(i int, channel string) {
			defer wg.Done()
			result := run.ChannelResult{Channel: channel, Posted: true}
			if err := e.deps.Publisher.Publish(ctx, channel, post); err != nil {
				result.Posted = false
				result.Error = err.Error()
			}
			results[i] = result
		}(i, channel)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Channel < results[j].Channel })
	return results
}
