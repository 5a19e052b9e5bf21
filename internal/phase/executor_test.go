package phase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"postforge/internal/agents"
	"postforge/internal/docstore"
	"postforge/internal/logging"
	"postforge/internal/mediastore"
	"postforge/internal/retry"
	"postforge/internal/run"
	"postforge/internal/runstate"
)

type failingImages struct {
	mu       sync.Mutex
	attempts int
	err      error
}

func (f *failingImages) Generate(context.Context, agents.ImageRequest) (*agents.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	return nil, f.err
}

type selectivePublisher struct {
	failOn map[string]bool
}

func (p *selectivePublisher) Publish(_ context.Context, channel string, _ *docstore.Post) error {
	if p.failOn[channel] {
		return errors.New(channel + " rejected the post")
	}
	return nil
}

type testEnv struct {
	deps  *Deps
	docs  *docstore.MemoryStore
	store *runstate.FileStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := runstate.OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	media, err := mediastore.OpenLocal(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}

	docs := docstore.NewMemory()
	docs.SeedBrand(docstore.Brand{ID: "acme", Name: "Acme Co"})
	docs.SeedPostPlan(docstore.PostPlan{ID: "summer", BrandID: "acme", Title: "Summer sale", Topic: "beach gear"})
	docs.SeedPostPlan(docstore.PostPlan{ID: "memo", BrandID: "acme", Title: "Text memo", TextOnly: true})

	deps := &Deps{
		Recorder:        runstate.NewRecorder(store, logging.NewNop()),
		Docs:            docs,
		Media:           media,
		Copywriter:      agents.NewFallbackCopywriter(),
		Images:          agents.NewPlaceholderImageGenerator(),
		Publisher:       &selectivePublisher{},
		DefaultChannels: []string{"feed"},
		Retry:           retry.Options{Attempts: 3, Delay: time.Millisecond},
		Logger:          logging.NewNop(),
	}
	return &testEnv{deps: deps, docs: docs, store: store}
}

func contentMessage(planID string) run.QueueMessage {
	return run.QueueMessage{
		RunTraceID: "run-1",
		BrandID:    "acme",
		PostPlanID: planID,
		Step:       run.StepGenerateContent,
	}
}

func (e *testEnv) state(t *testing.T) *run.RunState {
	t.Helper()
	state, err := e.store.GetStatus(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if state == nil {
		t.Fatal("no run state recorded")
	}
	return state
}

func TestCopywriterRoutesToImagePhase(t *testing.T) {
	env := newTestEnv(t)
	executor := NewCopywriterExecutor(env.deps)

	next, err := executor.Execute(context.Background(), contentMessage("summer"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next == nil || next.Step != run.StepGenerateImage {
		t.Fatalf("next = %+v, want generate_image", next)
	}
	if next.ContentRef != "draft:acme:summer" {
		t.Fatalf("contentRef = %q", next.ContentRef)
	}

	state := env.state(t)
	if state.CurrentPhase != run.PhaseCopywriter || state.Status != run.StatusCompleted {
		t.Fatalf("state = %s/%s", state.CurrentPhase, state.Status)
	}
	if state.Summary["contentRef"] != "draft:acme:summer" {
		t.Fatalf("summary = %+v", state.Summary)
	}

	post, err := env.docs.GetPost(context.Background(), "run-1")
	if err != nil || post == nil {
		t.Fatalf("draft not persisted: (%v, %v)", post, err)
	}
	if post.Status != docstore.PostStatusDraft || post.Caption == "" {
		t.Fatalf("draft = %+v", post)
	}
}

func TestCopywriterAgentOutputEventCarriesData(t *testing.T) {
	env := newTestEnv(t)
	executor := NewCopywriterExecutor(env.deps)

	if _, err := executor.Execute(context.Background(), contentMessage("summer")); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	state := env.state(t)
	var output *run.Event
	for i := range state.Events {
		if state.Events[i].Action == "agent_output" && state.Events[i].Phase == run.PhaseCopywriter {
			output = &state.Events[i]
			break
		}
	}
	if output == nil {
		t.Fatalf("no agent_output event recorded: %+v", state.Events)
	}
	if output.Data["contentRef"] != "draft:acme:summer" {
		t.Fatalf("agent_output event data = %+v", output.Data)
	}
}

func TestCopywriterSkipsImageForTextOnlyPlan(t *testing.T) {
	env := newTestEnv(t)
	executor := NewCopywriterExecutor(env.deps)

	next, err := executor.Execute(context.Background(), contentMessage("memo"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next == nil || next.Step != run.StepPublish {
		t.Fatalf("next = %+v, want publish", next)
	}
}

func TestCopywriterFailsFastOnUnknownBrand(t *testing.T) {
	env := newTestEnv(t)
	executor := NewCopywriterExecutor(env.deps)

	msg := contentMessage("summer")
	msg.BrandID = "ghost"
	next, err := executor.Execute(context.Background(), msg)
	if next != nil {
		t.Fatalf("next = %+v, want nil", next)
	}
	if !IsConfigError(err) {
		t.Fatalf("err = %v, want config error", err)
	}

	state := env.state(t)
	if state.Status != run.StatusFailed {
		t.Fatalf("status = %s, want failed", state.Status)
	}
	if !strings.Contains(state.Summary["error"].(string), "ghost") {
		t.Fatalf("error summary = %+v", state.Summary)
	}
}

func TestImageFailureExhaustsRetriesAndHaltsChain(t *testing.T) {
	env := newTestEnv(t)
	images := &failingImages{err: errors.New("provider down")}
	env.deps.Images = images
	executor := NewImageExecutor(env.deps)

	next, err := executor.Execute(context.Background(), run.QueueMessage{
		RunTraceID: "run-1",
		BrandID:    "acme",
		PostPlanID: "summer",
		Step:       run.StepGenerateImage,
		ContentRef: "draft:acme:summer",
	})
	if err == nil {
		t.Fatal("expected image failure")
	}
	if next != nil {
		t.Fatalf("next = %+v, publish must not be triggered", next)
	}
	if images.attempts != 3 {
		t.Fatalf("attempts = %d, want 3", images.attempts)
	}

	state := env.state(t)
	if state.CurrentPhase != run.PhaseImage || state.Status != run.StatusFailed {
		t.Fatalf("state = %s/%s", state.CurrentPhase, state.Status)
	}
	if state.IsComplete {
		t.Fatal("failed run must not report complete")
	}
}

func TestImageStoresMediaAndRoutesToPublish(t *testing.T) {
	env := newTestEnv(t)
	// The copywriter ran first and left a draft.
	if _, err := NewCopywriterExecutor(env.deps).Execute(context.Background(), contentMessage("summer")); err != nil {
		t.Fatalf("copywriter: %v", err)
	}

	next, err := NewImageExecutor(env.deps).Execute(context.Background(), run.QueueMessage{
		RunTraceID: "run-1",
		BrandID:    "acme",
		PostPlanID: "summer",
		Step:       run.StepGenerateImage,
		ContentRef: "draft:acme:summer",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next == nil || next.Step != run.StepPublish {
		t.Fatalf("next = %+v, want publish", next)
	}
	if next.MediaRef == "" {
		t.Fatal("publish message missing media ref")
	}

	post, err := env.docs.GetPost(context.Background(), "run-1")
	if err != nil || post == nil {
		t.Fatalf("draft lookup: (%v, %v)", post, err)
	}
	if post.MediaRef != next.MediaRef || post.MediaURL == "" {
		t.Fatalf("media not attached to draft: %+v", post)
	}
}

func TestImageRedeliveryForTextOnlyPlanSkips(t *testing.T) {
	env := newTestEnv(t)
	next, err := NewImageExecutor(env.deps).Execute(context.Background(), run.QueueMessage{
		RunTraceID: "run-1",
		BrandID:    "acme",
		PostPlanID: "memo",
		Step:       run.StepGenerateImage,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next == nil || next.Step != run.StepPublish || next.MediaRef != "" {
		t.Fatalf("next = %+v, want empty-media publish", next)
	}
}

func runThroughPublish(t *testing.T, env *testEnv, planID string) *run.QueueMessage {
	t.Helper()
	ctx := context.Background()
	msg := contentMessage(planID)
	next, err := NewCopywriterExecutor(env.deps).Execute(ctx, msg)
	if err != nil {
		t.Fatalf("copywriter: %v", err)
	}
	for next != nil && next.Step != run.StepPublish {
		next, err = NewImageExecutor(env.deps).Execute(ctx, *next)
		if err != nil {
			t.Fatalf("image: %v", err)
		}
	}
	return next
}

func TestPublishCompletesRun(t *testing.T) {
	env := newTestEnv(t)
	publishMsg := runThroughPublish(t, env, "summer")

	next, err := NewPublishExecutor(env.deps).Execute(context.Background(), *publishMsg)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if next != nil {
		t.Fatalf("publish must end the chain, got %+v", next)
	}

	state := env.state(t)
	if !state.IsComplete {
		t.Fatalf("state = %s/%s, want complete", state.CurrentPhase, state.Status)
	}

	post, err := env.docs.GetPost(context.Background(), "run-1")
	if err != nil || post == nil {
		t.Fatalf("post lookup: (%v, %v)", post, err)
	}
	if post.Status != docstore.PostStatusPublished {
		t.Fatalf("post status = %q", post.Status)
	}
	if len(post.Channels) != 1 || post.Channels[0] != "feed" {
		t.Fatalf("channels = %v", post.Channels)
	}
}

func TestPublishCollectsAllChannelResults(t *testing.T) {
	env := newTestEnv(t)
	env.docs.SeedPostPlan(docstore.PostPlan{
		ID: "multi", BrandID: "acme", Title: "Multi channel", TextOnly: true,
		Channels: []string{"feed", "stories", "board"},
	})
	env.deps.Publisher = &selectivePublisher{failOn: map[string]bool{"stories": true}}

	publishMsg := runThroughPublish(t, env, "multi")
	if _, err := NewPublishExecutor(env.deps).Execute(context.Background(), *publishMsg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	state := env.state(t)
	channels, ok := state.Summary["channels"].([]any)
	if !ok || len(channels) != 3 {
		t.Fatalf("summary channels = %+v", state.Summary["channels"])
	}
	outcomes := map[string]bool{}
	for _, entry := range channels {
		m := entry.(map[string]any)
		outcomes[m["channel"].(string)] = m["posted"].(bool)
	}
	if !outcomes["feed"] || outcomes["stories"] || !outcomes["board"] {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	// Partial success still completes the run.
	if !state.IsComplete {
		t.Fatal("partial channel failure must not fail the run")
	}
}

func TestPublishFailsWhenAllChannelsFail(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Publisher = &selectivePublisher{failOn: map[string]bool{"feed": true}}

	publishMsg := runThroughPublish(t, env, "memo")
	if _, err := NewPublishExecutor(env.deps).Execute(context.Background(), *publishMsg); err == nil {
		t.Fatal("expected failure when every channel rejects")
	}

	state := env.state(t)
	if state.Status != run.StatusFailed || state.IsComplete {
		t.Fatalf("state = %s complete=%v", state.Status, state.IsComplete)
	}
}

func TestPublishRedeliveryIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	publishMsg := runThroughPublish(t, env, "memo")

	executor := NewPublishExecutor(env.deps)
	for i := 0; i < 2; i++ {
		if _, err := executor.Execute(context.Background(), *publishMsg); err != nil {
			t.Fatalf("publish #%d: %v", i+1, err)
		}
	}

	state := env.state(t)
	if !state.IsComplete {
		t.Fatal("run should stay complete after redelivery")
	}
	post, err := env.docs.GetPost(context.Background(), "run-1")
	if err != nil || post == nil {
		t.Fatalf("post lookup: (%v, %v)", post, err)
	}
	if post.Status != docstore.PostStatusPublished {
		t.Fatalf("post status = %q", post.Status)
	}
}
