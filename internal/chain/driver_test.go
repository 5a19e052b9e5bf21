package chain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"postforge/internal/agents"
	"postforge/internal/config"
	"postforge/internal/docstore"
	"postforge/internal/logging"
	"postforge/internal/mediastore"
	"postforge/internal/phase"
	"postforge/internal/retry"
	"postforge/internal/run"
	"postforge/internal/runstate"
	"postforge/internal/testsupport"
)

type okPublisher struct{}

func (okPublisher) Publish(context.Context, string, *docstore.Post) error { return nil }

type slowPublisher struct {
	delay time.Duration
}

func (p slowPublisher) Publish(ctx context.Context, _ string, _ *docstore.Post) error {
	select {
	case <-time.After(p.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type brokenImages struct{}

func (brokenImages) Generate(context.Context, agents.ImageRequest) (*agents.Image, error) {
	return nil, errors.New("provider down")
}

func testQueues() config.Pipeline {
	return config.Pipeline{
		ContentQueue: "content-tasks",
		MediaQueue:   "media-tasks",
		PublishQueue: "publish-tasks",
		ErrorQueue:   "error-tasks",
	}
}

func newTestDriver(t *testing.T) (*Driver, *Bus, *runstate.FileStore, *phase.Deps) {
	t.Helper()

	bus, err := Connect(config.Queueing{Embedded: true}, logging.NewNop())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(bus.Close)

	store, err := runstate.OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	media, err := mediastore.OpenLocal(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}

	docs := testsupport.SeededDocs(t)

	deps := &phase.Deps{
		Recorder:        runstate.NewRecorder(store, logging.NewNop()),
		Docs:            docs,
		Media:           media,
		Copywriter:      agents.NewFallbackCopywriter(),
		Images:          agents.NewPlaceholderImageGenerator(),
		Publisher:       okPublisher{},
		DefaultChannels: []string{"feed"},
		Retry:           retry.Options{Attempts: 3, Delay: time.Millisecond},
		Logger:          logging.NewNop(),
	}

	driver := NewDriver(bus, deps, testQueues(), logging.NewNop())
	if err := driver.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(driver.Stop)
	return driver, bus, store, deps
}

func waitForState(t *testing.T, store *runstate.FileStore, runTraceID string, done func(*run.RunState) bool) *run.RunState {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		state, err := store.GetStatus(context.Background(), runTraceID)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if state != nil && done(state) {
			return state
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run %s never reached expected state", runTraceID)
	return nil
}

func TestChainRunsFullPipeline(t *testing.T) {
	driver, _, store, deps := newTestDriver(t)

	err := driver.Submit(context.Background(), run.QueueMessage{
		RunTraceID: "run-chain-1",
		BrandID:    "acme",
		PostPlanID: "summer",
		Step:       run.StepGenerateContent,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state := waitForState(t, store, "run-chain-1", func(s *run.RunState) bool { return s.IsComplete })
	if state.CurrentPhase != run.PhasePublish || state.Status != run.StatusCompleted {
		t.Fatalf("state = %s/%s", state.CurrentPhase, state.Status)
	}

	post, err := deps.Docs.GetPost(context.Background(), "run-chain-1")
	if err != nil || post == nil {
		t.Fatalf("post lookup: (%v, %v)", post, err)
	}
	if post.Status != docstore.PostStatusPublished || post.MediaRef == "" {
		t.Fatalf("post = %+v", post)
	}
}

func TestChainSkipsImageForTextOnlyPlan(t *testing.T) {
	driver, _, store, deps := newTestDriver(t)

	err := driver.Submit(context.Background(), run.QueueMessage{
		RunTraceID: "run-chain-2",
		BrandID:    "acme",
		PostPlanID: "memo",
		Step:       run.StepGenerateContent,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state := waitForState(t, store, "run-chain-2", func(s *run.RunState) bool { return s.IsComplete })
	for _, event := range state.Events {
		if event.Phase == run.PhaseImage && event.Action == "start" {
			t.Fatal("image phase ran for a text-only plan")
		}
	}

	post, err := deps.Docs.GetPost(context.Background(), "run-chain-2")
	if err != nil || post == nil {
		t.Fatalf("post lookup: (%v, %v)", post, err)
	}
	if post.MediaRef != "" {
		t.Fatalf("text-only post carries media: %+v", post)
	}
}

func TestChainRoutesFailureToErrorQueue(t *testing.T) {
	driver, bus, store, deps := newTestDriver(t)
	deps.Images = brokenImages{}

	deadLetters := make(chan errorEnvelope, 1)
	sub, err := bus.conn.Subscribe("error-tasks", func(msg *nats.Msg) {
		var envelope errorEnvelope
		if json.Unmarshal(msg.Data, &envelope) == nil {
			select {
			case deadLetters <- envelope:
			default:
			}
		}
	})
	if err != nil {
		t.Fatalf("subscribe error queue: %v", err)
	}
	defer sub.Unsubscribe()

	err = driver.Submit(context.Background(), run.QueueMessage{
		RunTraceID: "run-chain-3",
		BrandID:    "acme",
		PostPlanID: "summer",
		Step:       run.StepGenerateContent,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case envelope := <-deadLetters:
		if envelope.FailedStep != run.StepGenerateImage {
			t.Fatalf("failed step = %q", envelope.FailedStep)
		}
		if envelope.Message.RunTraceID != "run-chain-3" {
			t.Fatalf("envelope = %+v", envelope)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no dead letter arrived")
	}

	state := waitForState(t, store, "run-chain-3", func(s *run.RunState) bool {
		return s.Status == run.StatusFailed
	})
	if state.CurrentPhase != run.PhaseImage || state.IsComplete {
		t.Fatalf("state = %s complete=%v", state.CurrentPhase, state.IsComplete)
	}
}

func TestChainStopWaitsForInFlightPhase(t *testing.T) {
	driver, _, store, deps := newTestDriver(t)
	deps.Publisher = slowPublisher{delay: 400 * time.Millisecond}

	err := driver.Submit(context.Background(), run.QueueMessage{
		RunTraceID: "run-chain-4",
		BrandID:    "acme",
		PostPlanID: "memo",
		Step:       run.StepGenerateContent,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Stop while the publish handler is mid-flight; it must be allowed to
	// finish on a live context instead of being cancelled into a failure.
	waitForState(t, store, "run-chain-4", func(s *run.RunState) bool {
		return s.CurrentPhase == run.PhasePublish && s.Status == run.StatusInProgress
	})
	driver.Stop()

	state, err := store.GetStatus(context.Background(), "run-chain-4")
	if err != nil || state == nil {
		t.Fatalf("GetStatus: (%v, %v)", state, err)
	}
	if !state.IsComplete {
		t.Fatalf("run interrupted by shutdown: %s/%s", state.CurrentPhase, state.Status)
	}
}

func TestChainDropsMalformedPayload(t *testing.T) {
	_, bus, store, _ := newTestDriver(t)

	if err := bus.PublishRaw("content-tasks", []byte("not json")); err != nil {
		t.Fatalf("PublishRaw: %v", err)
	}
	if err := bus.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// Give the consumer a beat, then confirm nothing was recorded.
	time.Sleep(100 * time.Millisecond)
	states, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(states) != 0 {
		t.Fatalf("malformed payload produced state: %+v", states)
	}
}
