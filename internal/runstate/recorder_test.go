package runstate

import (
	"context"
	"errors"
	"testing"

	"postforge/internal/logging"
	"postforge/internal/run"
)

type failingStore struct {
	err error
}

func (f *failingStore) SetStatus(context.Context, Update) error { return f.err }
func (f *failingStore) GetStatus(context.Context, string) (*run.RunState, error) {
	return nil, f.err
}
func (f *failingStore) AddEvent(context.Context, string, run.Event) error { return f.err }
func (f *failingStore) List(context.Context) ([]*run.RunState, error)    { return nil, f.err }
func (f *failingStore) Close() error                                     { return nil }

func TestRecorderSwallowsWriteErrors(t *testing.T) {
	storeErr := errors.New("cosmos unavailable")
	recorder := NewRecorder(&failingStore{err: storeErr}, logging.NewNop())
	ctx := context.Background()

	// Neither call may panic or surface the error.
	recorder.SetStatus(ctx, Update{RunTraceID: "run-1", Phase: run.PhaseCopywriter, Status: run.StatusInProgress})
	recorder.AddEvent(ctx, "run-1", run.Event{Phase: run.PhaseCopywriter, Action: "start"})

	if !errors.Is(recorder.LastErr(), storeErr) {
		t.Fatalf("LastErr = %v, want %v", recorder.LastErr(), storeErr)
	}
}

func TestRecorderPassesReadErrorsThrough(t *testing.T) {
	storeErr := errors.New("cosmos unavailable")
	recorder := NewRecorder(&failingStore{err: storeErr}, logging.NewNop())

	if _, err := recorder.GetStatus(context.Background(), "run-1"); !errors.Is(err, storeErr) {
		t.Fatalf("GetStatus err = %v, want %v", err, storeErr)
	}
}

func TestRecorderRecordWritesStatusAndEvent(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, logging.NewNop())
	ctx := context.Background()

	recorder.Record(ctx, Update{
		RunTraceID: "run-1",
		Phase:      run.PhaseImage,
		Status:     run.StatusInProgress,
	}, "start", "generating media")

	state, err := store.GetStatus(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if state.CurrentPhase != run.PhaseImage {
		t.Fatalf("phase = %s", state.CurrentPhase)
	}
	if len(state.Events) != 1 || state.Events[0].Action != "start" {
		t.Fatalf("events = %+v", state.Events)
	}
	if recorder.LastErr() != nil {
		t.Fatalf("unexpected swallowed error: %v", recorder.LastErr())
	}
}

func TestRecorderRecordCarriesSummaryOnEvent(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, logging.NewNop())
	ctx := context.Background()

	summary := run.CopywriterSummary{
		ContentRef: "draft:acme:summer",
		Caption:    "beach season is here",
		Hashtags:   []string{"#summer"},
	}.SummaryMap()
	recorder.Record(ctx, Update{
		RunTraceID: "run-1",
		Phase:      run.PhaseCopywriter,
		Status:     run.StatusCompleted,
		Summary:    summary,
	}, "agent_output", "draft copy ready")

	// The next phase overwrites the run-level summary; the event must still
	// hold the copywriter output.
	recorder.Record(ctx, Update{
		RunTraceID: "run-1",
		Phase:      run.PhaseImage,
		Status:     run.StatusCompleted,
		Summary:    run.ImageSummary{MediaRef: "run-1.png"}.SummaryMap(),
	}, "agent_output", "media stored")

	state, err := store.GetStatus(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if len(state.Events) != 2 {
		t.Fatalf("events = %+v", state.Events)
	}
	first := state.Events[0]
	if first.Action != "agent_output" || first.Data["contentRef"] != "draft:acme:summer" {
		t.Fatalf("copywriter event lost its payload: %+v", first)
	}
	if state.Events[1].Data["mediaRef"] != "run-1.png" {
		t.Fatalf("image event data = %+v", state.Events[1].Data)
	}
}
