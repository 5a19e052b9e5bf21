package run

import (
	"encoding/json"
	"testing"
)

func TestPhaseOrdering(t *testing.T) {
	ordered := Phases()
	want := []Phase{PhaseOrchestrate, PhaseCopywriter, PhaseImage, PhasePublish}
	if len(ordered) != len(want) {
		t.Fatalf("phases = %v", ordered)
	}
	for i, phase := range want {
		if ordered[i] != phase {
			t.Fatalf("phases[%d] = %s, want %s", i, ordered[i], phase)
		}
		if ordered[i].Rank() != i {
			t.Fatalf("rank(%s) = %d", ordered[i], ordered[i].Rank())
		}
	}
	if !PhaseOrchestrate.Before(PhasePublish) {
		t.Fatal("orchestrate should precede publish")
	}
	if PhasePublish.Before(PhaseOrchestrate) {
		t.Fatal("publish must not precede orchestrate")
	}
}

func TestPhaseNext(t *testing.T) {
	cases := []struct {
		phase    Phase
		textOnly bool
		want     Phase
		ok       bool
	}{
		{PhaseOrchestrate, false, PhaseCopywriter, true},
		{PhaseCopywriter, false, PhaseImage, true},
		{PhaseCopywriter, true, PhasePublish, true},
		{PhaseImage, false, PhasePublish, true},
		{PhasePublish, false, "", false},
	}
	for _, tc := range cases {
		next, ok := tc.phase.Next(tc.textOnly)
		if ok != tc.ok || next != tc.want {
			t.Fatalf("Next(%s, textOnly=%v) = (%s, %v), want (%s, %v)", tc.phase, tc.textOnly, next, ok, tc.want, tc.ok)
		}
	}
}

func TestParsePhaseAndStatus(t *testing.T) {
	if phase, ok := ParsePhase(" Copywriter "); !ok || phase != PhaseCopywriter {
		t.Fatalf("ParsePhase = (%s, %v)", phase, ok)
	}
	if _, ok := ParsePhase("shipping"); ok {
		t.Fatal("unknown phase accepted")
	}
	if status, ok := ParseStatus("IN_PROGRESS"); !ok || status != StatusInProgress {
		t.Fatalf("ParseStatus = (%s, %v)", status, ok)
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("empty status accepted")
	}
}

func TestCompleteOnlyAtPublishCompleted(t *testing.T) {
	for _, phase := range Phases() {
		for _, status := range []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed} {
			want := phase == PhasePublish && status == StatusCompleted
			if Complete(phase, status) != want {
				t.Fatalf("Complete(%s, %s) != %v", phase, status, want)
			}
		}
	}
}

func TestQueueMessageRoundTrip(t *testing.T) {
	msg := QueueMessage{
		RunTraceID: "run-1",
		BrandID:    "acme",
		PostPlanID: "summer",
		Step:       StepGenerateImage,
		ContentRef: "draft:acme:summer",
	}
	payload, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if decoded != msg {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestDecodeMessageRejectsMissingFields(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"runTraceId":"run-1","brandId":"acme","postPlanId":"summer"}`,
		`{"runTraceId":"run-1","step":"publish"}`,
	}
	for _, payload := range payloads {
		if _, err := DecodeMessage([]byte(payload)); err == nil {
			t.Fatalf("payload %s accepted", payload)
		}
	}
}

func TestSummaryMapShapes(t *testing.T) {
	copyMap := CopywriterSummary{ContentRef: "draft:a:b", Caption: "hi", Hashtags: []string{"#a"}}.SummaryMap()
	if copyMap["contentRef"] != "draft:a:b" || copyMap["caption"] != "hi" {
		t.Fatalf("copywriter map = %+v", copyMap)
	}

	publish := PublishSummary{
		PostID:         "run-1",
		PublishedAtUtc: "2026-08-27T00:00:00Z",
		Channels: []ChannelResult{
			{Channel: "feed", Posted: true},
			{Channel: "stories", Posted: false, Error: "boom"},
		},
	}.SummaryMap()

	// The map form must survive JSON transport unchanged in shape.
	encoded, err := json.Marshal(publish)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	channels, ok := decoded["channels"].([]any)
	if !ok || len(channels) != 2 {
		t.Fatalf("channels = %+v", decoded["channels"])
	}
	second := channels[1].(map[string]any)
	if second["posted"] != false || second["error"] != "boom" {
		t.Fatalf("second channel = %+v", second)
	}
}
