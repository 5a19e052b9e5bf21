package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"postforge/internal/docstore"
	"postforge/internal/logging"
	"postforge/internal/retry"
)

// fakeRunsAPI simulates the agent runs lifecycle: created runs require a
// tool call, then complete after the outputs arrive.
type fakeRunsAPI struct {
	mu          sync.Mutex
	created     int
	toolOutputs []map[string]any
	flakyReads  int
	output      map[string]any
}

func (f *fakeRunsAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.created++
		f.mu.Unlock()
		writeJSON(w, map[string]any{"id": "agent-run-1", "status": "queued"})
	})
	mux.HandleFunc("GET /runs/agent-run-1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.flakyReads > 0 {
			f.flakyReads--
			http.Error(w, "transient", http.StatusServiceUnavailable)
			return
		}
		if len(f.toolOutputs) == 0 {
			writeJSON(w, map[string]any{
				"id":     "agent-run-1",
				"status": "requires_action",
				"requiredAction": map[string]any{
					"toolCalls": []map[string]any{
						{"id": "call-1", "name": "get_brand", "arguments": map[string]any{"brandId": "acme"}},
						{"id": "call-2", "name": "get_post_plan", "arguments": map[string]any{"postPlanId": "summer"}},
					},
				},
			})
			return
		}
		writeJSON(w, map[string]any{"id": "agent-run-1", "status": "completed", "output": f.output})
	})
	mux.HandleFunc("POST /runs/agent-run-1/tool_outputs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ToolOutputs []map[string]any `json:"toolOutputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.toolOutputs = append(f.toolOutputs, body.ToolOutputs...)
		f.mu.Unlock()
		writeJSON(w, map[string]any{"ok": true})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

func newTestTools() *docstore.MemoryStore {
	store := docstore.NewMemory()
	store.SeedBrand(docstore.Brand{ID: "acme", Name: "Acme Co", Voice: "dry"})
	store.SeedPostPlan(docstore.PostPlan{ID: "summer", BrandID: "acme", Title: "Summer sale"})
	return store
}

func newTestClient(t *testing.T, endpoint string, tools ToolSource) *Client {
	t.Helper()
	client, err := NewClient(ClientOptions{
		Endpoint:     endpoint,
		Model:        "test-model",
		Timeout:      5 * time.Second,
		PollInterval: 5 * time.Millisecond,
		Retry:        retry.Options{Attempts: 3, Delay: time.Millisecond},
	}, tools, logging.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestRemoteCopywriterToolCallLoop(t *testing.T) {
	api := &fakeRunsAPI{output: map[string]any{
		"contentRef": "draft:acme:summer",
		"caption":    "Summer sale is on",
		"hashtags":   []string{"#acme"},
	}}
	server := httptest.NewServer(api.handler())
	defer server.Close()

	copywriter := NewRemoteCopywriter(newTestClient(t, server.URL, newTestTools()))
	draft, err := copywriter.Draft(context.Background(), DraftRequest{
		RunTraceID: "run-1",
		Brand:      &docstore.Brand{ID: "acme"},
		Plan:       &docstore.PostPlan{ID: "summer"},
	})
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft.Caption != "Summer sale is on" || draft.ContentRef != "draft:acme:summer" {
		t.Fatalf("draft = %+v", draft)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.toolOutputs) != 2 {
		t.Fatalf("expected 2 tool outputs submitted, got %d", len(api.toolOutputs))
	}
	for _, output := range api.toolOutputs {
		if output["toolCallId"] == "" {
			t.Fatalf("tool output missing call id: %+v", output)
		}
	}
}

func TestRemoteCopywriterToleratesTransientPollFailures(t *testing.T) {
	api := &fakeRunsAPI{
		flakyReads: 2,
		output:     map[string]any{"caption": "still made it"},
	}
	server := httptest.NewServer(api.handler())
	defer server.Close()

	copywriter := NewRemoteCopywriter(newTestClient(t, server.URL, newTestTools()))
	draft, err := copywriter.Draft(context.Background(), DraftRequest{
		RunTraceID: "run-1",
		Brand:      &docstore.Brand{ID: "acme"},
		Plan:       &docstore.PostPlan{ID: "summer"},
	})
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft.Caption != "still made it" {
		t.Fatalf("draft = %+v", draft)
	}
}

func TestRemoteCopywriterReportsRunFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "agent-run-1", "status": "queued"})
	})
	mux.HandleFunc("GET /runs/agent-run-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "agent-run-1", "status": "failed", "error": "content policy"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	copywriter := NewRemoteCopywriter(newTestClient(t, server.URL, newTestTools()))
	_, err := copywriter.Draft(context.Background(), DraftRequest{
		RunTraceID: "run-1",
		Brand:      &docstore.Brand{ID: "acme"},
		Plan:       &docstore.PostPlan{ID: "summer"},
	})
	if err == nil || !strings.Contains(err.Error(), "content policy") {
		t.Fatalf("err = %v, want run failure with reason", err)
	}
}

func TestPlaceholderImageIsValidPNG(t *testing.T) {
	generator := NewPlaceholderImageGenerator()
	image, err := generator.Generate(context.Background(), ImageRequest{
		Plan: &docstore.PostPlan{ID: "summer"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if image.ContentType != "image/png" || image.Provider != "placeholder" {
		t.Fatalf("image = %+v", image)
	}
	signature := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	if len(image.Data) < len(signature) || string(image.Data[:len(signature)]) != string(signature) {
		t.Fatal("placeholder data is not a PNG")
	}
}
