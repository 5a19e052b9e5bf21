package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"postforge/internal/logging"
	"postforge/internal/retry"
)

// Remote run lifecycle statuses reported by the agent runs API.
const (
	runStatusQueued         = "queued"
	runStatusInProgress     = "in_progress"
	runStatusRequiresAction = "requires_action"
	runStatusCompleted      = "completed"
	runStatusFailed         = "failed"
)

// ClientOptions configures the remote agent client.
type ClientOptions struct {
	Endpoint     string
	APIKey       string
	Model        string
	Timeout      time.Duration
	PollInterval time.Duration
	Retry        retry.Options
}

// Client talks to the agent runs API: create a run, poll it, answer its tool
// calls, collect its output.
type Client struct {
	endpoint     string
	apiKey       string
	model        string
	timeout      time.Duration
	pollInterval time.Duration
	retryOpts    retry.Options
	httpClient   *http.Client
	tools        ToolSource
	logger       *slog.Logger
}

// NewClient builds a remote agent client. tools answers get_brand and
// get_post_plan calls issued by running agents.
func NewClient(opts ClientOptions, tools ToolSource, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("agent client: endpoint required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 750 * time.Millisecond
	}
	return &Client{
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		apiKey:       opts.APIKey,
		model:        opts.Model,
		timeout:      timeout,
		pollInterval: pollInterval,
		retryOpts:    opts.Retry,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		tools:        tools,
		logger:       logging.NewComponentLogger(logger, "agents"),
	}, nil
}

type runResource struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	RequiredAction *requiredAction `json:"requiredAction,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	Error          string          `json:"error,omitempty"`
}

type requiredAction struct {
	ToolCalls []toolCall `json:"toolCalls"`
}

type toolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolOutput struct {
	ToolCallID string `json:"toolCallId"`
	Output     any    `json:"output"`
}

// Execute creates a remote run for the named agent and drives it to
// completion, answering tool calls along the way. The returned bytes are the
// run's output document.
func (c *Client) Execute(ctx context.Context, agent string, input any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.createRun(ctx, agent, input)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With(logging.String("agent", agent), logging.String("agent_run_id", created.ID))
	logger.Debug("remote run created")

	current := created
	for {
		switch current.Status {
		case runStatusCompleted:
			return current.Output, nil
		case runStatusFailed:
			if current.Error != "" {
				return nil, fmt.Errorf("agent %s run failed: %s", agent, current.Error)
			}
			return nil, fmt.Errorf("agent %s run failed", agent)
		case runStatusRequiresAction:
			if err := c.answerToolCalls(ctx, current, logger); err != nil {
				return nil, err
			}
		case runStatusQueued, runStatusInProgress:
			// Keep polling.
		default:
			return nil, fmt.Errorf("agent %s run in unknown status %q", agent, current.Status)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("agent %s run: %w", agent, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		next, err := c.readRun(ctx, created.ID)
		if err != nil {
			// A transient read failure mid-poll is not the run failing;
			// keep going until the deadline decides.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("agent %s run: %w", agent, ctx.Err())
			}
			logger.Debug("run poll failed, retrying", logging.Error(err))
			continue
		}
		current = next
	}
}

func (c *Client) createRun(ctx context.Context, agent string, input any) (*runResource, error) {
	body := map[string]any{
		"agent": agent,
		"model": c.model,
		"input": input,
	}
	var created runResource
	err := retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, c.endpoint+"/runs", body, &created)
	}, c.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("create %s run: %w", agent, err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("create %s run: response missing id", agent)
	}
	return &created, nil
}

func (c *Client) readRun(ctx context.Context, runID string) (*runResource, error) {
	var resource runResource
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint+"/runs/"+runID, nil, &resource); err != nil {
		return nil, err
	}
	return &resource, nil
}

// answerToolCalls dispatches each requested lookup and submits the outputs
// in one batch. Submission is retried; losing it would strand the run.
func (c *Client) answerToolCalls(ctx context.Context, resource *runResource, logger *slog.Logger) error {
	if resource.RequiredAction == nil || len(resource.RequiredAction.ToolCalls) == 0 {
		return fmt.Errorf("run %s requires action but lists no tool calls", resource.ID)
	}

	outputs := make([]toolOutput, 0, len(resource.RequiredAction.ToolCalls))
	for _, call := range resource.RequiredAction.ToolCalls {
		result, err := c.dispatchTool(ctx, call)
		if err != nil {
			// The agent decides what to do with a failed lookup; report it
			// as the tool output rather than aborting the run.
			logger.Warn("tool call failed",
				logging.String("tool", call.Name),
				logging.Error(err),
			)
			result = map[string]any{"error": err.Error()}
		}
		outputs = append(outputs, toolOutput{ToolCallID: call.ID, Output: result})
	}

	body := map[string]any{"toolOutputs": outputs}
	err := retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, c.endpoint+"/runs/"+resource.ID+"/tool_outputs", body, nil)
	}, c.retryOpts)
	if err != nil {
		return fmt.Errorf("submit tool outputs for run %s: %w", resource.ID, err)
	}
	return nil
}

func (c *Client) dispatchTool(ctx context.Context, call toolCall) (any, error) {
	var args struct {
		BrandID    string `json:"brandId"`
		PostPlanID string `json:"postPlanId"`
	}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, fmt.Errorf("decode %s arguments: %w", call.Name, err)
		}
	}

	switch call.Name {
	case "get_brand":
		brand, err := c.tools.GetBrand(ctx, args.BrandID)
		if err != nil {
			return nil, err
		}
		if brand == nil {
			return nil, fmt.Errorf("brand %q not found", args.BrandID)
		}
		return brand, nil
	case "get_post_plan":
		plan, err := c.tools.GetPostPlan(ctx, args.PostPlanID)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, fmt.Errorf("post plan %q not found", args.PostPlanID)
		}
		return plan, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
