package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// RemoteCopywriter drives the copywriter agent over the runs API.
type RemoteCopywriter struct {
	client *Client
}

// NewRemoteCopywriter wraps an agent client.
func NewRemoteCopywriter(client *Client) *RemoteCopywriter {
	return &RemoteCopywriter{client: client}
}

func (r *RemoteCopywriter) Draft(ctx context.Context, req DraftRequest) (*Draft, error) {
	if req.Brand == nil || req.Plan == nil {
		return nil, errors.New("remote copywriter: brand and plan required")
	}

	output, err := r.client.Execute(ctx, "copywriter", map[string]any{
		"runTraceId": req.RunTraceID,
		"brandId":    req.Brand.ID,
		"postPlanId": req.Plan.ID,
	})
	if err != nil {
		return nil, err
	}

	var decoded struct {
		ContentRef string   `json:"contentRef"`
		Caption    string   `json:"caption"`
		Hashtags   []string `json:"hashtags"`
	}
	if err := json.Unmarshal(output, &decoded); err != nil {
		return nil, fmt.Errorf("remote copywriter: decode output: %w", err)
	}
	if decoded.Caption == "" {
		return nil, errors.New("remote copywriter: output missing caption")
	}
	if decoded.ContentRef == "" {
		decoded.ContentRef = fmt.Sprintf("draft:%s:%s", req.Brand.ID, req.Plan.ID)
	}
	return &Draft{
		ContentRef: decoded.ContentRef,
		Caption:    decoded.Caption,
		Hashtags:   decoded.Hashtags,
	}, nil
}
