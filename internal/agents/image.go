package agents

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// RemoteImageGenerator drives the image agent over the runs API. The agent
// returns base64-encoded media.
type RemoteImageGenerator struct {
	client *Client
}

// NewRemoteImageGenerator wraps an agent client.
func NewRemoteImageGenerator(client *Client) *RemoteImageGenerator {
	return &RemoteImageGenerator{client: client}
}

func (r *RemoteImageGenerator) Generate(ctx context.Context, req ImageRequest) (*Image, error) {
	if req.Plan == nil {
		return nil, errors.New("remote image generator: plan required")
	}

	output, err := r.client.Execute(ctx, "image", map[string]any{
		"runTraceId": req.RunTraceID,
		"postPlanId": req.Plan.ID,
		"caption":    req.Caption,
		"topic":      req.Plan.Topic,
	})
	if err != nil {
		return nil, err
	}

	var decoded struct {
		DataB64     string `json:"dataB64"`
		ContentType string `json:"contentType"`
		Provider    string `json:"provider"`
	}
	if err := json.Unmarshal(output, &decoded); err != nil {
		return nil, fmt.Errorf("remote image generator: decode output: %w", err)
	}
	if decoded.DataB64 == "" {
		return nil, errors.New("remote image generator: output missing media data")
	}
	data, err := base64.StdEncoding.DecodeString(decoded.DataB64)
	if err != nil {
		return nil, fmt.Errorf("remote image generator: decode media: %w", err)
	}
	if decoded.ContentType == "" {
		decoded.ContentType = "image/png"
	}
	if decoded.Provider == "" {
		decoded.Provider = "remote"
	}
	return &Image{Data: data, ContentType: decoded.ContentType, Provider: decoded.Provider}, nil
}

// PlaceholderImageGenerator emits a fixed single-pixel PNG. It keeps the
// image phase exercisable without any remote endpoint.
type PlaceholderImageGenerator struct{}

// NewPlaceholderImageGenerator returns the local generator.
func NewPlaceholderImageGenerator() *PlaceholderImageGenerator {
	return &PlaceholderImageGenerator{}
}

// onePixelPNG is a valid 1x1 opaque PNG.
var onePixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

func (p *PlaceholderImageGenerator) Generate(_ context.Context, req ImageRequest) (*Image, error) {
	if req.Plan == nil {
		return nil, errors.New("placeholder image generator: plan required")
	}
	data := make([]byte, len(onePixelPNG))
	copy(data, onePixelPNG)
	return &Image{Data: data, ContentType: "image/png", Provider: "placeholder"}, nil
}
