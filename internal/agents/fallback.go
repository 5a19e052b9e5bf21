package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FallbackCopywriter produces deterministic placeholder copy when no agent
// endpoint is configured. Same plan in, same draft out: downstream phases and
// tests can rely on the content reference shape.
type FallbackCopywriter struct{}

// NewFallbackCopywriter returns the deterministic copywriter.
func NewFallbackCopywriter() *FallbackCopywriter {
	return &FallbackCopywriter{}
}

func (f *FallbackCopywriter) Draft(_ context.Context, req DraftRequest) (*Draft, error) {
	if req.Brand == nil || req.Plan == nil {
		return nil, errors.New("fallback copywriter: brand and plan required")
	}

	caption := req.Plan.Title
	if req.Plan.Topic != "" {
		caption = fmt.Sprintf("%s — %s", req.Plan.Title, req.Plan.Topic)
	}
	if req.Brand.Name != "" {
		caption = fmt.Sprintf("%s | %s", caption, req.Brand.Name)
	}

	return &Draft{
		ContentRef: fmt.Sprintf("draft:%s:%s", req.Brand.ID, req.Plan.ID),
		Caption:    caption,
		Hashtags:   fallbackHashtags(req.Brand.Name, req.Plan.Topic),
	}, nil
}

func fallbackHashtags(parts ...string) []string {
	var tags []string
	for _, part := range parts {
		for _, word := range strings.Fields(part) {
			cleaned := strings.Map(func(r rune) rune {
				if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
					return r
				}
				return -1
			}, word)
			if cleaned == "" {
				continue
			}
			tags = append(tags, "#"+strings.ToLower(cleaned))
		}
	}
	return tags
}
