package run

// Phase summaries are modeled as typed variants that serialize to the loose
// summary map carried by RunState. The typed forms are validated at phase
// boundaries; the map form is what crosses the wire and the store.

// Summary is implemented by per-phase result payloads.
type Summary interface {
	SummaryMap() map[string]any
}

// CopywriterSummary is the result payload of the copywriter phase.
type CopywriterSummary struct {
	ContentRef string   `json:"contentRef"`
	Caption    string   `json:"caption,omitempty"`
	Hashtags   []string `json:"hashtags,omitempty"`
}

// SummaryMap converts the summary to its wire form.
func (s CopywriterSummary) SummaryMap() map[string]any {
	m := map[string]any{"contentRef": s.ContentRef}
	if s.Caption != "" {
		m["caption"] = s.Caption
	}
	if len(s.Hashtags) > 0 {
		tags := make([]any, len(s.Hashtags))
		for i, tag := range s.Hashtags {
			tags[i] = tag
		}
		m["hashtags"] = tags
	}
	return m
}

// ImageSummary is the result payload of the image phase. A zero MediaRef
// means the plan was text-only and the phase was skipped.
type ImageSummary struct {
	MediaRef string `json:"mediaRef,omitempty"`
	URL      string `json:"url,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// SummaryMap converts the summary to its wire form.
func (s ImageSummary) SummaryMap() map[string]any {
	m := map[string]any{}
	if s.MediaRef != "" {
		m["mediaRef"] = s.MediaRef
	}
	if s.URL != "" {
		m["url"] = s.URL
	}
	if s.Provider != "" {
		m["provider"] = s.Provider
	}
	return m
}

// ChannelResult captures the outcome of publishing to one target channel.
type ChannelResult struct {
	Channel string `json:"channel"`
	Posted  bool   `json:"posted"`
	Error   string `json:"error,omitempty"`
}

// PublishSummary is the result payload of the publish phase.
type PublishSummary struct {
	PostID         string          `json:"postId"`
	PublishedAtUtc string          `json:"publishedAtUtc"`
	ContentRef     string          `json:"contentRef,omitempty"`
	MediaRef       string          `json:"mediaRef,omitempty"`
	Channels       []ChannelResult `json:"channels,omitempty"`
}

// SummaryMap converts the summary to its wire form.
func (s PublishSummary) SummaryMap() map[string]any {
	m := map[string]any{
		"postId":         s.PostID,
		"publishedAtUtc": s.PublishedAtUtc,
	}
	if s.ContentRef != "" {
		m["contentRef"] = s.ContentRef
	}
	if s.MediaRef != "" {
		m["mediaRef"] = s.MediaRef
	}
	if len(s.Channels) > 0 {
		channels := make([]any, 0, len(s.Channels))
		for _, ch := range s.Channels {
			entry := map[string]any{"channel": ch.Channel, "posted": ch.Posted}
			if ch.Error != "" {
				entry["error"] = ch.Error
			}
			channels = append(channels, entry)
		}
		m["channels"] = channels
	}
	return m
}

// ErrorSummary is recorded when a phase fails terminally.
type ErrorSummary struct {
	Error string `json:"error"`
}

// SummaryMap converts the summary to its wire form.
func (s ErrorSummary) SummaryMap() map[string]any {
	return map[string]any{"error": s.Error}
}
