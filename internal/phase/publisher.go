package phase

import (
	"context"
	"log/slog"

	"postforge/internal/docstore"
	"postforge/internal/logging"
)

// Publisher posts a finished post to one target channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, post *docstore.Post) error
}

// LogPublisher records the publish as a log line and succeeds. It stands in
// for real channel integrations, which live behind per-channel credentials
// this service does not hold.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher builds the logging publisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logging.NewComponentLogger(logger, "publisher")}
}

func (p *LogPublisher) Publish(_ context.Context, channel string, post *docstore.Post) error {
	p.logger.Info("post published",
		logging.String("channel", channel),
		logging.String(logging.FieldRunID, post.RunTraceID),
		logging.String("post_id", post.ID),
		logging.Bool("has_media", post.MediaRef != ""),
	)
	return nil
}
