package chain

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"postforge/internal/config"
	"postforge/internal/logging"
	"postforge/internal/run"
)

// Bus is the NATS connection the chained driver publishes and consumes on.
// With embedded queueing it also owns an in-process server, which keeps
// single-host deployments free of external brokers.
type Bus struct {
	conn   *nats.Conn
	server *server.Server
	logger *slog.Logger
}

// Connect dials NATS, starting an embedded server first when configured.
func Connect(cfg config.Queueing, logger *slog.Logger) (*Bus, error) {
	bus := &Bus{logger: logging.NewComponentLogger(logger, "queue-bus")}

	url := cfg.URL
	if cfg.Embedded {
		ns, err := server.NewServer(&server.Options{
			Host:  "127.0.0.1",
			Port:  server.RANDOM_PORT,
			NoLog: true,
		})
		if err != nil {
			return nil, fmt.Errorf("queue bus: embedded server: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(10 * time.Second) {
			ns.Shutdown()
			return nil, errors.New("queue bus: embedded server not ready")
		}
		bus.server = ns
		url = ns.ClientURL()
		bus.logger.Info("embedded queue server started", logging.String("url", url))
	}

	conn, err := nats.Connect(url,
		nats.Name("postforge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		if bus.server != nil {
			bus.server.Shutdown()
		}
		return nil, fmt.Errorf("queue bus: connect %s: %w", url, err)
	}
	bus.conn = conn
	return bus, nil
}

// Publish sends one pipeline message to a queue subject.
func (b *Bus) Publish(subject string, msg run.QueueMessage) error {
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := b.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// PublishRaw sends a pre-encoded payload; the error channel uses it.
func (b *Bus) PublishRaw(subject string, payload []byte) error {
	if err := b.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe binds a handler to a subject within the shared queue group, so
// horizontally scaled daemons split the work instead of duplicating it.
func (b *Bus) Subscribe(subject string, handler func(*nats.Msg)) (*nats.Subscription, error) {
	sub, err := b.conn.QueueSubscribe(subject, "postforge", handler)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// Flush waits until published messages reach the server.
func (b *Bus) Flush() error {
	return b.conn.Flush()
}

// Close drains the connection and stops the embedded server if one runs.
func (b *Bus) Close() {
	if b.conn != nil {
		_ = b.conn.Drain()
		b.conn.Close()
	}
	if b.server != nil {
		b.server.Shutdown()
		b.server.WaitForShutdown()
	}
}
