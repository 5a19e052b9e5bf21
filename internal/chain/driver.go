package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"postforge/internal/config"
	"postforge/internal/logging"
	"postforge/internal/phase"
	"postforge/internal/run"
)

// Driver is the chained-queue coordinator: one consumer per phase queue,
// each running its executor and forwarding the next message. Progress
// survives in the queues and the run state store, never in driver memory.
type Driver struct {
	bus       *Bus
	deps      *phase.Deps
	executors map[string]phase.Executor
	queues    config.Pipeline
	logger    *slog.Logger

	mu      sync.Mutex
	subs    []*nats.Subscription
	stopped bool
	baseCtx context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// errorEnvelope is the payload published to the error queue when a phase
// fails terminally.
type errorEnvelope struct {
	Message    run.QueueMessage `json:"message"`
	FailedStep string           `json:"failedStep"`
	Error      string           `json:"error"`
	FailedAt   time.Time        `json:"failedAt"`
}

// NewDriver wires phase executors to the configured queue subjects.
func NewDriver(bus *Bus, deps *phase.Deps, queues config.Pipeline, logger *slog.Logger) *Driver {
	return &Driver{
		bus:       bus,
		deps:      deps,
		executors: phase.Executors(deps),
		queues:    queues,
		logger:    logging.NewComponentLogger(logger, "chain-driver"),
	}
}

// Start subscribes every phase consumer. Handlers run until Stop.
func (d *Driver) Start(ctx context.Context) error {
	d.baseCtx, d.cancel = context.WithCancel(ctx)

	bindings := []struct {
		subject string
		step    string
	}{
		{d.queues.ContentQueue, run.StepGenerateContent},
		{d.queues.MediaQueue, run.StepGenerateImage},
		{d.queues.PublishQueue, run.StepPublish},
	}
	for _, binding := range bindings {
		executor := d.executors[binding.step]
		subject := binding.subject
		sub, err := d.bus.Subscribe(subject, func(msg *nats.Msg) {
			d.handle(subject, executor, msg.Data)
		})
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.subs = append(d.subs, sub)
		d.mu.Unlock()
		d.logger.Info("phase consumer started",
			logging.String(logging.FieldQueue, subject),
			logging.String(logging.FieldPhase, string(executor.Phase())),
		)
	}

	errSub, err := d.bus.Subscribe(d.queues.ErrorQueue, d.handleError)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.subs = append(d.subs, errSub)
	d.mu.Unlock()
	return nil
}

// Submit seeds a new run: the orchestrate phase is marked in progress and
// the first content task enters the chain.
func (d *Driver) Submit(ctx context.Context, msg run.QueueMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := d.bus.Publish(d.queues.ContentQueue, msg); err != nil {
		return err
	}
	d.logger.Info("run submitted",
		logging.String(logging.FieldRunID, msg.RunTraceID),
		logging.String(logging.FieldQueue, d.queues.ContentQueue),
	)
	return nil
}

// handle decodes and executes one delivery. Malformed payloads are dropped
// after logging; executor failures route to the error queue.
func (d *Driver) handle(subject string, executor phase.Executor, payload []byte) {
	// Registering with pending under the lock closes the window where a
	// just-delivered message could slip past Stop's Wait and run on a
	// cancelled context.
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.logger.Warn("dropping delivery during shutdown",
			logging.String(logging.FieldQueue, subject),
		)
		return
	}
	d.pending.Add(1)
	d.mu.Unlock()
	defer d.pending.Done()

	msg, err := run.DecodeMessage(payload)
	if err != nil {
		// Redelivering a payload that cannot decode would loop forever.
		d.logger.Warn("dropping malformed queue message",
			logging.String(logging.FieldQueue, subject),
			logging.Error(err),
		)
		return
	}
	logger := logging.WithRun(d.logger, msg.RunTraceID)

	next, err := executor.Execute(d.baseCtx, msg)
	if err != nil {
		logger.Error("phase failed",
			logging.String(logging.FieldPhase, string(executor.Phase())),
			logging.Bool("config_error", phase.IsConfigError(err)),
			logging.Error(err),
		)
		d.publishError(msg, err)
		return
	}
	if next == nil {
		return
	}

	subjectNext, err := d.queueFor(next.Step)
	if err != nil {
		logger.Error("no queue for next step", logging.Error(err))
		d.publishError(msg, err)
		return
	}
	if err := d.bus.Publish(subjectNext, *next); err != nil {
		logger.Error("forward to next phase failed",
			logging.String(logging.FieldQueue, subjectNext),
			logging.Error(err),
		)
		d.publishError(msg, err)
	}
}

// handleError consumes the error queue. Failures are already recorded in
// run state by the failing executor; this consumer keeps the dead letters
// visible in the logs.
func (d *Driver) handleError(msg *nats.Msg) {
	var envelope errorEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		d.logger.Warn("malformed error-queue payload", logging.Error(err))
		return
	}
	d.logger.Error("run failed terminally",
		logging.String(logging.FieldRunID, envelope.Message.RunTraceID),
		logging.String("failed_step", envelope.FailedStep),
		logging.String("reason", envelope.Error),
	)
}

func (d *Driver) publishError(msg run.QueueMessage, cause error) {
	payload, err := json.Marshal(errorEnvelope{
		Message:    msg,
		FailedStep: msg.Step,
		Error:      cause.Error(),
		FailedAt:   time.Now().UTC(),
	})
	if err != nil {
		d.logger.Error("encode error envelope failed", logging.Error(err))
		return
	}
	if err := d.bus.PublishRaw(d.queues.ErrorQueue, payload); err != nil {
		d.logger.Error("publish to error queue failed", logging.Error(err))
	}
}

func (d *Driver) queueFor(step string) (string, error) {
	switch step {
	case run.StepGenerateContent:
		return d.queues.ContentQueue, nil
	case run.StepGenerateImage:
		return d.queues.MediaQueue, nil
	case run.StepPublish:
		return d.queues.PublishQueue, nil
	default:
		return "", fmt.Errorf("unknown step %q", step)
	}
}

// Stop unsubscribes the consumers, lets in-flight handlers finish, then
// releases the handler context. Safe to call more than once.
func (d *Driver) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	d.pending.Wait()
	if d.cancel != nil {
		d.cancel()
	}
}
