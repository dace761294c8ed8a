package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sigdesk.app/server/common/logger"
	"sigdesk.app/server/internal/queue"
)

var errUnknownTask = errors.New("unknown task type")

type Config struct {
	MaxAttempts int
	// ErrorBackoff is the pause after a failed read.
	ErrorBackoff time.Duration
}

type Worker struct {
	consumer    Consumer
	deployments DeploymentRunner
	directory   DirectorySyncer
	cfg         Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, deployments DeploymentRunner, directory DirectorySyncer, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:    consumer,
		deployments: deployments,
		directory:   directory,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "sigdesk.worker"})
	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		_ = w.Handle(ctx, msg)
	}
	return nil
}

// Handle processes msg and, on failure, requeues or dead-letters it. The
// reclaimer reuses it for stale messages.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	ctx = messageContext(ctx, msg)

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_task",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", string(msg.TaskType)),
			attribute.Int64("organization.id", msg.OrganizationID),
			attribute.Int("task.attempt", msg.Attempt),
		))
	defer sc.End()
	ctx = sc.Context()

	if err := w.processMessageSafe(ctx, msg); err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "message processing failed", "error", err, "attempt", msg.Attempt)
		w.handleFailedMessage(ctx, msg, err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer will redeliver; both handlers are idempotent.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage runs the task without acknowledging it.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	slog.InfoContext(ctx, "processing message", "attempt", msg.Attempt)
	start := time.Now()

	var err error
	switch msg.TaskType {
	case queue.TaskTypeDeployment:
		if msg.DeploymentID == nil {
			return fmt.Errorf("%w: deployment task without deployment id", queue.ErrInvalidTask)
		}
		err = w.deployments.Run(ctx, msg.OrganizationID, *msg.DeploymentID)
	case queue.TaskTypeDirectorySync:
		result, syncErr := w.directory.Sync(ctx, msg.OrganizationID)
		if syncErr == nil {
			slog.InfoContext(ctx, "directory sync task finished",
				"fetched", result.Fetched,
				"removed", result.Removed)
		}
		err = syncErr
	default:
		err = fmt.Errorf("%w: %q", errUnknownTask, msg.TaskType)
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "message processed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts || errors.Is(err, errUnknownTask) || errors.Is(err, queue.ErrInvalidTask) {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ", "attempts", msg.Attempt)
		if dlqErr := w.DeadLetter(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to dead-letter message", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message", "attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

// DeadLetter moves msg to the DLQ without running it again. A dead-lettered
// deployment is marked failed so it does not stay queued forever.
func (w *Worker) DeadLetter(ctx context.Context, msg queue.Message, cause string) error {
	ctx = messageContext(ctx, msg)
	if err := w.consumer.SendDLQ(ctx, msg, cause); err != nil {
		return err
	}
	if msg.TaskType != queue.TaskTypeDeployment || msg.DeploymentID == nil {
		return nil
	}
	if err := w.deployments.Abandon(ctx, msg.OrganizationID, *msg.DeploymentID, logger.Truncate(cause, 500)); err != nil {
		return fmt.Errorf("marking dead-lettered deployment failed: %w", err)
	}
	return nil
}

func messageContext(ctx context.Context, msg queue.Message) context.Context {
	fields := logger.LogFields{
		OrganizationID: &msg.OrganizationID,
		DeploymentID:   msg.DeploymentID,
		MessageID:      &msg.ID,
		TaskType:       logger.Ptr(string(msg.TaskType)),
	}
	return logger.WithLogFields(ctx, fields)
}
