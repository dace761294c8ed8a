package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"sigdesk.app/server/common/logger"
)

type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	DLQStream string
	// BatchSize is the XREADGROUP COUNT.
	BatchSize int64
	// Block is how long one Read waits for new entries.
	Block time.Duration
	// RequeueDelay spaces retries of a failed task.
	RequeueDelay time.Duration
}

// Message is a task read from the stream together with its delivery metadata.
type Message struct {
	ID             string
	TaskType       TaskType
	OrganizationID int64
	DeploymentID   *int64
	Attempt        int
	TraceID        string
	LastError      string
	Raw            redis.XMessage
}

// Task returns the task msg carries, for re-enqueueing.
func (m Message) Task() Task {
	t := Task{
		TaskType:       m.TaskType,
		OrganizationID: m.OrganizationID,
		DeploymentID:   m.DeploymentID,
		Attempt:        m.Attempt,
	}
	if m.TraceID != "" {
		id := m.TraceID
		t.TraceID = &id
	}
	return t
}

// ParseMessage decodes a raw stream entry.
func ParseMessage(entry redis.XMessage) (Message, error) {
	t, err := decodeTask(entry.Values)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:             entry.ID,
		TaskType:       t.TaskType,
		OrganizationID: t.OrganizationID,
		DeploymentID:   t.DeploymentID,
		Attempt:        t.Attempt,
		LastError:      stringField(entry.Values, fieldLastError),
		Raw:            entry,
	}
	if t.TraceID != nil {
		msg.TraceID = *t.TraceID
	}
	return msg, nil
}

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

// NewRedisConsumer joins cfg.Group, creating the group and stream on first use.
func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	// Start from "0" so a recreated group still sees tasks already in the stream.
	err := client.XGroupCreateMkStream(context.Background(), cfg.Stream, cfg.Group, "0").Err() //nolint:contextcheck
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group %s: %w", cfg.Group, err)
	}
	return &RedisConsumer{client: client, cfg: cfg}, nil
}

// Read returns new entries for this consumer. Entries that do not decode are
// acknowledged and dropped so they cannot block the group.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "sigdesk.queue.consumer"})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" delivers only new entries; stale pending ones belong to the reclaimer.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var out []Message
	for _, s := range streams {
		for _, entry := range s.Messages {
			msg, err := ParseMessage(entry)
			if err != nil {
				slog.ErrorContext(ctx, "dropping malformed task", "error", err, "message_id", entry.ID)
				_ = c.Ack(ctx, Message{ID: entry.ID, Raw: entry})
				continue
			}
			out = append(out, msg)
		}
	}
	return out, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("acknowledging %s: %w", msg.ID, err)
	}
	return nil
}

// Requeue acknowledges msg and appends a copy with the next attempt number,
// after RequeueDelay.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return err
	}

	next := msg.Task()
	next.Attempt = msg.Attempt + 1
	fields := next.encode()
	if errMsg != "" {
		fields[fieldLastError] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		t := time.NewTimer(c.cfg.RequeueDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.Stream, Values: fields}).Err(); err != nil {
		return fmt.Errorf("requeueing task: %w", err)
	}
	slog.InfoContext(ctx, "task requeued", "next_attempt", next.Attempt, "reason", errMsg)
	return nil
}

// SendDLQ acknowledges msg and records it with errMsg on the dead letter stream.
func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return err
	}

	fields := msg.Task().encode()
	fields[fieldError] = errMsg
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.DLQStream, Values: fields}).Err(); err != nil {
		return fmt.Errorf("writing to %s: %w", c.cfg.DLQStream, err)
	}
	slog.ErrorContext(ctx, "task dead-lettered", "dlq_stream", c.cfg.DLQStream, "final_error", errMsg)
	return nil
}
