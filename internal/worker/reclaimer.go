package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sigdesk.app/server/common/logger"
	"sigdesk.app/server/internal/queue"
)

const defaultMaxDeliveries = 5

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
	// MaxDeliveries caps how often one entry is handed out. A task that keeps
	// killing its worker never reaches the retry path, so the reclaimer
	// dead-letters it instead of claiming it again.
	MaxDeliveries int64
}

// TaskHandler runs or dead-letters a claimed task. *Worker implements it.
type TaskHandler interface {
	Handle(ctx context.Context, msg queue.Message) error
	DeadLetter(ctx context.Context, msg queue.Message, cause string) error
}

// RedisReclaimer periodically claims deployment and sync tasks left pending by
// a worker that died between XREADGROUP and XACK.
type RedisReclaimer struct {
	client   *redis.Client
	cfg      RedisReclaimerConfig
	consumer Consumer
	handler  TaskHandler

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer Consumer, handler TaskHandler) *RedisReclaimer {
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = defaultMaxDeliveries
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		handler:   handler,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx ends.
func (r *RedisReclaimer) Run(ctx context.Context) {
	defer close(r.stoppedCh)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "sigdesk.worker.reclaimer"})

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"max_deliveries", r.cfg.MaxDeliveries)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
			} else if n > 0 {
				slog.InfoContext(ctx, "stale tasks reclaimed", "count", n)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// Sweep claims up to BatchSize entries idle for at least MinIdle and returns
// how many it took over.
func (r *RedisReclaimer) Sweep(ctx context.Context) (int, error) {
	stale, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("listing pending tasks: %w", err)
	}

	claimed := 0
	for _, p := range stale {
		ok, err := r.takeOver(ctx, p)
		if err != nil {
			slog.ErrorContext(ctx, "failed to reclaim task",
				"error", err,
				"message_id", p.ID,
				"previous_consumer", p.Consumer,
				"deliveries", p.RetryCount)
		}
		if ok {
			claimed++
		}
	}
	return claimed, nil
}

// takeOver claims one entry and either reruns or dead-letters it. It reports
// false when another reclaimer got there first.
func (r *RedisReclaimer) takeOver(ctx context.Context, p redis.XPendingExt) (bool, error) {
	entryID := p.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: &entryID})

	entries, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: []string{p.ID},
	}).Result()
	if err != nil {
		return false, fmt.Errorf("claiming task: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	msg, err := queue.ParseMessage(entries[0])
	if err != nil {
		slog.ErrorContext(ctx, "dropping unparseable task", "error", err)
		return true, r.consumer.Ack(ctx, queue.Message{ID: entries[0].ID, Raw: entries[0]})
	}

	if p.RetryCount >= r.cfg.MaxDeliveries {
		cause := fmt.Sprintf("abandoned by %d consumers without acknowledgement", p.RetryCount)
		slog.WarnContext(ctx, "dead-lettering task that keeps stalling",
			"previous_consumer", p.Consumer,
			"deliveries", p.RetryCount)
		return true, r.handler.DeadLetter(ctx, msg, cause)
	}

	slog.InfoContext(ctx, "rerunning stalled task",
		"task_type", msg.TaskType,
		"previous_consumer", p.Consumer,
		"idle", p.Idle)
	return true, r.handler.Handle(ctx, msg)
}
