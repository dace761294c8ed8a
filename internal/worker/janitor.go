package worker

import (
	"context"
	"log/slog"
	"time"

	"sigdesk.app/server/common/logger"
)

// Janitor periodically deletes expired sessions and expires stale invitations.
type Janitor struct {
	sessions    SessionPurger
	invitations InvitationExpirer
	interval    time.Duration

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewJanitor(sessions SessionPurger, invitations InvitationExpirer, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		sessions:    sessions,
		invitations: invitations,
		interval:    interval,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

// Run sweeps once immediately, then every interval until Stop or ctx ends.
func (j *Janitor) Run(ctx context.Context) {
	defer close(j.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "sigdesk.worker.janitor"})

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

func (j *Janitor) Stop() {
	close(j.stopCh)
	<-j.stoppedCh
}

func (j *Janitor) Sweep(ctx context.Context) {
	if n, err := j.sessions.PurgeExpired(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to purge expired sessions", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "expired sessions purged", "count", n)
	}

	if n, err := j.invitations.ExpireOld(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to expire invitations", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "stale invitations expired", "count", n)
	}
}
