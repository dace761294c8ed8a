package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type memoryWindow struct {
	hits   []time.Time
	window time.Duration
}

// MemoryStore keeps request logs in process memory. State is lost on restart
// and is not shared between replicas; use RedisStore for that.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	clock   Clock
}

func NewMemoryStore(clk Clock) *MemoryStore {
	if clk == nil {
		clk = realClock{}
	}
	return &MemoryStore{
		windows: map[string]*memoryWindow{},
		clock:   clk,
	}
}

func (s *MemoryStore) Hit(_ context.Context, key string, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil {
		w = &memoryWindow{}
		s.windows[key] = w
	}
	w.window = cfg.Window
	w.hits = prune(w.hits, now.Add(-cfg.Window))

	if len(w.hits) >= cfg.MaxRequests {
		return Result{
			At:        now,
			Success:   false,
			Limit:     cfg.MaxRequests,
			Remaining: 0,
			Reset:     w.hits[0].Add(cfg.Window),
		}, nil
	}

	w.hits = append(w.hits, now)
	return Result{
		At:        now,
		Success:   true,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests - len(w.hits),
		Reset:     w.hits[0].Add(cfg.Window),
	}, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Cleanup drops keys whose every request has left the window.
// Returns the number of keys removed.
func (s *MemoryStore) Cleanup() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		w.hits = prune(w.hits, now.Add(-w.window))
		if len(w.hits) == 0 {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Run calls Cleanup every interval until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				slog.DebugContext(ctx, "rate limit keys expired", "removed", n, "remaining", s.Len())
			}
		}
	}
}

// prune drops timestamps at or before cutoff. hits is sorted ascending.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
