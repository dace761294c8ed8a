// Package ratelimit implements a sliding-window request limiter keyed by
// user id or client IP. Every request inside the window is remembered; a
// request is rejected when the window already holds MaxRequests entries.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrInvalidConfig = errors.New("invalid rate limit config")

type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Presets used by the HTTP layer.
var (
	Auth      = Config{MaxRequests: 5, Window: 15 * time.Minute}
	API       = Config{MaxRequests: 100, Window: time.Minute}
	Sensitive = Config{MaxRequests: 10, Window: time.Hour}
	Public    = Config{MaxRequests: 20, Window: time.Minute}
)

func (c Config) Validate() error {
	if c.MaxRequests <= 0 {
		return fmt.Errorf("%w: max requests must be positive", ErrInvalidConfig)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive", ErrInvalidConfig)
	}
	return nil
}

// Result describes the state of a key after a request was counted (or refused).
type Result struct {
	// At is the store's clock reading when the request was evaluated.
	At        time.Time
	Reset     time.Time
	Limit     int
	Remaining int
	Success   bool
}

// RetryAfter is how long a rejected caller should wait before the oldest
// request leaves the window. Zero for successful results.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Success {
		return 0
	}
	d := r.Reset.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Store keeps the per-key request log.
type Store interface {
	// Hit records a request for key at the current time if the window has room.
	Hit(ctx context.Context, key string, cfg Config) (Result, error)
	// Reset forgets every request recorded for key.
	Reset(ctx context.Context, key string) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Limiter applies one Config to a namespace of keys in a Store.
type Limiter struct {
	store Store
	name  string
	cfg   Config
}

func New(store Store, name string, cfg Config) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	return &Limiter{store: store, name: name, cfg: cfg}, nil
}

func (l *Limiter) Name() string { return l.name }

func (l *Limiter) Config() Config { return l.cfg }

// Check counts a request for identifier and reports whether it is allowed.
func (l *Limiter) Check(ctx context.Context, identifier string) (Result, error) {
	res, err := l.store.Hit(ctx, l.key(identifier), l.cfg)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", l.name, err)
	}
	return res, nil
}

// Reset clears the window for identifier, e.g. after a successful sign-in.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	return l.store.Reset(ctx, l.key(identifier))
}

func (l *Limiter) key(identifier string) string {
	return l.name + ":" + identifier
}

// Identifier prefers the authenticated user so that users behind one NAT do
// not share a budget; anonymous callers are keyed by IP.
func Identifier(userID int64, ip string) string {
	if userID > 0 {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
