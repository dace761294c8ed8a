package router

import (
	"fmt"

	"sigdesk.app/server/internal/ratelimit"
)

// Limiters are the per-route-class rate limits, all sharing one store.
type Limiters struct {
	Auth      *ratelimit.Limiter
	API       *ratelimit.Limiter
	Sensitive *ratelimit.Limiter
	Public    *ratelimit.Limiter
}

func NewLimiters(store ratelimit.Store) (Limiters, error) {
	newLimiter := func(name string, cfg ratelimit.Config) (*ratelimit.Limiter, error) {
		l, err := ratelimit.New(store, name, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s limiter: %w", name, err)
		}
		return l, nil
	}

	var (
		l   Limiters
		err error
	)
	if l.Auth, err = newLimiter("auth", ratelimit.Auth); err != nil {
		return Limiters{}, err
	}
	if l.API, err = newLimiter("api", ratelimit.API); err != nil {
		return Limiters{}, err
	}
	if l.Sensitive, err = newLimiter("sensitive", ratelimit.Sensitive); err != nil {
		return Limiters{}, err
	}
	if l.Public, err = newLimiter("public", ratelimit.Public); err != nil {
		return Limiters{}, err
	}
	return l, nil
}
