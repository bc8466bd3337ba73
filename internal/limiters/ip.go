package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("ip rate limited")
	ErrRedisUnavailable = errors.New("limiter redis unavailable")
)

// Scope names one throttled operation.
type Scope string

const (
	ScopeRegister     Scope = "register"
	ScopeLogin        Scope = "login"
	ScopeResetRequest Scope = "reset_request"
)

// Config sets per-scope budgets. A budget <= 0 disables that scope.
type Config struct {
	Window          time.Duration
	RegisterMax     int
	LoginMax        int
	ResetRequestMax int
}

// IPLimiter enforces fixed-window budgets per client IP and scope.
type IPLimiter struct {
	windows map[Scope]*rate.Window
}

func NewIPLimiter(redisClient redis.UniversalClient, cfg Config) *IPLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	l := &IPLimiter{windows: make(map[Scope]*rate.Window, 3)}
	add := func(scope Scope, max int) {
		if max > 0 {
			l.windows[scope] = rate.NewWindow(redisClient, "alip:"+string(scope), max, cfg.Window)
		}
	}
	add(ScopeRegister, cfg.RegisterMax)
	add(ScopeLogin, cfg.LoginMax)
	add(ScopeResetRequest, cfg.ResetRequestMax)
	return l
}

// Check counts one request from ip against scope. Requests without a known
// client IP are not throttled.
func (l *IPLimiter) Check(ctx context.Context, scope Scope, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	w, ok := l.windows[scope]
	if !ok {
		return nil
	}
	switch err := w.Hit(ctx, ip); {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRateLimited
	default:
		return errors.Join(ErrRedisUnavailable, err)
	}
}

// Enabled reports whether scope has a budget.
func (l *IPLimiter) Enabled(scope Scope) bool {
	if l == nil {
		return false
	}
	_, ok := l.windows[scope]
	return ok
}
