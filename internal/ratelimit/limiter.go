package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/SecuShare/filevault/pkg/logger"
)

// Check is one limiter to evaluate for a request.
type Check struct {
	// Rule names the limiter for metrics and logs, e.g. "ip" or "resource".
	Rule   string
	Key    string
	Limit  int64
	Window time.Duration
}

// Result is the outcome of a single hit.
type Result struct {
	Rule              string
	Key               string
	Success           bool
	Count             int64
	Limit             int64
	Remaining         int64
	ResetAt           time.Time
	RetryAfterSeconds int64
}

type Limiter struct {
	store    Store
	fallback *MemoryStore
	now      func() time.Time
	log      zerolog.Logger
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter builds a limiter over store. When store fails, counting
// continues in process memory until it recovers.
func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		fallback: NewMemoryStore(),
		now:      time.Now,
		log:      logger.Component("ratelimit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = l.fallback
	}
	return l
}

// Now reports the limiter's clock.
func (l *Limiter) Now() time.Time {
	return l.now()
}

// Hit counts one request against key. A hit past limit fails with the number
// of whole seconds until the window resets.
func (l *Limiter) Hit(ctx context.Context, key string, limit int64, window time.Duration) Result {
	return l.hit(ctx, Check{Key: key, Limit: limit, Window: window})
}

func (l *Limiter) hit(ctx context.Context, check Check) Result {
	now := l.now()

	counter, err := l.store.Increment(ctx, check.Key, check.Window, now)
	if err != nil {
		storeErrors.Inc()
		l.log.Warn().Err(err).Str("key", check.Key).Msg("Rate limit store failed; using in-memory counter")
		counter, _ = l.fallback.Increment(ctx, check.Key, check.Window, now)
	}

	resetAt := counter.WindowStart.Add(check.Window)
	res := Result{
		Rule:    check.Rule,
		Key:     check.Key,
		Count:   counter.Count,
		Limit:   check.Limit,
		ResetAt: resetAt,
		Success: counter.Count <= check.Limit,
	}
	if res.Success {
		res.Remaining = check.Limit - counter.Count
		return res
	}

	res.RetryAfterSeconds = ceilSeconds(resetAt.Sub(now))
	rejections.WithLabelValues(ruleLabel(check.Rule)).Inc()
	return res
}

// Evaluate hits every check and combines the results. All checks are counted
// even when an earlier one already failed.
func (l *Limiter) Evaluate(ctx context.Context, checks ...Check) Decision {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		results = append(results, l.hit(ctx, check))
	}
	return Combine(results...)
}

// Sweep removes expired counters from the store and the in-memory fallback.
func (l *Limiter) Sweep(ctx context.Context) (int64, error) {
	now := l.now()
	memRemoved, _ := l.fallback.Sweep(ctx, now)
	if l.store == Store(l.fallback) {
		return memRemoved, nil
	}
	removed, err := l.store.Sweep(ctx, now)
	return removed + memRemoved, err
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

func ruleLabel(rule string) string {
	if rule == "" {
		return "default"
	}
	return rule
}
