package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Memory is the in-process limiter. Windows are created lazily on first
// request and reset in place once expired. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	tiers   map[Tier]Config
	now     func() time.Time
}

// NewMemory builds an in-memory limiter. now may be nil and defaults to
// time.Now; tests inject a fake clock.
func NewMemory(tiers map[Tier]Config, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		windows: make(map[string]*window),
		tiers:   tiers,
		now:     now,
	}
}

// Allow runs the fixed-window state machine for one request:
// expired window -> reset with count 1; count below limit -> increment;
// at limit -> reject without incrementing, so repeated rejected requests
// do not push the reset time out.
func (m *Memory) Allow(ctx context.Context, clientID string, tier Tier) (Result, error) {
	cfg, ok := m.tiers[tier]
	if !ok {
		return Result{}, ErrUnknownTier
	}

	now := m.now()
	key := clientID + "|" + string(tier)

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) > cfg.Window {
		m.windows[key] = &window{start: now, count: 1}
		return m.result(true, cfg, now, 1), nil
	}

	if w.count < cfg.Limit {
		w.count++
		return Result{
			Allowed:   true,
			Limit:     cfg.Limit,
			Remaining: cfg.Limit - w.count,
			ResetAt:   w.start.Add(cfg.Window),
		}, nil
	}

	return Result{
		Allowed:   false,
		Limit:     cfg.Limit,
		Remaining: 0,
		ResetAt:   w.start.Add(cfg.Window),
	}, nil
}

func (m *Memory) result(allowed bool, cfg Config, start time.Time, count int) Result {
	return Result{
		Allowed:   allowed,
		Limit:     cfg.Limit,
		Remaining: cfg.Limit - count,
		ResetAt:   start.Add(cfg.Window),
	}
}
