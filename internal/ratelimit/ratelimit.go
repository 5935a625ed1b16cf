// Package ratelimit implements fixed-window request limiting keyed by
// client identifier and tier. The limiter is an interface so the backing
// store can be swapped: the in-memory store suits a single instance, the
// Redis store shares counters across instances.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Tier selects which window configuration applies to a request.
type Tier string

const (
	// TierUpload covers the upload endpoints only.
	TierUpload Tier = "upload"
	// TierGeneral covers every authenticated request regardless of endpoint.
	TierGeneral Tier = "general"
)

var ErrUnknownTier = errors.New("unknown rate limit tier")

// Config is the per-tier window configuration.
type Config struct {
	Limit  int
	Window time.Duration
}

// Result reports the outcome of a single check-and-increment.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the current window expires and the counter restarts.
	ResetAt time.Time
}

// Limiter decides whether a request from clientID may proceed under the
// given tier. A disallowed request must not extend the client's block.
type Limiter interface {
	Allow(ctx context.Context, clientID string, tier Tier) (Result, error)
}
