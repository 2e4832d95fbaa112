// Package ratelimit records the Strava rate-limit headers so callers can
// observe how much of the 15-minute and daily request budgets is used.
// Header parsing is strictly best-effort: malformed or missing headers
// leave the state unknown, never produce an error.
package ratelimit

import "time"

// Strava reports usage and limits as comma-separated pairs:
// "<15-minute value>,<daily value>".
const (
	HeaderLimit = "X-RateLimit-Limit"
	HeaderUsage = "X-RateLimit-Usage"
)

// Window is one rate-limit budget: requests used against requests allowed.
type Window struct {
	Usage int `json:"usage"`
	Limit int `json:"limit"`
}

// Exceeded reports whether usage has reached the limit.
func (w Window) Exceeded() bool {
	return w.Limit > 0 && w.Usage >= w.Limit
}

// State is the most recently observed rate-limit snapshot. Known is false
// until a response with well-formed headers has been seen.
type State struct {
	FifteenMinute Window    `json:"fifteen_minute"`
	Daily         Window    `json:"daily"`
	UpdatedAt     time.Time `json:"updated_at"`
	Known         bool      `json:"known"`
}
