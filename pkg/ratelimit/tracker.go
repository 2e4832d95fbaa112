package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	stravaRateLimitUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "strava_rate_limit_usage",
		Help: "Requests used in the current rate limit window",
	}, []string{"window"})

	stravaRateLimitLimit = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "strava_rate_limit_limit",
		Help: "Requests allowed in the rate limit window",
	}, []string{"window"})

	stravaRateLimitParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strava_rate_limit_parse_failures_total",
		Help: "Total number of malformed rate limit headers seen",
	})
)

// Tracker keeps the two most recent rate-limit header values observed on
// API responses. Safe for concurrent reads and writes.
type Tracker struct {
	mu     sync.RWMutex
	state  State
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// State returns the most recent rate-limit snapshot.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// FifteenMinuteBudgetExceeded reports whether the 15-minute budget is
// spent. known is false when no well-formed headers have been seen yet.
func (t *Tracker) FifteenMinuteBudgetExceeded() (exceeded, known bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.FifteenMinute.Exceeded(), t.state.Known
}

// DailyBudgetExceeded reports whether the daily budget is spent. known is
// false when no well-formed headers have been seen yet.
func (t *Tracker) DailyBudgetExceeded() (exceeded, known bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Daily.Exceeded(), t.state.Known
}

// UpdateFromHeaders parses the rate-limit headers of a response and
// replaces the tracked state. Absent headers are ignored; malformed values
// are logged and leave the previous state untouched.
func (t *Tracker) UpdateFromHeaders(headers http.Header) {
	limitStr := headers.Get(HeaderLimit)
	usageStr := headers.Get(HeaderUsage)
	if limitStr == "" && usageStr == "" {
		return
	}

	fifteenLimit, dailyLimit, err := parsePair(limitStr)
	if err != nil {
		stravaRateLimitParseFailures.Inc()
		t.logger.Warn().Err(err).Str("header", HeaderLimit).Str("value", limitStr).
			Msg("Malformed rate limit header")
		return
	}
	fifteenUsage, dailyUsage, err := parsePair(usageStr)
	if err != nil {
		stravaRateLimitParseFailures.Inc()
		t.logger.Warn().Err(err).Str("header", HeaderUsage).Str("value", usageStr).
			Msg("Malformed rate limit header")
		return
	}

	state := State{
		FifteenMinute: Window{Usage: fifteenUsage, Limit: fifteenLimit},
		Daily:         Window{Usage: dailyUsage, Limit: dailyLimit},
		UpdatedAt:     time.Now(),
		Known:         true,
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	stravaRateLimitUsage.WithLabelValues("fifteen_minute").Set(float64(fifteenUsage))
	stravaRateLimitLimit.WithLabelValues("fifteen_minute").Set(float64(fifteenLimit))
	stravaRateLimitUsage.WithLabelValues("daily").Set(float64(dailyUsage))
	stravaRateLimitLimit.WithLabelValues("daily").Set(float64(dailyLimit))

	logEvent := t.logger.Debug()
	if state.FifteenMinute.Exceeded() || state.Daily.Exceeded() {
		logEvent = t.logger.Warn()
	}
	logEvent.
		Int("fifteen_minute_usage", fifteenUsage).
		Int("fifteen_minute_limit", fifteenLimit).
		Int("daily_usage", dailyUsage).
		Int("daily_limit", dailyLimit).
		Msg("Rate limit state updated")
}

// parsePair splits a "<15-minute>,<daily>" header value.
func parsePair(value string) (fifteen, daily int, err error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, strconv.ErrSyntax
	}
	fifteen, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	daily, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return fifteen, daily, nil
}
