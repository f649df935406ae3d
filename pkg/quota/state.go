// Package quota tracks YouTube Data API quota units and gates requests.
// The API grants a daily unit budget per project that resets at midnight
// Pacific time; the used count is shared across processes via Redis.
package quota

import (
	"strings"
	"time"
	_ "time/tzdata" // reset zone must resolve in minimal containers
)

// RedisKeyPrefix prefixes the per-day usage hash.
const RedisKeyPrefix = "yt:quota:"

// DefaultDailyLimit is the default Data API budget of a Google Cloud project.
const DefaultDailyLimit = 10000

// Thresholds for quota decisions, as fractions of the daily limit.
const (
	// WarningRatio marks the state as throttled when less than this share
	// of the daily budget remains.
	WarningRatio = 0.10

	// HealthyRatio is the share of the budget at or above which the state
	// is healthy.
	HealthyRatio = 0.25
)

var resetZone = loadResetZone()

func loadResetZone() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return time.FixedZone("PST", -8*60*60)
	}
	return loc
}

// Day returns the quota day containing t (YYYY-MM-DD in the reset zone)
// and the instant that day's budget resets.
func Day(t time.Time) (string, time.Time) {
	p := t.In(resetZone)
	midnight := time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, resetZone)
	return midnight.Format("2006-01-02"), midnight.AddDate(0, 0, 1)
}

// RedisKey returns the usage hash key for a quota day.
func RedisKey(day string) string {
	return RedisKeyPrefix + day
}

// State is the quota usage of the current day.
type State struct {
	// Day is the quota day (YYYY-MM-DD, Pacific time).
	Day string `json:"day"`

	// Used is the number of units spent today.
	Used int64 `json:"used"`

	// Limit is the daily budget.
	Limit int64 `json:"limit"`

	// ResetAt is when the budget resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when usage was last recorded; zero if never.
	LastUpdate time.Time `json:"last_update"`

	// Exhausted is set when the API itself reported the quota as spent.
	Exhausted bool `json:"exhausted"`

	// IsHealthy is true while Remaining >= Limit*HealthyRatio.
	IsHealthy bool `json:"is_healthy"`
}

// Remaining returns the units left today, never negative.
func (s *State) Remaining() int64 {
	if s.Exhausted {
		return 0
	}
	r := s.Limit - s.Used
	if r < 0 {
		return 0
	}
	return r
}

// IsStale returns true if the state was last updated longer than maxAge ago.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if fewer than threshold units remain.
func (s *State) NeedsCriticalBlock(threshold int64) bool {
	return s.Remaining() < threshold
}

// NeedsThrottling returns true if less than WarningRatio of the budget is
// left but requests can still be served.
func (s *State) NeedsThrottling(threshold int64) bool {
	return float64(s.Remaining()) < float64(s.Limit)*WarningRatio && !s.NeedsCriticalBlock(threshold)
}

// TimeUntilReset returns the duration until the budget resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates IsHealthy from the remaining budget.
func (s *State) UpdateHealth() {
	s.IsHealthy = float64(s.Remaining()) >= float64(s.Limit)*HealthyRatio
}

// Cost returns the quota units a GET on the given API path consumes.
// Analytics API reports are billed against a separate budget and cost 0.
func Cost(endpoint string) int64 {
	switch {
	case strings.HasPrefix(endpoint, "/v2/reports"):
		return 0
	case strings.HasSuffix(endpoint, "/search"):
		return 100
	default:
		// channels, playlistItems, videos list calls
		return 1
	}
}
