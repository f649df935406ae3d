package quota

import (
	"testing"
	"time"
)

func TestState_Remaining(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected int64
	}{
		{"fresh day", State{Limit: 10000}, 10000},
		{"partially used", State{Used: 2500, Limit: 10000}, 7500},
		{"overspent", State{Used: 10100, Limit: 10000}, 0},
		{"exhausted flag", State{Used: 10, Limit: 10000, Exhausted: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Remaining(); got != tt.expected {
				t.Errorf("Remaining() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *State
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &State{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &State{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "never updated",
			state:    &State{},
			maxAge:   time.Hour,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.state.IsStale(tt.maxAge); result != tt.expected {
				t.Errorf("IsStale() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestState_Thresholds(t *testing.T) {
	const threshold = 50

	tests := []struct {
		name           string
		used           int64
		expectBlock    bool
		expectThrottle bool
		expectHealthy  bool
	}{
		{"healthy", 1000, false, false, true},
		{"at healthy boundary", 7500, false, false, true},
		{"below healthy above warning", 8000, false, false, false},
		{"at warning boundary", 9000, false, false, false},
		{"warning", 9001, false, true, false},
		{"at critical threshold", 9950, false, true, false},
		{"critical", 9951, true, false, false},
		{"spent", 10000, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{Used: tt.used, Limit: 10000}
			state.UpdateHealth()

			if got := state.NeedsCriticalBlock(threshold); got != tt.expectBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v (used=%d)", got, tt.expectBlock, tt.used)
			}
			if got := state.NeedsThrottling(threshold); got != tt.expectThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v (used=%d)", got, tt.expectThrottle, tt.used)
			}
			if state.IsHealthy != tt.expectHealthy {
				t.Errorf("IsHealthy = %v, want %v (used=%d)", state.IsHealthy, tt.expectHealthy, tt.used)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	future := &State{ResetAt: time.Now().Add(5 * time.Minute)}
	if d := future.TimeUntilReset(); d < 4*time.Minute || d > 5*time.Minute {
		t.Errorf("TimeUntilReset() = %v, want about 5m", d)
	}

	past := &State{ResetAt: time.Now().Add(-time.Minute)}
	if d := past.TimeUntilReset(); d != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", d)
	}
}

func TestDay(t *testing.T) {
	tests := []struct {
		name      string
		at        time.Time
		wantDay   string
		wantReset time.Time
	}{
		{
			name:      "afternoon UTC is morning Pacific",
			at:        time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC),
			wantDay:   "2025-01-10",
			wantReset: time.Date(2025, 1, 11, 8, 0, 0, 0, time.UTC),
		},
		{
			name:      "early UTC is previous Pacific day",
			at:        time.Date(2025, 1, 10, 5, 0, 0, 0, time.UTC),
			wantDay:   "2025-01-09",
			wantReset: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name:      "summer time",
			at:        time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC),
			wantDay:   "2025-07-04",
			wantReset: time.Date(2025, 7, 5, 7, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, reset := Day(tt.at)
			if day != tt.wantDay {
				t.Errorf("Day() day = %s, want %s", day, tt.wantDay)
			}
			if !reset.Equal(tt.wantReset) {
				t.Errorf("Day() reset = %v, want %v", reset.UTC(), tt.wantReset)
			}
		})
	}
}

func TestCost(t *testing.T) {
	tests := []struct {
		endpoint string
		expected int64
	}{
		{"/youtube/v3/channels", 1},
		{"/youtube/v3/playlistItems", 1},
		{"/youtube/v3/videos", 1},
		{"/youtube/v3/search", 100},
		{"/v2/reports", 0},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			if got := Cost(tt.endpoint); got != tt.expected {
				t.Errorf("Cost(%q) = %d, want %d", tt.endpoint, got, tt.expected)
			}
		})
	}
}
