package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	ytQuotaUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yt_quota_used_units",
		Help: "Data API quota units used in the current quota day",
	})

	ytQuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yt_quota_remaining_units",
		Help: "Data API quota units remaining in the current quota day",
	})

	ytQuotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt_quota_blocks_total",
		Help: "Total number of requests blocked because the quota is nearly spent",
	})

	ytQuotaWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt_quota_warnings_total",
		Help: "Total number of requests served while below the quota warning threshold",
	})
)

// Hash fields of the per-day usage key.
const (
	fieldUsed       = "used"
	fieldLastUpdate = "last_update"
	fieldExhausted  = "exhausted"
)

// Tracker records quota usage in Redis and gates requests.
type Tracker struct {
	redis     *redis.Client
	limit     int64
	threshold int64
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTracker creates a new quota tracker. Requests are blocked once fewer
// than threshold units remain of dailyLimit.
func NewTracker(redisClient *redis.Client, dailyLimit, threshold int64, logger zerolog.Logger) *Tracker {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	return &Tracker{
		redis:     redisClient,
		limit:     dailyLimit,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// State retrieves today's quota state from Redis.
// A day without recorded usage is returned as a fresh, healthy state.
func (t *Tracker) State(ctx context.Context) (*State, error) {
	day, resetAt := Day(t.now())

	fields, err := t.redis.HGetAll(ctx, RedisKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}

	state := &State{
		Day:     day,
		Limit:   t.limit,
		ResetAt: resetAt,
	}

	if v, ok := fields[fieldUsed]; ok {
		used, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse quota used: %w", err)
		}
		state.Used = used
	}
	if v, ok := fields[fieldLastUpdate]; ok {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse quota last update: %w", err)
		}
		state.LastUpdate = time.Unix(ts, 0)
	}
	state.Exhausted = fields[fieldExhausted] == "1"
	state.UpdateHealth()

	return state, nil
}

// Consume adds units to today's usage and returns the updated state.
func (t *Tracker) Consume(ctx context.Context, units int64) (*State, error) {
	if units <= 0 {
		return t.State(ctx)
	}

	now := t.now()
	day, resetAt := Day(now)
	key := RedisKey(day)

	pipe := t.redis.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, fieldUsed, units)
	pipe.HSet(ctx, key, fieldLastUpdate, now.Unix())
	// Keep the hash a little past reset so late readers still see the day.
	pipe.ExpireAt(ctx, key, resetAt.Add(time.Hour))
	exhausted := pipe.HGet(ctx, key, fieldExhausted)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("record quota usage: %w", err)
	}

	state := &State{
		Day:        day,
		Used:       incr.Val(),
		Limit:      t.limit,
		ResetAt:    resetAt,
		LastUpdate: now,
		Exhausted:  exhausted.Val() == "1",
	}
	state.UpdateHealth()
	t.observe(state)

	t.logger.Debug().
		Int64("units", units).
		Int64("quota_used", state.Used).
		Int64("quota_remaining", state.Remaining()).
		Msg("Quota usage recorded")

	return state, nil
}

// MarkExhausted records that the API rejected a request with quotaExceeded.
// All requests are blocked until the next reset.
func (t *Tracker) MarkExhausted(ctx context.Context) error {
	now := t.now()
	day, resetAt := Day(now)
	key := RedisKey(day)

	pipe := t.redis.TxPipeline()
	pipe.HSet(ctx, key, fieldExhausted, "1", fieldLastUpdate, now.Unix())
	pipe.ExpireAt(ctx, key, resetAt.Add(time.Hour))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark quota exhausted: %w", err)
	}

	ytQuotaRemaining.Set(0)
	t.logger.Error().
		Str("day", day).
		Time("reset_at", resetAt).
		Msg("Quota exhausted - requests blocked until reset")

	return nil
}

// ShouldAllowRequest checks whether a request costing cost units may be sent.
// Returns false when the remaining budget is below the critical threshold
// or would not cover the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context, cost int64) (bool, error) {
	state, err := t.State(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}
	t.observe(state)

	if state.NeedsCriticalBlock(t.threshold) || state.Remaining() < cost {
		t.logger.Error().
			Int64("quota_remaining", state.Remaining()).
			Int64("cost", cost).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Quota critical - blocking request")

		ytQuotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling(t.threshold) {
		t.logger.Warn().
			Int64("quota_remaining", state.Remaining()).
			Msg("Quota below warning threshold")

		ytQuotaWarningsTotal.Inc()
	}

	return true, nil
}

func (t *Tracker) observe(state *State) {
	ytQuotaUsed.Set(float64(state.Used))
	ytQuotaRemaining.Set(float64(state.Remaining()))
}
