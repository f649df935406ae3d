package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/yt-metrics-client/pkg/client"
	"github.com/Sternrassler/yt-metrics-client/pkg/metrics"
	"github.com/Sternrassler/yt-metrics-client/pkg/pipeline"
	"github.com/Sternrassler/yt-metrics-client/pkg/report"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type server struct {
	yt               *client.Client
	redis            *redis.Client
	defaultChannel   string
	monetizationDays int
	timeout          time.Duration
	logger           zerolog.Logger
	now              func() time.Time
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(s.redis))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/channel", s.channelHandler)
	mux.HandleFunc("/api/report", s.reportHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func (s *server) channelHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	info, err := s.yt.Channel(ctx, s.channelID(r))
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// reportParams are the query parameters of /api/report.
type reportParams struct {
	channelID    string
	limit        int
	minViews     int64
	sort         func([]report.EnrichedRecord)
	top          int
	monetization bool
}

type reportResponse struct {
	Channel *client.ChannelInfo     `json:"channel"`
	Summary report.Summary          `json:"summary"`
	Records []report.EnrichedRecord `json:"records"`
	Listed  int                     `json:"listed"`
	Dropped int                     `json:"dropped"`
	Today   string                  `json:"today"`
}

func (s *server) reportHandler(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseReportParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	today := s.now()

	var monetization *client.DateRange
	if params.monetization {
		monetization = &client.DateRange{
			Start: today.AddDate(0, 0, -s.monetizationDays),
			End:   today,
		}
	}

	src, info, err := client.NewChannelSource(ctx, s.yt, params.channelID, monetization)
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}

	result, err := pipeline.NewRunner(s.logger).Run(ctx, src, pipeline.Options{
		Limit: params.limit,
		Today: today,
	})
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}

	records := report.FilterMinViews(result.Records, params.minViews)
	if params.sort != nil {
		params.sort(records)
	}
	records = report.Top(records, params.top)

	writeJSON(w, http.StatusOK, reportResponse{
		Channel: info,
		Summary: report.Summarize(records),
		Records: records,
		Listed:  result.Listed,
		Dropped: result.Dropped,
		Today:   result.Today.Format(time.DateOnly),
	})
}

func (s *server) parseReportParams(r *http.Request) (reportParams, error) {
	q := r.URL.Query()
	p := reportParams{channelID: s.channelID(r)}

	var err error
	if p.limit, err = nonNegativeInt(q.Get("limit")); err != nil {
		return p, fmt.Errorf("limit: %w", err)
	}
	if p.top, err = nonNegativeInt(q.Get("top")); err != nil {
		return p, fmt.Errorf("top: %w", err)
	}
	if v := q.Get("min_views"); v != "" {
		p.minViews, err = strconv.ParseInt(v, 10, 64)
		if err != nil || p.minViews < 0 {
			return p, fmt.Errorf("min_views: must be a non-negative integer")
		}
	}
	if name := q.Get("sort"); name != "" {
		if p.sort = report.SortFunc(name); p.sort == nil {
			return p, fmt.Errorf("sort: unknown order %q", name)
		}
	}
	if v := q.Get("monetization"); v != "" {
		if p.monetization, err = strconv.ParseBool(v); err != nil {
			return p, fmt.Errorf("monetization: must be a boolean")
		}
	}
	return p, nil
}

func (s *server) channelID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("channel_id")); id != "" {
		return id
	}
	return s.defaultChannel
}

func nonNegativeInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}

// rateLimitRetryAfter is suggested to callers after upstream rate limiting;
// the API does not say how long to back off.
const rateLimitRetryAfter = time.Minute

// upstreamError maps client errors to a status: 404 for unknown channels,
// 503 while the daily quota is spent (Retry-After until the reset), 429
// after upstream rate limiting, 502 otherwise.
func (s *server) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	var retryAfter time.Duration

	var apiErr *client.APIError
	isAPIErr := errors.As(err, &apiErr)

	switch {
	case errors.Is(err, client.ErrChannelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, client.ErrQuotaBlocked), isAPIErr && apiErr.ErrorClass == client.ErrorClassQuota:
		status = http.StatusServiceUnavailable
		if state, qErr := s.yt.Quota(r.Context()); qErr == nil {
			retryAfter = state.TimeUntilReset()
		}
	case isAPIErr && apiErr.ErrorClass == client.ErrorClassRateLimit:
		status = http.StatusTooManyRequests
		retryAfter = rateLimitRetryAfter
	}

	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}

	s.logger.Warn().
		Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Dur("retry_after", retryAfter).
		Msg("Request failed")

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
