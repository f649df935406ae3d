// Package pipeline runs one metrics aggregation: list a channel's uploads,
// look up their statistics in batches and join both into enriched records.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/yt-metrics-client/pkg/pagination"
	"github.com/Sternrassler/yt-metrics-client/pkg/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pipeline runs.
var (
	pipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yt_pipeline_runs_total",
		Help: "Total pipeline runs by outcome",
	}, []string{"status"})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "yt_pipeline_duration_seconds",
		Help:    "Pipeline run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	pipelineRecords = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yt_pipeline_records",
		Help:    "Records per pipeline run by stage",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"stage"})
)

// Source supplies the two capabilities a run needs. Implementations own
// authentication, transport, retries and timeouts.
type Source interface {
	// ListingPage returns one page of the uploads listing.
	ListingPage(ctx context.Context, cursor string) (pagination.Page[report.ListingRecord], error)

	// Stats looks up statistics for at most pagination.MaxBatchSize ids.
	Stats(ctx context.Context, ids []string) ([]report.StatsRecord, error)
}

// Options controls a single run.
type Options struct {
	// Limit caps the number of listed videos; <= 0 lists all.
	Limit int

	// BatchSize is the number of ids per stats lookup (default 50).
	// Values above pagination.MaxBatchSize are lowered to it.
	BatchSize int

	// Today is the reference date for derived metrics. Zero means the
	// time the run starts.
	Today time.Time
}

// Result is the outcome of one run.
type Result struct {
	Records  []report.EnrichedRecord `json:"records"`
	Listed   int                     `json:"listed"`
	Enriched int                     `json:"enriched"`
	Dropped  int                     `json:"dropped"`
	Today    time.Time               `json:"today"`
	Duration time.Duration           `json:"duration"`
}

// Runner executes pipeline runs.
type Runner struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewRunner creates a Runner logging through logger.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one pipeline run against src. Runs share no state; the
// first error from either stage aborts the run.
func (r *Runner) Run(ctx context.Context, src Source, opts Options) (*Result, error) {
	start := time.Now()

	today := opts.Today
	if today.IsZero() {
		today = r.now()
	}

	listing, err := pagination.Paginate(ctx, src.ListingPage, opts.Limit)
	if err != nil {
		return nil, r.fail(start, "list", fmt.Errorf("list uploads: %w", err))
	}

	batchSize := opts.BatchSize
	if batchSize > pagination.MaxBatchSize {
		r.logger.Warn().
			Int("batch_size", batchSize).
			Int("max", pagination.MaxBatchSize).
			Msg("Batch size above API limit, lowering")
		batchSize = pagination.MaxBatchSize
	}

	stats, err := pagination.NewBatchFetcher(src.Stats, report.StatsKey, pagination.Config{
		BatchSize: batchSize,
	}).Fetch(ctx, report.IDs(listing))
	if err != nil {
		return nil, r.fail(start, "enrich", fmt.Errorf("enrich stats: %w", err))
	}

	records := report.Join(listing, stats, today)

	res := &Result{
		Records:  records,
		Listed:   len(listing),
		Enriched: len(records),
		Dropped:  len(listing) - len(records),
		Today:    today,
		Duration: time.Since(start),
	}

	pipelineRunsTotal.WithLabelValues("success").Inc()
	pipelineDuration.Observe(res.Duration.Seconds())
	pipelineRecords.WithLabelValues("listed").Observe(float64(res.Listed))
	pipelineRecords.WithLabelValues("enriched").Observe(float64(res.Enriched))

	r.logger.Info().
		Int("listed", res.Listed).
		Int("enriched", res.Enriched).
		Int("dropped", res.Dropped).
		Int("limit", opts.Limit).
		Dur("duration", res.Duration).
		Msg("Pipeline run complete")

	return res, nil
}

func (r *Runner) fail(start time.Time, stage string, err error) error {
	pipelineRunsTotal.WithLabelValues("error").Inc()
	pipelineDuration.Observe(time.Since(start).Seconds())
	r.logger.Error().
		Err(err).
		Str("stage", stage).
		Dur("duration", time.Since(start)).
		Msg("Pipeline run failed")
	return err
}

// Run executes a single run with a Runner that logs to the global logger.
func Run(ctx context.Context, src Source, opts Options) (*Result, error) {
	return NewRunner(log.With().Str("component", "pipeline").Logger()).Run(ctx, src, opts)
}
