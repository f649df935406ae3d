package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBatchSize is used when Config.BatchSize is not set.
	DefaultBatchSize = 50

	// MaxBatchSize is the most ids a YouTube list call accepts in its id
	// parameter. BatchFetcher does not enforce it; callers whose lookup
	// talks to the API keep their batch size at or below it.
	MaxBatchSize = 50
)

// Config holds batch fetcher configuration
type Config struct {
	// BatchSize is the number of ids per lookup call
	BatchSize int
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
	}
}

// LookupFunc fetches the records for one batch of ids.
type LookupFunc[T any] func(ctx context.Context, ids []string) ([]T, error)

// Batch is the half-open position range [Start, End) of one lookup.
type Batch struct {
	Index int
	Start int
	End   int
}

// BatchError reports which batch failed.
type BatchError struct {
	Index int
	Start int
	End   int
	Err   error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("lookup batch %d [%d, %d): %v", e.Index, e.Start, e.End, e.Err)
}

// Unwrap returns the lookup error.
func (e *BatchError) Unwrap() error {
	return e.Err
}

// Batches splits n positions into contiguous batches of at most size.
func Batches(n, size int) []Batch {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([]Batch, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		batches = append(batches, Batch{Index: len(batches), Start: start, End: end})
	}
	return batches
}

// BatchFetcher looks up records for a list of ids in fixed-size batches
// and merges them into a map keyed by record id.
type BatchFetcher[T any] struct {
	lookup LookupFunc[T]
	key    func(T) string
	config Config
	logger zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher. key extracts the id a
// returned record is stored under.
func NewBatchFetcher[T any](lookup LookupFunc[T], key func(T) string, config Config) *BatchFetcher[T] {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	return &BatchFetcher[T]{
		lookup: lookup,
		key:    key,
		config: config,
		logger: log.With().Str("component", "batch-fetcher").Logger(),
	}
}

// BatchSize returns the effective batch size.
func (bf *BatchFetcher[T]) BatchSize() int {
	return bf.config.BatchSize
}

// Fetch issues one lookup per batch of ids, sequentially and in input
// order. Duplicate ids are not removed. Records are merged by key with
// the last write winning, including records for ids that were not asked
// for. Any failing batch aborts the fetch with a *BatchError and no map.
func (bf *BatchFetcher[T]) Fetch(ctx context.Context, ids []string) (map[string]T, error) {
	start := time.Now()
	batches := Batches(len(ids), bf.config.BatchSize)
	results := make(map[string]T, len(ids))

	for _, b := range batches {
		records, err := bf.lookup(ctx, ids[b.Start:b.End])
		if err != nil {
			bf.logger.Warn().
				Err(err).
				Int("batch", b.Index).
				Int("batch_start", b.Start).
				Int("batch_end", b.End).
				Msg("Batch lookup failed")
			return nil, &BatchError{Index: b.Index, Start: b.Start, End: b.End, Err: err}
		}

		for _, r := range records {
			results[bf.key(r)] = r
		}

		bf.logger.Debug().
			Int("batch", b.Index).
			Int("batch_start", b.Start).
			Int("batch_end", b.End).
			Int("records", len(records)).
			Msg("Batch lookup complete")
	}

	bf.logger.Debug().
		Int("ids", len(ids)).
		Int("batches", len(batches)).
		Int("records", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Enrichment complete")

	return results, nil
}

// Enrich is a one-shot BatchFetcher with the given batch size.
func Enrich[T any](ctx context.Context, ids []string, lookup LookupFunc[T], key func(T) string, batchSize int) (map[string]T, error) {
	return NewBatchFetcher(lookup, key, Config{BatchSize: batchSize}).Fetch(ctx, ids)
}
