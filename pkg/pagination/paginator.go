package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCursorLoop is returned when a page hands back the cursor it was
// requested with, which would otherwise never terminate.
var ErrCursorLoop = errors.New("page returned its own cursor")

// Page is one page of a cursor-based listing.
type Page[T any] struct {
	Items []T
	// NextCursor is empty on the last page.
	NextCursor string
}

// PageFunc fetches the page starting at cursor. The first page is
// requested with an empty cursor.
type PageFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Paginate walks a cursor-based listing from the start and returns the
// items of all pages in page order.
//
// When limit > 0 it stops as soon as limit items have been collected and
// returns exactly min(limit, available) items. limit <= 0 fetches every
// page. The first fetch error aborts the walk and no items are returned.
func Paginate[T any](ctx context.Context, fetch PageFunc[T], limit int) ([]T, error) {
	start := time.Now()

	var items []T
	cursor := ""
	pages := 0

	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			log.Debug().
				Err(err).
				Int("page", pages+1).
				Str("cursor", cursor).
				Msg("Page fetch failed")
			return nil, fmt.Errorf("fetch page %d: %w", pages+1, err)
		}
		pages++
		items = append(items, page.Items...)

		log.Debug().
			Int("page", pages).
			Int("page_items", len(page.Items)).
			Int("total_items", len(items)).
			Bool("has_next", page.NextCursor != "").
			Msg("Fetched page")

		if limit > 0 && len(items) >= limit {
			items = items[:limit]
			break
		}
		if page.NextCursor == "" {
			break
		}
		if page.NextCursor == cursor {
			return nil, fmt.Errorf("fetch page %d: %w (%q)", pages, ErrCursorLoop, cursor)
		}
		cursor = page.NextCursor
	}

	log.Debug().
		Int("pages", pages).
		Int("items", len(items)).
		Int("limit", limit).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return items, nil
}
