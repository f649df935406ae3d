// Package pagination walks cursor-based listings and looks up records for
// id lists in fixed-size batches.
//
// The YouTube Data API pages list endpoints with nextPageToken and caps
// the id parameter of bulk lookups at 50 ids. Both helpers are generic
// over the record type and take the transport as a function, so they hold
// no connection state of their own.
//
// Example usage:
//
//	listing, err := pagination.Paginate(ctx, source.ListingPage, 200)
//	if err != nil {
//		return err
//	}
//	stats, err := pagination.Enrich(ctx, report.IDs(listing), source.Stats,
//		report.StatsKey, pagination.DefaultBatchSize)
//
// Both calls are sequential and fail fast:
//   - Paginate returns no items if any page fails
//   - Enrich returns no map if any batch fails; the error is a *BatchError
//     carrying the batch index and its [start, end) bounds
package pagination
