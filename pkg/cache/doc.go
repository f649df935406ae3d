// Package cache stores YouTube API responses in Redis.
//
// Fresh entries are served without touching the API, which saves quota
// units. Once an entry is stale it is revalidated with If-None-Match; a
// 304 Not Modified marks it fresh again via Manager.Refresh.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint: "/youtube/v3/videos",
//		Query:    url.Values{"part": {"statistics"}, "id": {"a,b"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// fetch from the API
//	case err == nil && !entry.IsExpired():
//		// serve entry.Data
//	case err == nil && entry.CanRevalidate():
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Storing Responses
//
//	entry, err := cache.ResponseToEntry(resp, cache.DefaultTTL)
//	if err != nil {
//		return err
//	}
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Keys
//
// Key.String is deterministic over parameter order and never contains
// credential parameters (key, access_token). Responses that depend on the
// caller (mine=true) set Key.Principal.
//
// # Metrics
//
//   - yt_cache_hits_total{freshness} - Cache hits (fresh, stale)
//   - yt_cache_misses_total - Cache misses
//   - yt_cache_stored_bytes_total - Bytes written
//   - yt_conditional_requests_total - Revalidations sent
//   - yt_304_responses_total - Revalidations answered 304
//   - yt_cache_errors_total{operation} - Redis errors
package cache
