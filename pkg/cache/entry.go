package cache

import (
	"net/http"
	"time"
)

// Entry is a cached API response.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// ETag of the resource, sent back as If-None-Match on revalidation
	ETag string `json:"etag"`

	// Expires is when the entry stops being fresh. Stale entries with an
	// ETag are kept for revalidation.
	Expires time.Time `json:"expires"`

	// StatusCode of the cached response
	StatusCode int `json:"status_code"`

	// Headers of the cached response
	Headers http.Header `json:"headers"`

	// CachedAt is when the response was stored or last revalidated
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry is no longer fresh.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the remaining freshness, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether a stale entry can be revalidated with a
// conditional request.
func (e *Entry) CanRevalidate() bool {
	return e != nil && e.ETag != ""
}
