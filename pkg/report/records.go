// Package report joins uploads listings with video statistics and computes
// the derived metrics shown on channel dashboards.
package report

import "time"

// ListingRecord is one video discovered while walking a channel's uploads.
type ListingRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// StatsRecord holds the statistics looked up for one video.
// Revenue and Impressions are nil when no monetization data was requested
// or the analytics report had no row for the video.
type StatsRecord struct {
	ID           string   `json:"id"`
	ViewCount    int64    `json:"view_count"`
	LikeCount    int64    `json:"like_count"`
	CommentCount int64    `json:"comment_count"`
	Revenue      *float64 `json:"revenue,omitempty"`
	Impressions  *int64   `json:"impressions,omitempty"`
}

// EnrichedRecord is a ListingRecord joined with its StatsRecord plus
// derived metrics.
type EnrichedRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	PublishedAt  time.Time `json:"published_at"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	Revenue      float64   `json:"revenue"`
	Impressions  int64     `json:"impressions"`

	// DaysSincePublish is never below 1.
	DaysSincePublish int     `json:"days_since_publish"`
	ViewsPerDay      float64 `json:"views_per_day"`
	RPM              float64 `json:"rpm"`

	// RPMDefined is false when RPM was forced to 0 because there were no
	// impressions to divide by.
	RPMDefined bool `json:"rpm_defined"`
}

// StatsKey returns the join key of a StatsRecord.
func StatsKey(s StatsRecord) string {
	return s.ID
}

// ListingKey returns the join key of a ListingRecord.
func ListingKey(l ListingRecord) string {
	return l.ID
}

// IDs returns the ids of the listing in order.
func IDs(listing []ListingRecord) []string {
	ids := make([]string, len(listing))
	for i, l := range listing {
		ids[i] = l.ID
	}
	return ids
}
