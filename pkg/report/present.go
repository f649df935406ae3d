package report

import (
	"sort"
)

// Summary aggregates a set of enriched records.
type Summary struct {
	Videos           int     `json:"videos"`
	TotalViews       int64   `json:"total_views"`
	TotalLikes       int64   `json:"total_likes"`
	TotalComments    int64   `json:"total_comments"`
	TotalRevenue     float64 `json:"total_revenue"`
	TotalImpressions int64   `json:"total_impressions"`
	// RPM is computed over the totals, not averaged per video.
	RPM             float64 `json:"rpm"`
	RPMDefined      bool    `json:"rpm_defined"`
	MeanViewsPerDay float64 `json:"mean_views_per_day"`
}

// FilterMinViews returns the records with at least minViews views.
// The input slice is not modified.
func FilterMinViews(records []EnrichedRecord, minViews int64) []EnrichedRecord {
	out := make([]EnrichedRecord, 0, len(records))
	for _, r := range records {
		if r.ViewCount >= minViews {
			out = append(out, r)
		}
	}
	return out
}

// SortByDaysSincePublish sorts newest first (ascending age). Ties keep
// their relative order.
func SortByDaysSincePublish(records []EnrichedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DaysSincePublish < records[j].DaysSincePublish
	})
}

// SortByViews sorts by view count, highest first.
func SortByViews(records []EnrichedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ViewCount > records[j].ViewCount
	})
}

// SortByViewsPerDay sorts by views per day, highest first.
func SortByViewsPerDay(records []EnrichedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ViewsPerDay > records[j].ViewsPerDay
	})
}

// SortByRPM sorts by RPM, highest first. Records without a defined RPM go
// last.
func SortByRPM(records []EnrichedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].RPMDefined != records[j].RPMDefined {
			return records[i].RPMDefined
		}
		return records[i].RPM > records[j].RPM
	})
}

// Top returns at most n leading records. n <= 0 returns all of them.
func Top(records []EnrichedRecord, n int) []EnrichedRecord {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}

// Summarize totals the records.
func Summarize(records []EnrichedRecord) Summary {
	var s Summary
	var vpd float64
	for _, r := range records {
		s.Videos++
		s.TotalViews += r.ViewCount
		s.TotalLikes += r.LikeCount
		s.TotalComments += r.CommentCount
		s.TotalRevenue += r.Revenue
		s.TotalImpressions += r.Impressions
		vpd += r.ViewsPerDay
	}
	if s.Videos > 0 {
		s.MeanViewsPerDay = vpd / float64(s.Videos)
	}
	s.RPM, s.RPMDefined = RPM(s.TotalRevenue, s.TotalImpressions)
	return s
}

// SortFunc returns the sorter registered under name, or nil.
// Known names: "age" (alias "days_since_publish"), "views",
// "views_per_day", "rpm".
func SortFunc(name string) func([]EnrichedRecord) {
	switch name {
	case "age", "days_since_publish":
		return SortByDaysSincePublish
	case "views":
		return SortByViews
	case "views_per_day":
		return SortByViewsPerDay
	case "rpm":
		return SortByRPM
	default:
		return nil
	}
}
