package report

import (
	"time"
)

// Join inner-joins listing with stats by video id and computes derived
// metrics relative to today. Listing entries without stats are dropped.
// The output keeps the relative order of listing.
func Join(listing []ListingRecord, stats map[string]StatsRecord, today time.Time) []EnrichedRecord {
	out := make([]EnrichedRecord, 0, len(listing))
	for _, l := range listing {
		s, ok := stats[l.ID]
		if !ok {
			continue
		}
		out = append(out, enrich(l, s, today))
	}
	return out
}

func enrich(l ListingRecord, s StatsRecord, today time.Time) EnrichedRecord {
	var revenue float64
	if s.Revenue != nil {
		revenue = *s.Revenue
	}
	var impressions int64
	if s.Impressions != nil {
		impressions = *s.Impressions
	}

	days := DaysSincePublish(l.PublishedAt, today)
	rpm, defined := RPM(revenue, impressions)

	return EnrichedRecord{
		ID:               l.ID,
		Title:            l.Title,
		PublishedAt:      l.PublishedAt,
		ViewCount:        s.ViewCount,
		LikeCount:        s.LikeCount,
		CommentCount:     s.CommentCount,
		Revenue:          revenue,
		Impressions:      impressions,
		DaysSincePublish: days,
		ViewsPerDay:      ViewsPerDay(s.ViewCount, days),
		RPM:              rpm,
		RPMDefined:       defined,
	}
}

// DaysSincePublish counts calendar days between the publish date and
// today, both taken in today's location. The result is at least 1 so a
// video published today counts as one day old.
func DaysSincePublish(publishedAt, today time.Time) int {
	loc := today.Location()
	p := publishedAt.In(loc)
	pd := time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	days := int(td.Sub(pd) / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}

// ViewsPerDay divides views by the age in days; days below 1 count as 1.
func ViewsPerDay(views int64, days int) float64 {
	if days < 1 {
		days = 1
	}
	return float64(views) / float64(days)
}

// RPM returns revenue per thousand impressions. Without positive
// impressions RPM is reported as 0 and the second result is false, so
// "no data" stays distinguishable from "no revenue".
func RPM(revenue float64, impressions int64) (float64, bool) {
	if impressions <= 0 {
		return 0, false
	}
	return revenue / (float64(impressions) / 1000), true
}
