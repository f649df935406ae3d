package client

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/yt-metrics-client/pkg/pagination"
	"github.com/Sternrassler/yt-metrics-client/pkg/report"
)

// DateRange is an inclusive range of report dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ChannelSource lists a channel's uploads and looks up their statistics.
// It satisfies pipeline.Source.
type ChannelSource struct {
	Client     *Client
	PlaylistID string

	// Monetization adds revenue and impressions from the Analytics API
	// for this range. Nil leaves both undefined.
	Monetization *DateRange
}

// NewChannelSource resolves the uploads playlist of a channel ("" for the
// authorized account's channel).
func NewChannelSource(ctx context.Context, c *Client, channelID string, monetization *DateRange) (*ChannelSource, *ChannelInfo, error) {
	info, err := c.Channel(ctx, channelID)
	if err != nil {
		return nil, nil, err
	}
	if info.UploadsPlaylistID == "" {
		return nil, nil, fmt.Errorf("channel %s has no uploads playlist", info.ID)
	}

	return &ChannelSource{
		Client:       c,
		PlaylistID:   info.UploadsPlaylistID,
		Monetization: monetization,
	}, info, nil
}

// ListingPage returns one page of uploads.
func (s *ChannelSource) ListingPage(ctx context.Context, cursor string) (pagination.Page[report.ListingRecord], error) {
	return s.Client.UploadsPage(ctx, s.PlaylistID, cursor)
}

// Stats returns statistics for up to 50 videos, merged with monetization
// when enabled.
func (s *ChannelSource) Stats(ctx context.Context, ids []string) ([]report.StatsRecord, error) {
	stats, err := s.Client.VideoStats(ctx, ids)
	if err != nil {
		return nil, err
	}
	if s.Monetization == nil || len(stats) == 0 {
		return stats, nil
	}

	money, err := s.Client.VideoMonetization(ctx, ids, s.Monetization.Start, s.Monetization.End)
	if err != nil {
		return nil, fmt.Errorf("video monetization: %w", err)
	}

	for i := range stats {
		m, ok := money[stats[i].ID]
		if !ok {
			continue
		}
		revenue, impressions := m.Revenue, m.Impressions
		stats[i].Revenue = &revenue
		stats[i].Impressions = &impressions
	}
	return stats, nil
}
