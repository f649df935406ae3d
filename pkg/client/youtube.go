package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/yt-metrics-client/pkg/pagination"
	"github.com/Sternrassler/yt-metrics-client/pkg/report"
)

// API paths.
const (
	PathChannels      = "/youtube/v3/channels"
	PathPlaylistItems = "/youtube/v3/playlistItems"
	PathVideos        = "/youtube/v3/videos"
	PathReports       = "/v2/reports"
)

// maxResults is the largest page and id list the Data API accepts.
const maxResults = 50

// ErrChannelNotFound is returned when a channel lookup yields no items.
var ErrChannelNotFound = errors.New("channel not found")

// ChannelInfo describes a channel and its uploads playlist.
type ChannelInfo struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	UploadsPlaylistID string `json:"uploads_playlist_id"`
	SubscriberCount   int64  `json:"subscriber_count"`
	ViewCount         int64  `json:"view_count"`
	VideoCount        int64  `json:"video_count"`
}

// getJSON performs a GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, baseURL, path string, query url.Values, out any) error {
	resp, err := c.Get(ctx, baseURL, path, query)
	if err != nil {
		return err
	}

	body, err := readBody(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Channel looks up a channel by id. An empty id resolves the channel of
// the authorized account (mine=true).
func (c *Client) Channel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	query := url.Values{"part": {"snippet,statistics,contentDetails"}}
	if channelID == "" {
		query.Set("mine", "true")
	} else {
		query.Set("id", channelID)
	}

	var resp channelListResponse
	if err := c.getJSON(ctx, c.config.BaseURL, PathChannels, query, &resp); err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, ErrChannelNotFound
	}

	item := resp.Items[0]
	return &ChannelInfo{
		ID:                item.ID,
		Title:             item.Snippet.Title,
		UploadsPlaylistID: item.ContentDetails.RelatedPlaylists.Uploads,
		SubscriberCount:   int64(item.Statistics.SubscriberCount),
		ViewCount:         int64(item.Statistics.ViewCount),
		VideoCount:        int64(item.Statistics.VideoCount),
	}, nil
}

// UploadsPage fetches one page of a playlist as listing records.
// Entries without a video id (private or deleted videos) or without a
// usable publish date are skipped.
func (c *Client) UploadsPage(ctx context.Context, playlistID, cursor string) (pagination.Page[report.ListingRecord], error) {
	query := url.Values{
		"part":       {"snippet,contentDetails"},
		"playlistId": {playlistID},
		"maxResults": {strconv.Itoa(maxResults)},
	}
	if cursor != "" {
		query.Set("pageToken", cursor)
	}

	var resp playlistItemsResponse
	if err := c.getJSON(ctx, c.config.BaseURL, PathPlaylistItems, query, &resp); err != nil {
		return pagination.Page[report.ListingRecord]{}, fmt.Errorf("list playlist items: %w", err)
	}

	page := pagination.Page[report.ListingRecord]{
		Items:      make([]report.ListingRecord, 0, len(resp.Items)),
		NextCursor: resp.NextPageToken,
	}
	for _, item := range resp.Items {
		id := item.ContentDetails.VideoID
		if id == "" {
			id = item.Snippet.ResourceID.VideoID
		}
		if id == "" {
			continue
		}

		published, ok := parseTimestamp(item.ContentDetails.VideoPublishedAt)
		if !ok {
			published, ok = parseTimestamp(item.Snippet.PublishedAt)
		}
		if !ok {
			c.logger.Warn().Str("video_id", id).Msg("Skipping playlist item without publish date")
			continue
		}

		page.Items = append(page.Items, report.ListingRecord{
			ID:          id,
			Title:       item.Snippet.Title,
			PublishedAt: published,
		})
	}

	return page, nil
}

// VideoStats fetches statistics for up to 50 videos. Unknown ids are
// absent from the result.
func (c *Client) VideoStats(ctx context.Context, ids []string) ([]report.StatsRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxResults {
		return nil, fmt.Errorf("video stats: %d ids exceed the limit of %d", len(ids), maxResults)
	}

	query := url.Values{
		"part":       {"statistics"},
		"id":         {strings.Join(ids, ",")},
		"maxResults": {strconv.Itoa(maxResults)},
	}

	var resp videoListResponse
	if err := c.getJSON(ctx, c.config.BaseURL, PathVideos, query, &resp); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	stats := make([]report.StatsRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID == "" {
			continue
		}
		stats = append(stats, report.StatsRecord{
			ID:           item.ID,
			ViewCount:    int64(item.Statistics.ViewCount),
			LikeCount:    int64(item.Statistics.LikeCount),
			CommentCount: int64(item.Statistics.CommentCount),
		})
	}
	return stats, nil
}

// ReportQuery is a YouTube Analytics reports.query request.
type ReportQuery struct {
	// IDs selects the channel, e.g. "channel==MINE"
	IDs        string
	StartDate  time.Time
	EndDate    time.Time
	Metrics    []string
	Dimensions []string
	Filters    string
	Sort       string
	MaxResults int
}

func (q ReportQuery) values() url.Values {
	ids := q.IDs
	if ids == "" {
		ids = "channel==MINE"
	}
	v := url.Values{
		"ids":       {ids},
		"startDate": {q.StartDate.Format(time.DateOnly)},
		"endDate":   {q.EndDate.Format(time.DateOnly)},
		"metrics":   {strings.Join(q.Metrics, ",")},
	}
	if len(q.Dimensions) > 0 {
		v.Set("dimensions", strings.Join(q.Dimensions, ","))
	}
	if q.Filters != "" {
		v.Set("filters", q.Filters)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.MaxResults > 0 {
		v.Set("maxResults", strconv.Itoa(q.MaxResults))
	}
	return v
}

// ReportTable is a decoded Analytics report. Cells hold string or float64.
type ReportTable struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Column returns the index of a column, or -1.
func (t *ReportTable) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Float returns a numeric cell, 0 if absent or not a number.
func (t *ReportTable) Float(row int, column string) float64 {
	col := t.Column(column)
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return 0
	}
	f, _ := t.Rows[row][col].(float64)
	return f
}

// Text returns a text cell, "" if absent or not a string.
func (t *ReportTable) Text(row int, column string) string {
	col := t.Column(column)
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	s, _ := t.Rows[row][col].(string)
	return s
}

// Report runs an Analytics API report query.
func (c *Client) Report(ctx context.Context, q ReportQuery) (*ReportTable, error) {
	if len(q.Metrics) == 0 {
		return nil, fmt.Errorf("report: at least one metric is required")
	}
	if q.EndDate.Before(q.StartDate) {
		return nil, fmt.Errorf("report: end date %s before start date %s",
			q.EndDate.Format(time.DateOnly), q.StartDate.Format(time.DateOnly))
	}

	var resp reportResponse
	if err := c.getJSON(ctx, c.config.AnalyticsBaseURL, PathReports, q.values(), &resp); err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	table := &ReportTable{
		Columns: make([]string, len(resp.ColumnHeaders)),
		Rows:    make([][]any, 0, len(resp.Rows)),
	}
	for i, h := range resp.ColumnHeaders {
		table.Columns[i] = h.Name
	}
	for _, raw := range resp.Rows {
		row := make([]any, len(raw))
		for i, cell := range raw {
			var v any
			if err := json.Unmarshal(cell, &v); err != nil {
				return nil, fmt.Errorf("decode report cell: %w", err)
			}
			row[i] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Monetization is the revenue of one video over a date range.
type Monetization struct {
	Revenue     float64
	Impressions int64
}

// Analytics metrics used for monetization.
const (
	MetricEstimatedRevenue = "estimatedRevenue"
	MetricAdImpressions    = "adImpressions"
)

// VideoMonetization fetches estimated revenue and ad impressions per video.
// Videos without report rows are absent from the result.
func (c *Client) VideoMonetization(ctx context.Context, ids []string, start, end time.Time) (map[string]Monetization, error) {
	if len(ids) == 0 {
		return map[string]Monetization{}, nil
	}

	table, err := c.Report(ctx, ReportQuery{
		StartDate:  start,
		EndDate:    end,
		Metrics:    []string{MetricEstimatedRevenue, MetricAdImpressions},
		Dimensions: []string{"video"},
		Filters:    "video==" + strings.Join(ids, ","),
		MaxResults: len(ids),
	})
	if err != nil {
		return nil, err
	}

	result := make(map[string]Monetization, len(table.Rows))
	for i := range table.Rows {
		id := table.Text(i, "video")
		if id == "" {
			continue
		}
		result[id] = Monetization{
			Revenue:     table.Float(i, MetricEstimatedRevenue),
			Impressions: int64(table.Float(i, MetricAdImpressions)),
		}
	}
	return result, nil
}
