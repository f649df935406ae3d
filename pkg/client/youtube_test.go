package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/yt-metrics-client/internal/testutil"
)

func TestChannel_ByID(t *testing.T) {
	mock := newTestMock(t, 3)
	c := newTestClient(t, mock)

	info, err := c.Channel(context.Background(), "UCtest")
	if err != nil {
		t.Fatalf("Channel() error = %v", err)
	}

	if info.ID != "UCtest" || info.Title != "Test Channel" {
		t.Errorf("info = %+v", info)
	}
	if info.UploadsPlaylistID != "UUtest" {
		t.Errorf("UploadsPlaylistID = %s, want UUtest", info.UploadsPlaylistID)
	}
	if info.SubscriberCount != 1234 {
		t.Errorf("SubscriberCount = %d, want 1234", info.SubscriberCount)
	}
	if info.VideoCount != 3 {
		t.Errorf("VideoCount = %d, want 3", info.VideoCount)
	}
	if info.ViewCount != 6000 {
		t.Errorf("ViewCount = %d, want 6000", info.ViewCount)
	}
	if q := mock.LastQuery(); q["id"] != "UCtest" || q["mine"] != "" {
		t.Errorf("query = %v", q)
	}
}

func TestChannel_Mine(t *testing.T) {
	mock := newTestMock(t, 3)
	c := newTestClient(t, mock, withToken)

	info, err := c.Channel(context.Background(), "")
	if err != nil {
		t.Fatalf("Channel() error = %v", err)
	}
	if info.ID != "UCtest" {
		t.Errorf("ID = %s, want UCtest", info.ID)
	}
	if mock.LastQuery()["mine"] != "true" {
		t.Errorf("mine param = %q, want true", mock.LastQuery()["mine"])
	}
}

func TestChannel_NotFound(t *testing.T) {
	mock := newTestMock(t, 3)
	c := newTestClient(t, mock)

	_, err := c.Channel(context.Background(), "UCother")
	if !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("error = %v, want ErrChannelNotFound", err)
	}
}

func TestUploadsPage_Paging(t *testing.T) {
	mock := newTestMock(t, 5)
	mock.SetPageSize(2)
	c := newTestClient(t, mock)
	ctx := context.Background()

	var ids []string
	cursor := ""
	pages := 0
	for {
		page, err := c.UploadsPage(ctx, "UUtest", cursor)
		if err != nil {
			t.Fatalf("UploadsPage() error = %v", err)
		}
		pages++
		for _, item := range page.Items {
			ids = append(ids, item.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	want := "vid000,vid001,vid002,vid003,vid004"
	if got := strings.Join(ids, ","); got != want {
		t.Errorf("ids = %s, want %s", got, want)
	}
}

func TestUploadsPage_Normalisation(t *testing.T) {
	mock := newTestMock(t, 0)
	mock.SetHandler(testutil.PathPlaylistItems, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"items": [
				{
					"snippet": {"title": "Full", "publishedAt": "2025-02-01T10:00:00Z", "resourceId": {"videoId": "a"}},
					"contentDetails": {"videoId": "a", "videoPublishedAt": "2025-01-15T08:30:00Z"}
				},
				{
					"snippet": {"title": "Snippet only", "publishedAt": "2025-02-02T10:00:00Z", "resourceId": {"videoId": "b"}},
					"contentDetails": {}
				},
				{
					"snippet": {"title": "Private video", "publishedAt": "2025-02-03T10:00:00Z", "resourceId": {}},
					"contentDetails": {}
				},
				{
					"snippet": {"title": "No date", "resourceId": {"videoId": "d"}},
					"contentDetails": {"videoId": "d"}
				}
			]
		}`)
	})
	c := newTestClient(t, mock)

	page, err := c.UploadsPage(context.Background(), "UUtest", "")
	if err != nil {
		t.Fatalf("UploadsPage() error = %v", err)
	}

	if len(page.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2: %+v", len(page.Items), page.Items)
	}
	if page.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty", page.NextCursor)
	}

	first := page.Items[0]
	if first.ID != "a" || !first.PublishedAt.Equal(time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("first = %+v, want videoPublishedAt to win", first)
	}
	second := page.Items[1]
	if second.ID != "b" || !second.PublishedAt.Equal(time.Date(2025, 2, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("second = %+v, want snippet.publishedAt fallback", second)
	}
}

func TestUploadsPage_PrivateSkipped(t *testing.T) {
	videos := testutil.GenerateVideos(3, testNow)
	videos[1].Private = true
	mock := testutil.NewMockYouTube(testutil.MockChannel{ID: "UCtest"}, videos)
	defer mock.Close()
	c := newTestClient(t, mock)

	page, err := c.UploadsPage(context.Background(), "UUtest", "")
	if err != nil {
		t.Fatalf("UploadsPage() error = %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "vid000" || page.Items[1].ID != "vid002" {
		t.Errorf("Items = %+v", page.Items)
	}
}

func TestUploadsPage_UnknownPlaylist(t *testing.T) {
	mock := newTestMock(t, 3)
	c := newTestClient(t, mock)

	_, err := c.UploadsPage(context.Background(), "UUnope", "")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Reason != "playlistNotFound" {
		t.Errorf("error = %v, want playlistNotFound", err)
	}
}

func TestVideoStats(t *testing.T) {
	mock := newTestMock(t, 3)
	c := newTestClient(t, mock)

	stats, err := c.VideoStats(context.Background(), []string{"vid002", "unknown", "vid000"})
	if err != nil {
		t.Fatalf("VideoStats() error = %v", err)
	}

	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	if stats[0].ID != "vid002" || stats[0].ViewCount != 1000 || stats[0].LikeCount != 50 || stats[0].CommentCount != 10 {
		t.Errorf("stats[0] = %+v", stats[0])
	}
	if stats[0].Revenue != nil || stats[0].Impressions != nil {
		t.Error("revenue and impressions should be undefined")
	}
	if mock.LastQuery()["id"] != "vid002,unknown,vid000" {
		t.Errorf("id param = %q", mock.LastQuery()["id"])
	}
}

func TestVideoStats_Empty(t *testing.T) {
	mock := newTestMock(t, 3)
	c := newTestClient(t, mock)

	stats, err := c.VideoStats(context.Background(), nil)
	if err != nil || stats != nil {
		t.Errorf("VideoStats(nil) = %v, %v; want nil, nil", stats, err)
	}
	if mock.RequestCount("") != 0 {
		t.Errorf("RequestCount = %d, want 0", mock.RequestCount(""))
	}
}

func TestVideoStats_TooManyIDs(t *testing.T) {
	mock := newTestMock(t, 3)
	c := newTestClient(t, mock)

	ids := make([]string, 51)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%d", i)
	}

	if _, err := c.VideoStats(context.Background(), ids); err == nil {
		t.Error("expected error for 51 ids")
	}
	if mock.RequestCount("") != 0 {
		t.Errorf("RequestCount = %d, want 0", mock.RequestCount(""))
	}
}

func TestVideoStats_CountNormalisation(t *testing.T) {
	mock := newTestMock(t, 0)
	mock.SetHandler(testutil.PathVideos, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"items": [
				{"id": "a", "statistics": {"viewCount": "12345", "likeCount": 67, "commentCount": "8"}},
				{"id": "b", "statistics": {"viewCount": "42"}},
				{"id": "c", "statistics": {"viewCount": "lots", "likeCount": null, "commentCount": ""}},
				{"statistics": {"viewCount": "1"}}
			]
		}`)
	})
	c := newTestClient(t, mock)

	stats, err := c.VideoStats(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("VideoStats() error = %v", err)
	}

	if len(stats) != 3 {
		t.Fatalf("len(stats) = %d, want 3", len(stats))
	}

	tests := []struct {
		id                     string
		views, likes, comments int64
	}{
		{"a", 12345, 67, 8},
		{"b", 42, 0, 0},
		{"c", 0, 0, 0},
	}
	for i, tt := range tests {
		s := stats[i]
		if s.ID != tt.id || s.ViewCount != tt.views || s.LikeCount != tt.likes || s.CommentCount != tt.comments {
			t.Errorf("stats[%d] = %+v, want %+v", i, s, tt)
		}
	}
}

func TestReport(t *testing.T) {
	mock := newTestMock(t, 4)
	c := newTestClient(t, mock, withToken)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	table, err := c.Report(context.Background(), ReportQuery{
		StartDate:  start,
		EndDate:    end,
		Metrics:    []string{MetricEstimatedRevenue, MetricAdImpressions},
		Dimensions: []string{"video"},
		Filters:    "video==vid000,vid001,vid003",
	})
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	q := mock.LastQuery()
	if q["ids"] != "channel==MINE" || q["startDate"] != "2025-01-01" || q["endDate"] != "2025-01-31" {
		t.Errorf("query = %v", q)
	}

	if len(table.Columns) != 3 || table.Column("adImpressions") != 2 {
		t.Errorf("Columns = %v", table.Columns)
	}
	// vid000 and vid003 are monetized
	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(table.Rows))
	}
	if table.Text(0, "video") != "vid000" {
		t.Errorf("row 0 video = %q", table.Text(0, "video"))
	}
	if table.Float(0, "adImpressions") != 2000 {
		t.Errorf("row 0 adImpressions = %v, want 2000", table.Float(0, "adImpressions"))
	}
	if table.Float(0, "missing") != 0 || table.Text(5, "video") != "" {
		t.Error("absent cells should read as zero values")
	}

	state, err := c.Quota(context.Background())
	if err != nil {
		t.Fatalf("Quota() error = %v", err)
	}
	if state.Used != 0 {
		t.Errorf("quota Used = %d, analytics reports should not consume Data API quota", state.Used)
	}
}

func TestReport_Validation(t *testing.T) {
	mock := newTestMock(t, 1)
	c := newTestClient(t, mock, withToken)
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	if _, err := c.Report(context.Background(), ReportQuery{StartDate: day, EndDate: day}); err == nil {
		t.Error("expected error without metrics")
	}
	if _, err := c.Report(context.Background(), ReportQuery{
		StartDate: day,
		EndDate:   day.AddDate(0, 0, -1),
		Metrics:   []string{"views"},
	}); err == nil {
		t.Error("expected error for end before start")
	}
	if mock.RequestCount("") != 0 {
		t.Errorf("RequestCount = %d, want 0", mock.RequestCount(""))
	}
}

func TestReport_RequiresOAuth(t *testing.T) {
	mock := newTestMock(t, 1)
	c := newTestClient(t, mock)
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	_, err := c.Report(context.Background(), ReportQuery{StartDate: day, EndDate: day, Metrics: []string{"views"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassAuth {
		t.Errorf("error = %v, want auth APIError", err)
	}
}

func TestVideoMonetization(t *testing.T) {
	mock := newTestMock(t, 4)
	c := newTestClient(t, mock, withToken)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	money, err := c.VideoMonetization(context.Background(), []string{"vid000", "vid001", "vid003"}, start, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("VideoMonetization() error = %v", err)
	}

	if len(money) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(money), money)
	}
	if m := money["vid000"]; m.Revenue != 8 || m.Impressions != 2000 {
		t.Errorf("vid000 = %+v, want revenue 8, impressions 2000", m)
	}
	if _, ok := money["vid001"]; ok {
		t.Error("vid001 is not monetized and should be absent")
	}
	if got := mock.LastQuery()["filters"]; got != "video==vid000,vid001,vid003" {
		t.Errorf("filters = %q", got)
	}
}
