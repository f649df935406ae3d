// Package testutil provides a mock YouTube Data and Analytics API server.
package testutil

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// API paths served by the mock.
const (
	PathChannels      = "/youtube/v3/channels"
	PathPlaylistItems = "/youtube/v3/playlistItems"
	PathVideos        = "/youtube/v3/videos"
	PathReports       = "/v2/reports"
)

// MockVideo is one upload of the mock channel.
type MockVideo struct {
	ID          string
	Title       string
	PublishedAt time.Time
	Views       int64
	Likes       int64
	Comments    int64

	// Monetization rows; videos with Monetized false have no report row.
	Monetized   bool
	Revenue     float64
	Impressions int64

	// Private videos appear in the playlist without a video id and are
	// unknown to the videos endpoint.
	Private bool
}

// MockChannel is the channel served by the mock.
type MockChannel struct {
	ID                string
	Title             string
	UploadsPlaylistID string
	Subscribers       int64
}

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockYouTube is a configurable mock YouTube API server for testing.
type MockYouTube struct {
	server *httptest.Server

	mu       sync.RWMutex
	channel  MockChannel
	videos   []MockVideo
	pageSize int
	handlers map[string]http.HandlerFunc
	failures map[string][]MockResponse

	// Tracking
	requests          map[string]int
	conditionalCount  int
	notModifiedCount  int
	videoLookupSizes  []int
	lastRequestHeader http.Header
	lastQuery         map[string]string
}

// NewMockYouTube creates a mock server for a channel and its uploads,
// newest first as the uploads playlist orders them.
func NewMockYouTube(channel MockChannel, videos []MockVideo) *MockYouTube {
	if channel.UploadsPlaylistID == "" {
		channel.UploadsPlaylistID = "UU" + strings.TrimPrefix(channel.ID, "UC")
	}

	m := &MockYouTube{
		channel:  channel,
		videos:   videos,
		pageSize: 50,
		handlers: make(map[string]http.HandlerFunc),
		failures: make(map[string][]MockResponse),
		requests: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(PathChannels, m.handleChannels)
	mux.HandleFunc(PathPlaylistItems, m.handlePlaylistItems)
	mux.HandleFunc(PathVideos, m.handleVideos)
	mux.HandleFunc(PathReports, m.handleReports)

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests[r.URL.Path]++
		m.lastRequestHeader = r.Header.Clone()
		m.lastQuery = flatten(r.URL.Query())
		if r.Header.Get("If-None-Match") != "" {
			m.conditionalCount++
		}
		handler, custom := m.handlers[r.URL.Path]
		var failure *MockResponse
		if queue := m.failures[r.URL.Path]; len(queue) > 0 {
			failure = &queue[0]
			m.failures[r.URL.Path] = queue[1:]
		}
		m.mu.Unlock()

		switch {
		case failure != nil:
			writeResponse(w, *failure)
		case custom:
			handler(w, r)
		default:
			mux.ServeHTTP(w, r)
		}
	}))

	return m
}

// URL returns the mock server URL, usable as both API base URLs.
func (m *MockYouTube) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockYouTube) Close() {
	m.server.Close()
}

// SetPageSize caps playlistItems pages below the requested maxResults.
func (m *MockYouTube) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// SetHandler replaces the handler of a path.
func (m *MockYouTube) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// FailNext queues responses returned, in order, by the next requests to
// path before normal handling resumes.
func (m *MockYouTube) FailNext(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = append(m.failures[path], responses...)
}

// Reset clears all tracking counters.
func (m *MockYouTube) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.conditionalCount = 0
	m.notModifiedCount = 0
	m.videoLookupSizes = nil
	m.lastRequestHeader = nil
	m.lastQuery = nil
}

// RequestCount returns the number of requests to path, or to all paths
// when path is empty.
func (m *MockYouTube) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path != "" {
		return m.requests[path]
	}
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// ConditionalCount returns the number of requests carrying If-None-Match.
func (m *MockYouTube) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// NotModifiedCount returns the number of 304 responses sent.
func (m *MockYouTube) NotModifiedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notModifiedCount
}

// VideoLookupSizes returns the id count of every videos request.
func (m *MockYouTube) VideoLookupSizes() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.videoLookupSizes...)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockYouTube) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockYouTube) LastQuery() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

func (m *MockYouTube) handleChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := []any{}
	if q.Get("mine") == "true" || q.Get("id") == m.channel.ID {
		var views int64
		for _, v := range m.videos {
			views += v.Views
		}
		items = append(items, map[string]any{
			"id":      m.channel.ID,
			"snippet": map[string]any{"title": m.channel.Title},
			"statistics": map[string]any{
				"subscriberCount": strconv.FormatInt(m.channel.Subscribers, 10),
				"viewCount":       strconv.FormatInt(views, 10),
				"videoCount":      strconv.Itoa(len(m.videos)),
			},
			"contentDetails": map[string]any{
				"relatedPlaylists": map[string]any{"uploads": m.channel.UploadsPlaylistID},
			},
		})
	}
	m.writeJSON(w, r, map[string]any{"kind": "youtube#channelListResponse", "items": items})
}

func (m *MockYouTube) handlePlaylistItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("playlistId") != m.channel.UploadsPlaylistID {
		WriteAPIError(w, http.StatusNotFound, "playlistNotFound", "The playlist identified with the request's playlistId parameter cannot be found.")
		return
	}

	size, _ := strconv.Atoi(q.Get("maxResults"))
	m.mu.RLock()
	if size <= 0 || size > m.pageSize {
		size = m.pageSize
	}
	m.mu.RUnlock()

	offset := 0
	if token := q.Get("pageToken"); token != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(token, "page-"))
		if err != nil || n < 0 || n > len(m.videos) {
			WriteAPIError(w, http.StatusBadRequest, "invalidPageToken", "The request specifies an invalid page token.")
			return
		}
		offset = n
	}

	end := offset + size
	if end > len(m.videos) {
		end = len(m.videos)
	}

	items := make([]any, 0, end-offset)
	for _, v := range m.videos[offset:end] {
		items = append(items, playlistItem(v))
	}

	resp := map[string]any{"kind": "youtube#playlistItemListResponse", "items": items}
	if end < len(m.videos) {
		resp["nextPageToken"] = fmt.Sprintf("page-%d", end)
	}
	m.writeJSON(w, r, resp)
}

func playlistItem(v MockVideo) map[string]any {
	published := v.PublishedAt.UTC().Format(time.RFC3339)
	if v.Private {
		return map[string]any{
			"snippet":        map[string]any{"title": "Private video", "publishedAt": published, "resourceId": map[string]any{}},
			"contentDetails": map[string]any{},
		}
	}
	return map[string]any{
		"snippet": map[string]any{
			"title":       v.Title,
			"publishedAt": published,
			"resourceId":  map[string]any{"kind": "youtube#video", "videoId": v.ID},
		},
		"contentDetails": map[string]any{
			"videoId":          v.ID,
			"videoPublishedAt": published,
		},
	}
}

func (m *MockYouTube) handleVideos(w http.ResponseWriter, r *http.Request) {
	ids := splitList(r.URL.Query().Get("id"))
	if len(ids) > 50 {
		WriteAPIError(w, http.StatusBadRequest, "invalidFilters", "The request specifies too many video ids.")
		return
	}

	m.mu.Lock()
	m.videoLookupSizes = append(m.videoLookupSizes, len(ids))
	m.mu.Unlock()

	byID := m.index()
	items := make([]any, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			continue
		}
		items = append(items, map[string]any{
			"id": v.ID,
			"statistics": map[string]any{
				"viewCount":    strconv.FormatInt(v.Views, 10),
				"likeCount":    strconv.FormatInt(v.Likes, 10),
				"commentCount": strconv.FormatInt(v.Comments, 10),
			},
		})
	}
	m.writeJSON(w, r, map[string]any{"kind": "youtube#videoListResponse", "items": items})
}

func (m *MockYouTube) handleReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if r.Header.Get("Authorization") == "" {
		WriteAPIError(w, http.StatusUnauthorized, "required", "Login Required.")
		return
	}
	if q.Get("startDate") == "" || q.Get("endDate") == "" || q.Get("metrics") == "" {
		WriteAPIError(w, http.StatusBadRequest, "required", "Required parameter missing.")
		return
	}

	ids := splitList(strings.TrimPrefix(q.Get("filters"), "video=="))
	byID := m.index()

	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok || !v.Monetized {
			continue
		}
		rows = append(rows, []any{v.ID, v.Revenue, v.Impressions})
	}

	m.writeJSON(w, r, map[string]any{
		"kind": "youtubeAnalytics#resultTable",
		"columnHeaders": []any{
			map[string]any{"name": "video", "columnType": "DIMENSION", "dataType": "STRING"},
			map[string]any{"name": "estimatedRevenue", "columnType": "METRIC", "dataType": "FLOAT"},
			map[string]any{"name": "adImpressions", "columnType": "METRIC", "dataType": "INTEGER"},
		},
		"rows": rows,
	})
}

func (m *MockYouTube) index() map[string]MockVideo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := make(map[string]MockVideo, len(m.videos))
	for _, v := range m.videos {
		if !v.Private {
			byID[v.ID] = v
		}
	}
	return byID
}

// writeJSON writes body with an ETag and answers matching If-None-Match
// with 304.
func (m *MockYouTube) writeJSON(w http.ResponseWriter, r *http.Request, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	etag := fmt.Sprintf(`"%x"`, sha256.Sum256(data))

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=0, must-revalidate, no-transform")
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	if r.Header.Get("If-None-Match") == etag {
		m.mu.Lock()
		m.notModifiedCount++
		m.mu.Unlock()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// WriteAPIError writes a Google API error envelope.
func WriteAPIError(w http.ResponseWriter, status int, reason, message string) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	w.Write([]byte(errorBody(status, reason, message)))
}

func errorBody(status int, reason, message string) string {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors": []any{
				map[string]any{"message": message, "domain": "youtube", "reason": reason},
			},
		},
	})
	return string(body)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 503 backendError response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       errorBody(http.StatusServiceUnavailable, "backendError", "Backend Error"),
		Headers:    map[string]string{"Content-Type": "application/json; charset=UTF-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       errorBody(http.StatusTooManyRequests, "rateLimitExceeded", "Rate Limit Exceeded"),
		Headers:    map[string]string{"Content-Type": "application/json; charset=UTF-8"},
	}
}

// NewQuotaExceededResponse creates a 403 quotaExceeded response.
func NewQuotaExceededResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body: errorBody(http.StatusForbidden, "quotaExceeded",
			"The request cannot be completed because you have exceeded your quota."),
		Headers: map[string]string{"Content-Type": "application/json; charset=UTF-8"},
	}
}

// NewNotFoundResponse creates a 404 response with the given reason.
func NewNotFoundResponse(reason string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       errorBody(http.StatusNotFound, reason, "Not Found"),
		Headers:    map[string]string{"Content-Type": "application/json; charset=UTF-8"},
	}
}

// GenerateVideos builds n public videos published one day apart, newest
// first, ending at newest. Every third video is monetized.
func GenerateVideos(n int, newest time.Time) []MockVideo {
	videos := make([]MockVideo, n)
	for i := range videos {
		views := int64(1000 * (n - i))
		videos[i] = MockVideo{
			ID:          fmt.Sprintf("vid%03d", i),
			Title:       fmt.Sprintf("Video %d", i),
			PublishedAt: newest.AddDate(0, 0, -i),
			Views:       views,
			Likes:       views / 20,
			Comments:    views / 100,
			Monetized:   i%3 == 0,
			Revenue:     float64(views) / 500,
			Impressions: views / 2,
		}
	}
	return videos
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func flatten(v map[string][]string) map[string]string {
	out := make(map[string]string, len(v))
	for k, vals := range v {
		out[k] = strings.Join(vals, ",")
	}
	return out
}
