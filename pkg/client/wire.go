package client

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// count decodes the Data API's decimal-string counters. Absent, null or
// unparsable values become 0.
type count int64

func (c *count) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		if f, ferr := strconv.ParseFloat(string(data), 64); ferr == nil {
			*c = count(f)
			return nil
		}
		*c = 0
		return nil
	}
	*c = count(n)
	return nil
}

type channelListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount count `json:"subscriberCount"`
			ViewCount       count `json:"viewCount"`
			VideoCount      count `json:"videoCount"`
		} `json:"statistics"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			ResourceID  struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
		ContentDetails struct {
			VideoID          string `json:"videoId"`
			VideoPublishedAt string `json:"videoPublishedAt"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type videoListResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    count `json:"viewCount"`
			LikeCount    count `json:"likeCount"`
			CommentCount count `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type reportResponse struct {
	ColumnHeaders []struct {
		Name       string `json:"name"`
		ColumnType string `json:"columnType"`
		DataType   string `json:"dataType"`
	} `json:"columnHeaders"`
	Rows [][]json.RawMessage `json:"rows"`
}

// parseTimestamp parses the RFC 3339 timestamps of the Data API.
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
