// Path: internal/youtube/types.go
package youtube

import (
	"encoding/json"
	"strconv"
	"time"
)

// VideoRef is the id field of a search result. The API returns it as an
// object for searches and as a bare string for video lookups.
type VideoRef struct {
	VideoID string `json:"videoId"`
}

// UnmarshalJSON accepts both the object and bare-string encodings.
func (r *VideoRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.VideoID = s
		return nil
	}
	type ref VideoRef
	var v ref
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = VideoRef(v)
	return nil
}

// Snippet carries the metadata fields the pipeline consumes.
type Snippet struct {
	ChannelID       string    `json:"channelId"`
	ChannelTitle    string    `json:"channelTitle"`
	Title           string    `json:"title"`
	PublishedAt     time.Time `json:"publishedAt"`
	Tags            []string  `json:"tags"`
	CategoryID      string    `json:"categoryId"`
	DefaultLanguage string    `json:"defaultLanguage"`
}

// Statistics carries engagement counters. The API encodes them as strings
// and omits them entirely for videos with hidden counts.
type Statistics struct {
	ViewCount    string `json:"viewCount"`
	LikeCount    string `json:"likeCount"`
	CommentCount string `json:"commentCount"`
}

func parseCount(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// Views returns the view count, or nil when hidden.
func (s Statistics) Views() *int64 { return parseCount(s.ViewCount) }

// Likes returns the like count, or nil when hidden.
func (s Statistics) Likes() *int64 { return parseCount(s.LikeCount) }

// Comments returns the comment count, or nil when hidden.
func (s Statistics) Comments() *int64 { return parseCount(s.CommentCount) }

// SearchItem is one row of a search response.
type SearchItem struct {
	ID      VideoRef `json:"id"`
	Snippet Snippet  `json:"snippet"`
}

// SearchResponse is a single page of search results.
type SearchResponse struct {
	Items         []SearchItem `json:"items"`
	NextPageToken string       `json:"nextPageToken"`
}

// Video is one row of a video-list response.
type Video struct {
	ID             string         `json:"id"`
	Snippet        Snippet        `json:"snippet"`
	Statistics     Statistics     `json:"statistics"`
	ContentDetails ContentDetails `json:"contentDetails"`
}

// ContentDetails carries the playback attributes of a video.
type ContentDetails struct {
	Duration   string `json:"duration"`
	Definition string `json:"definition"`
	Caption    string `json:"caption"`
}

// VideoListResponse is the payload of a batch statistics lookup.
type VideoListResponse struct {
	Items []Video `json:"items"`
}
