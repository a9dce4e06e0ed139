// Path: internal/youtube/client.go
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/config"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"

	"golang.org/x/time/rate"
)

const apiBase = "https://www.googleapis.com/youtube/v3"

// BatchLimit is the maximum number of video IDs per statistics lookup.
const BatchLimit = 50

// SearchParams describes a discovery search.
type SearchParams struct {
	Query          string
	PublishedAfter time.Time
	PageToken      string
}

// CategorySearchParams describes a historical top-videos search for one
// category inside a time window.
type CategorySearchParams struct {
	CategoryID      string
	PublishedAfter  time.Time
	PublishedBefore time.Time
}

// Client is a typed client for the video-platform Data API. Each call takes
// the API key explicitly so the resiliency executor can drive rotation.
type Client struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	agent   string
}

// NewClient creates and configures a new API client for one agent.
func NewClient(cfg config.APIConfig, agent string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(
			rate.Limit(cfg.RequestsPerSecond),
			cfg.BurstLimit,
		),
		baseURL: apiBase,
		agent:   agent,
	}
}

// Search fetches one page of recent videos for a query term.
func (c *Client) Search(ctx context.Context, key string, p SearchParams) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", p.Query)
	params.Set("type", "video")
	params.Set("maxResults", "50")
	params.Set("order", "date")
	if !p.PublishedAfter.IsZero() {
		params.Set("publishedAfter", p.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if p.PageToken != "" {
		params.Set("pageToken", p.PageToken)
	}

	var out SearchResponse
	if err := c.get(ctx, key, "/search", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchByCategory fetches the most-viewed videos of a category within a
// historical time window.
func (c *Client) SearchByCategory(ctx context.Context, key string, p CategorySearchParams) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("order", "viewCount")
	params.Set("maxResults", "50")
	params.Set("videoCategoryId", p.CategoryID)
	params.Set("publishedAfter", p.PublishedAfter.UTC().Format(time.RFC3339))
	params.Set("publishedBefore", p.PublishedBefore.UTC().Format(time.RFC3339))

	var out SearchResponse
	if err := c.get(ctx, key, "/search", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VideoStats fetches snippet and statistics for up to BatchLimit videos.
func (c *Client) VideoStats(ctx context.Context, key string, ids []string) (*VideoListResponse, error) {
	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("id", strings.Join(ids, ","))

	var out VideoListResponse
	if err := c.get(ctx, key, "/videos", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VideoDetails fetches the full record for up to BatchLimit videos,
// including content details.
func (c *Client) VideoDetails(ctx context.Context, key string, ids []string) (*VideoListResponse, error) {
	params := url.Values{}
	params.Set("part", "snippet,statistics,contentDetails")
	params.Set("id", strings.Join(ids, ","))

	var out VideoListResponse
	if err := c.get(ctx, key, "/videos", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get executes one paced request and classifies the outcome: 200 decodes,
// 403 becomes a key-level QuotaError, 429 becomes the process Termination
// signal, anything else is an ordinary failure.
func (c *Client) get(ctx context.Context, key, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("key", key)
	reqURL := c.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to unmarshal json response: %w", err)
		}
		return nil

	case http.StatusForbidden:
		return &resiliency.QuotaError{Key: key, Detail: readDetail(resp.Body)}

	case http.StatusTooManyRequests:
		return &resiliency.Termination{Agent: c.agent, Detail: readDetail(resp.Body)}

	default:
		return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, readDetail(resp.Body))
	}
}

// readDetail keeps a bounded slice of an error body for logs.
func readDetail(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 200))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}
