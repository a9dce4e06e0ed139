// Path: internal/youtube/client_test.go
package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/config"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srvURL string) *Client {
	c := NewClient(config.APIConfig{RequestsPerSecond: 1000, BurstLimit: 1000}, "tracker")
	c.baseURL = srvURL
	return c
}

func TestSearchDecodesPageAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "cat videos", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{
			"nextPageToken": "CAUQAA",
			"items": [
				{"id": {"videoId": "vid00000001"}, "snippet": {"title": "one", "channelId": "UCx", "tags": ["a","b"]}}
			]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.Search(context.Background(), "test-key", SearchParams{Query: "cat videos"})

	require.NoError(t, err)
	assert.Equal(t, "CAUQAA", resp.NextPageToken)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "vid00000001", resp.Items[0].ID.VideoID)
	assert.Equal(t, []string{"a", "b"}, resp.Items[0].Snippet.Tags)
}

func TestVideoStatsParsesStringCounters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "a,b", r.URL.Query().Get("id"))
		w.Write([]byte(`{"items": [
			{"id": "a", "statistics": {"viewCount": "1200", "likeCount": "34"}},
			{"id": "b", "statistics": {}}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.VideoStats(context.Background(), "k", []string{"a", "b"})

	require.NoError(t, err)
	require.Len(t, resp.Items, 2)

	views := resp.Items[0].Statistics.Views()
	require.NotNil(t, views)
	assert.EqualValues(t, 1200, *views)
	assert.Nil(t, resp.Items[0].Statistics.Comments(), "hidden counters read as nil")
	assert.Nil(t, resp.Items[1].Statistics.Views())
}

func TestVideoDetailsIncludesContentDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "snippet,statistics,contentDetails", r.URL.Query().Get("part"))
		w.Write([]byte(`{"items": [
			{"id": "a", "contentDetails": {"duration": "PT4M13S", "definition": "hd", "caption": "true"}}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.VideoDetails(context.Background(), "k", []string{"a"})

	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "PT4M13S", resp.Items[0].ContentDetails.Duration)
	assert.Equal(t, "true", resp.Items[0].ContentDetails.Caption)
}

func TestForbiddenBecomesQuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"reason": "quotaExceeded"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Search(context.Background(), "burned-key", SearchParams{Query: "q"})

	var quota *resiliency.QuotaError
	require.True(t, errors.As(err, &quota))
	assert.Equal(t, "burned-key", quota.Key)
	assert.False(t, resiliency.IsTermination(err))
}

func TestTooManyRequestsBecomesTermination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.VideoStats(context.Background(), "k", []string{"a"})

	assert.True(t, resiliency.IsTermination(err))
}

func TestOtherStatusIsOrdinaryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Search(context.Background(), "k", SearchParams{Query: "q"})

	require.Error(t, err)
	assert.False(t, resiliency.IsTermination(err))
	var quota *resiliency.QuotaError
	assert.False(t, errors.As(err, &quota))
}

func TestExecutorDrivesRotationThroughClient(t *testing.T) {
	// First two keys burned, third succeeds.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if k := r.URL.Query().Get("key"); k != "k3" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ring, err := resiliency.NewKeyRing("tracking", []string{"k1", "k2", "k3"})
	require.NoError(t, err)
	ex := resiliency.NewExecutor(ring, "tracker", testDiscardLogger())

	resp, err := resiliency.Execute(context.Background(), ex, func(ctx context.Context, key string) (*SearchResponse, error) {
		return c.Search(ctx, key, SearchParams{Query: "q", PublishedAfter: time.Now().Add(-24 * time.Hour)})
	})

	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}
