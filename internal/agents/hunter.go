// Path: internal/agents/hunter.go
package agents

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/events"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/vault"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/youtube"
)

// staleTokenAge is how long a pagination cursor stays usable. A topic not
// searched for longer restarts from page one, since the platform expires
// cursors and the 24h discovery window has moved on anyway.
const staleTokenAge = 12 * time.Hour

// discoveryWindow bounds hunter searches to recent content.
const discoveryWindow = 24 * time.Hour

// HunterStore is the hot-tier surface the hunter needs.
type HunterStore interface {
	ClaimSearchBatch(ctx context.Context, n int) ([]domain.SearchTopic, error)
	UpdateSearchState(ctx context.Context, topicID int64, nextToken *string, resultCount int, status domain.TopicStatus) error
	AddSearchTerms(ctx context.Context, terms []string) (int, error)
	UpsertVideo(ctx context.Context, v domain.VideoMeta, priorityOverride *int) error
}

// WatchlistEnroller enrolls newly discovered videos for ghost tracking.
type WatchlistEnroller interface {
	Add(ctx context.Context, videoID string, tier domain.TrackingTier) error
}

type searchAPI interface {
	Search(ctx context.Context, key string, p youtube.SearchParams) (*youtube.SearchResponse, error)
}

// HunterSummary reports one discovery cycle.
type HunterSummary struct {
	TopicsProcessed int
	TopicsFailed    int
	VideosIngested  int
	TagsSnowballed  int
}

// Hunter discovers recent videos for queued search terms and grows its own
// queue by snowballing the tags it finds.
type Hunter struct {
	store     HunterStore
	watchlist WatchlistEnroller
	api       searchAPI
	vault     vault.Vault
	exec      *resiliency.Executor
	broker    *events.Broker
	batch     int
	log       *slog.Logger
}

// NewHunter wires a discovery agent.
func NewHunter(store HunterStore, watchlist WatchlistEnroller, api searchAPI, v vault.Vault, exec *resiliency.Executor, broker *events.Broker, batch int, log *slog.Logger) *Hunter {
	return &Hunter{
		store:     store,
		watchlist: watchlist,
		api:       api,
		vault:     v,
		exec:      exec,
		broker:    broker,
		batch:     batch,
		log:       log.With("agent", "hunter"),
	}
}

// Run executes one discovery cycle.
func (h *Hunter) Run(ctx context.Context) (HunterSummary, error) {
	var sum HunterSummary

	topics, err := h.store.ClaimSearchBatch(ctx, h.batch)
	if err != nil {
		return sum, err
	}
	if len(topics) == 0 {
		h.log.Info("search queue is empty, idle cycle")
		publish(h.broker, "hunter", sum)
		return sum, nil
	}

	for _, topic := range topics {
		if err := h.huntTopic(ctx, topic, &sum); err != nil {
			if resiliency.IsTermination(err) {
				return sum, err
			}
			h.log.Error("topic failed", "term", topic.QueryTerm, "error", err)
			sum.TopicsFailed++
			continue
		}
		sum.TopicsProcessed++
	}

	h.log.Info("hunter cycle complete",
		"processed", sum.TopicsProcessed,
		"failed", sum.TopicsFailed,
		"videos", sum.VideosIngested,
		"snowballed", sum.TagsSnowballed)
	publish(h.broker, "hunter", sum)
	return sum, nil
}

func (h *Hunter) huntTopic(ctx context.Context, topic domain.SearchTopic, sum *HunterSummary) error {
	now := time.Now().UTC()

	pageToken := ""
	if topic.NextPageToken != nil {
		pageToken = *topic.NextPageToken
	}
	if pageToken != "" && topic.LastSearchedAt != nil && now.Sub(*topic.LastSearchedAt) > staleTokenAge {
		h.log.Info("pagination token is stale, restarting topic", "term", topic.QueryTerm)
		pageToken = ""
	}

	resp, err := resiliency.Execute(ctx, h.exec, func(ctx context.Context, key string) (*youtube.SearchResponse, error) {
		return h.api.Search(ctx, key, youtube.SearchParams{
			Query:          topic.QueryTerm,
			PublishedAfter: now.Add(-discoveryWindow),
			PageToken:      pageToken,
		})
	})
	if err != nil {
		return err
	}

	var snowball []string
	for _, item := range resp.Items {
		videoID := item.ID.VideoID
		if !domain.ValidVideoID(videoID) {
			continue
		}

		// Cold-tier raw archive is best effort; the hot tier stays the
		// source of truth for discovery.
		if err := vault.StoreMetadata(ctx, h.vault, videoID, item, ""); err != nil {
			h.log.Warn("failed to archive raw metadata", "video", videoID, "error", err)
		}

		meta := searchItemMeta(item)
		if err := h.store.UpsertVideo(ctx, meta, nil); err != nil {
			h.log.Error("failed to ingest video", "video", videoID, "error", err)
			continue
		}
		sum.VideosIngested++

		if err := h.watchlist.Add(ctx, videoID, domain.TierHourly); err != nil {
			h.log.Warn("failed to enroll video in watchlist", "video", videoID, "error", err)
		}

		for _, tag := range item.Snippet.Tags {
			if t := strings.TrimSpace(tag); t != "" {
				snowball = append(snowball, t)
			}
		}
	}

	if len(snowball) > 0 {
		added, err := h.store.AddSearchTerms(ctx, snowball)
		if err != nil {
			h.log.Error("failed to snowball tags", "term", topic.QueryTerm, "error", err)
		} else {
			sum.TagsSnowballed += added
		}
	}

	status := domain.TopicActive
	var nextToken *string
	if resp.NextPageToken != "" {
		nextToken = &resp.NextPageToken
	} else {
		status = domain.TopicExhausted
	}
	return h.store.UpdateSearchState(ctx, topic.ID, nextToken, len(resp.Items), status)
}

func searchItemMeta(item youtube.SearchItem) domain.VideoMeta {
	return domain.VideoMeta{
		ID:              item.ID.VideoID,
		ChannelID:       item.Snippet.ChannelID,
		ChannelTitle:    item.Snippet.ChannelTitle,
		Title:           item.Snippet.Title,
		PublishedAt:     item.Snippet.PublishedAt,
		Tags:            item.Snippet.Tags,
		CategoryID:      item.Snippet.CategoryID,
		DefaultLanguage: item.Snippet.DefaultLanguage,
	}
}
