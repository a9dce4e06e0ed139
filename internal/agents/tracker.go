// Path: internal/agents/tracker.go
package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/events"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/store"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/vault"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/youtube"
)

// TrackerStore is the hot-tier surface of the standard tracker.
type TrackerStore interface {
	TrackerTargets(ctx context.Context, n int) ([]domain.TrackerTarget, error)
	AppendStatsBatch(ctx context.Context, stats []domain.StatsRow) error
	TouchVideos(ctx context.Context, ids []string) error
}

// WatchlistStore is the surface of the ghost-tracking variant. It lives
// entirely outside the videos table: the parent row may already be gone.
type WatchlistStore interface {
	DueBatch(ctx context.Context, n int) ([]domain.WatchlistEntry, error)
	UpdateSchedules(ctx context.Context, updates []domain.WatchlistUpdate) error
}

type statsAPI interface {
	VideoStats(ctx context.Context, key string, ids []string) (*youtube.VideoListResponse, error)
}

// TrackerSummary reports one tracking cycle.
type TrackerSummary struct {
	TargetsFetched int
	StatsRecorded  int
	Ghost          bool
}

// Tracker refreshes engagement statistics. In standard mode it serves the
// 3-zone staleness query and writes to the hot stats log; with Ghost
// enabled it serves the adaptive watchlist and writes metrics straight to
// the vault, rescheduling each entry by content age.
type Tracker struct {
	store     TrackerStore
	watchlist WatchlistStore
	api       statsAPI
	vault     vault.Vault
	exec      *resiliency.Executor
	broker    *events.Broker
	batch     int
	log       *slog.Logger

	// Ghost selects the watchlist-driven variant.
	Ghost bool
}

// NewTracker wires a tracking agent. The watchlist and vault may be nil
// when Ghost stays off.
func NewTracker(st TrackerStore, wl WatchlistStore, api statsAPI, v vault.Vault, exec *resiliency.Executor, broker *events.Broker, batch int, log *slog.Logger) *Tracker {
	if batch <= 0 || batch > youtube.BatchLimit {
		batch = youtube.BatchLimit
	}
	return &Tracker{
		store:     st,
		watchlist: wl,
		api:       api,
		vault:     v,
		exec:      exec,
		broker:    broker,
		batch:     batch,
		log:       log.With("agent", "tracker"),
	}
}

// Run executes one tracking cycle.
func (t *Tracker) Run(ctx context.Context) (TrackerSummary, error) {
	if t.Ghost {
		return t.runGhost(ctx)
	}
	return t.runStandard(ctx)
}

func (t *Tracker) runStandard(ctx context.Context) (TrackerSummary, error) {
	sum := TrackerSummary{}

	targets, err := t.store.TrackerTargets(ctx, t.batch)
	if err != nil {
		return sum, err
	}
	sum.TargetsFetched = len(targets)
	if len(targets) == 0 {
		t.log.Info("no stale videos, idle cycle")
		publish(t.broker, "tracker", sum)
		return sum, nil
	}

	ids := make([]string, len(targets))
	for i, target := range targets {
		ids[i] = target.ID
	}

	resp, err := t.fetchStats(ctx, ids)
	if err != nil {
		return sum, err
	}
	if len(resp.Items) == 0 {
		t.log.Warn("api returned no items, videos may be deleted or private")
		publish(t.broker, "tracker", sum)
		return sum, nil
	}

	now := time.Now().UTC()
	stats := make([]domain.StatsRow, 0, len(resp.Items))
	touched := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		stats = append(stats, domain.StatsRow{
			VideoID:   item.ID,
			Views:     item.Statistics.Views(),
			Likes:     item.Statistics.Likes(),
			Comments:  item.Statistics.Comments(),
			Timestamp: now,
		})
		touched = append(touched, item.ID)
	}

	if err := t.store.AppendStatsBatch(ctx, stats); err != nil {
		return sum, err
	}
	if err := t.store.TouchVideos(ctx, touched); err != nil {
		return sum, err
	}
	sum.StatsRecorded = len(stats)

	t.log.Info("tracker cycle complete", "targets", sum.TargetsFetched, "recorded", sum.StatsRecorded)
	publish(t.broker, "tracker", sum)
	return sum, nil
}

func (t *Tracker) runGhost(ctx context.Context) (TrackerSummary, error) {
	sum := TrackerSummary{Ghost: true}

	entries, err := t.watchlist.DueBatch(ctx, t.batch)
	if err != nil {
		return sum, err
	}
	sum.TargetsFetched = len(entries)
	if len(entries) == 0 {
		t.log.Info("watchlist has nothing due, idle cycle")
		publish(t.broker, "tracker", sum)
		return sum, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.VideoID
	}

	resp, err := t.fetchStats(ctx, ids)
	if err != nil {
		return sum, err
	}

	now := time.Now().UTC()
	var rows []vault.MetricRow
	var updates []domain.WatchlistUpdate
	for _, item := range resp.Items {
		publishedAt := item.Snippet.PublishedAt
		if publishedAt.IsZero() {
			t.log.Warn("no publish time for video, skipping", "video", item.ID)
			continue
		}

		rows = append(rows, vault.MetricRow{
			VideoID:     item.ID,
			Views:       item.Statistics.Views(),
			Likes:       item.Statistics.Likes(),
			Comments:    item.Statistics.Comments(),
			Timestamp:   now,
			PublishedAt: &publishedAt,
		})

		tier, nextAt := store.NextTrack(publishedAt, now)
		updates = append(updates, domain.WatchlistUpdate{
			VideoID:       item.ID,
			Tier:          tier,
			LastTrackedAt: now,
			NextTrackAt:   nextAt,
		})
	}
	if len(rows) == 0 {
		t.log.Warn("api returned no usable items")
		publish(t.broker, "tracker", sum)
		return sum, nil
	}

	// Metrics land in the vault before the reschedule commits, so a crash
	// in between re-tracks rather than drops a snapshot.
	if err := t.vault.AppendMetrics(ctx, rows, now.Format(vault.DateLayout)); err != nil {
		return sum, err
	}
	if err := t.watchlist.UpdateSchedules(ctx, updates); err != nil {
		return sum, err
	}
	sum.StatsRecorded = len(rows)

	t.log.Info("ghost tracking cycle complete", "due", sum.TargetsFetched, "recorded", sum.StatsRecorded)
	publish(t.broker, "tracker", sum)
	return sum, nil
}

func (t *Tracker) fetchStats(ctx context.Context, ids []string) (*youtube.VideoListResponse, error) {
	return resiliency.Execute(ctx, t.exec, func(ctx context.Context, key string) (*youtube.VideoListResponse, error) {
		return t.api.VideoStats(ctx, key, ids)
	})
}
