// Path: internal/agents/tracker_test.go
package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/vault"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/youtube"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrackerStore struct {
	targets []domain.TrackerTarget
	stats   []domain.StatsRow
	touched []string
}

func (s *fakeTrackerStore) TrackerTargets(_ context.Context, n int) ([]domain.TrackerTarget, error) {
	if n > len(s.targets) {
		n = len(s.targets)
	}
	return s.targets[:n], nil
}

func (s *fakeTrackerStore) AppendStatsBatch(_ context.Context, stats []domain.StatsRow) error {
	s.stats = append(s.stats, stats...)
	return nil
}

func (s *fakeTrackerStore) TouchVideos(_ context.Context, ids []string) error {
	s.touched = append(s.touched, ids...)
	return nil
}

type fakeWatchlistStore struct {
	due     []domain.WatchlistEntry
	updates []domain.WatchlistUpdate
}

func (s *fakeWatchlistStore) DueBatch(_ context.Context, n int) ([]domain.WatchlistEntry, error) {
	if n > len(s.due) {
		n = len(s.due)
	}
	return s.due[:n], nil
}

func (s *fakeWatchlistStore) UpdateSchedules(_ context.Context, updates []domain.WatchlistUpdate) error {
	s.updates = append(s.updates, updates...)
	return nil
}

type fakeStatsAPI struct {
	items map[string]youtube.Video
	err   error
	calls int
}

func (a *fakeStatsAPI) VideoStats(_ context.Context, _ string, ids []string) (*youtube.VideoListResponse, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	resp := &youtube.VideoListResponse{}
	for _, id := range ids {
		if v, ok := a.items[id]; ok {
			resp.Items = append(resp.Items, v)
		}
	}
	return resp, nil
}

func apiVideo(id string, views int64, publishedAt time.Time) youtube.Video {
	return youtube.Video{
		ID:         id,
		Snippet:    youtube.Snippet{PublishedAt: publishedAt},
		Statistics: youtube.Statistics{ViewCount: fmt.Sprintf("%d", views)},
	}
}

func TestStandardTrackerRecordsStats(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeTrackerStore{targets: []domain.TrackerTarget{
		{ID: "vid00000001", Zone: 1},
		{ID: "vid00000002", Zone: 2},
	}}
	api := &fakeStatsAPI{items: map[string]youtube.Video{
		"vid00000001": apiVideo("vid00000001", 1500, now.Add(-3*time.Hour)),
		"vid00000002": apiVideo("vid00000002", 90, now.Add(-48*time.Hour)),
	}}

	tr := NewTracker(store, nil, api, nil, testExecutor(t, "tracking"), nil, 50, testLogger())
	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.TargetsFetched)
	assert.Equal(t, 2, sum.StatsRecorded)
	require.Len(t, store.stats, 2)
	require.NotNil(t, store.stats[0].Views)
	assert.EqualValues(t, 1500, *store.stats[0].Views)
	assert.Nil(t, store.stats[0].Likes)
	assert.ElementsMatch(t, []string{"vid00000001", "vid00000002"}, store.touched)
}

func TestStandardTrackerCapsBatchAtAPILimit(t *testing.T) {
	store := &fakeTrackerStore{}
	for i := 0; i < 80; i++ {
		store.targets = append(store.targets, domain.TrackerTarget{ID: fmt.Sprintf("vid%08d", i)})
	}
	api := &fakeStatsAPI{items: map[string]youtube.Video{}}

	tr := NewTracker(store, nil, api, nil, testExecutor(t, "tracking"), nil, 80, testLogger())
	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, youtube.BatchLimit, sum.TargetsFetched)
}

func TestStandardTrackerIdleCycle(t *testing.T) {
	tr := NewTracker(&fakeTrackerStore{}, nil, &fakeStatsAPI{}, nil, testExecutor(t, "tracking"), nil, 50, testLogger())
	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.TargetsFetched)
}

func TestStandardTrackerTerminationPropagates(t *testing.T) {
	store := &fakeTrackerStore{targets: []domain.TrackerTarget{{ID: "vid00000001"}}}
	api := &fakeStatsAPI{err: &resiliency.Termination{Agent: "tracker", Detail: "blocked"}}

	tr := NewTracker(store, nil, api, nil, testExecutor(t, "tracking"), nil, 50, testLogger())
	_, err := tr.Run(context.Background())
	require.True(t, resiliency.IsTermination(err))
	assert.Empty(t, store.stats)
}

func TestGhostTrackerWritesVaultAndReschedules(t *testing.T) {
	now := time.Now().UTC()
	wl := &fakeWatchlistStore{due: []domain.WatchlistEntry{
		{VideoID: "vid00000001", Tier: domain.TierHourly},
		{VideoID: "vid00000002", Tier: domain.TierHourly},
	}}
	api := &fakeStatsAPI{items: map[string]youtube.Video{
		// Young video stays HOURLY, old one escalates to WEEKLY.
		"vid00000001": apiVideo("vid00000001", 100, now.Add(-2*time.Hour)),
		"vid00000002": apiVideo("vid00000002", 9000, now.Add(-30*24*time.Hour)),
	}}
	v := newFakeVault()

	tr := NewTracker(nil, wl, api, v, testExecutor(t, "tracking"), nil, 50, testLogger())
	tr.Ghost = true

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.Ghost)
	assert.Equal(t, 2, sum.StatsRecorded)

	require.Len(t, wl.updates, 2)
	byID := map[string]domain.WatchlistUpdate{}
	for _, u := range wl.updates {
		byID[u.VideoID] = u
	}
	assert.Equal(t, domain.TierHourly, byID["vid00000001"].Tier)
	assert.Equal(t, domain.TierWeekly, byID["vid00000002"].Tier)
	assert.True(t, byID["vid00000002"].NextTrackAt.After(byID["vid00000001"].NextTrackAt))

	// Metrics landed in today's partition.
	assert.Contains(t, v.objects, vault.MetricsPath(now.Format(vault.DateLayout)))
}

func TestGhostTrackerSkipsItemsWithoutPublishTime(t *testing.T) {
	wl := &fakeWatchlistStore{due: []domain.WatchlistEntry{{VideoID: "vid00000001"}}}
	api := &fakeStatsAPI{items: map[string]youtube.Video{
		"vid00000001": {ID: "vid00000001"},
	}}

	tr := NewTracker(nil, wl, api, newFakeVault(), testExecutor(t, "tracking"), nil, 50, testLogger())
	tr.Ghost = true

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.StatsRecorded)
	assert.Empty(t, wl.updates)
}

func TestGhostTrackerVaultFailureSkipsReschedule(t *testing.T) {
	now := time.Now().UTC()
	wl := &fakeWatchlistStore{due: []domain.WatchlistEntry{{VideoID: "vid00000001"}}}
	api := &fakeStatsAPI{items: map[string]youtube.Video{
		"vid00000001": apiVideo("vid00000001", 10, now.Add(-time.Hour)),
	}}
	v := newFakeVault()
	v.fail = true

	tr := NewTracker(nil, wl, api, v, testExecutor(t, "tracking"), nil, 50, testLogger())
	tr.Ghost = true

	_, err := tr.Run(context.Background())
	require.Error(t, err)
	// The entry stays due and is re-tracked next cycle.
	assert.Empty(t, wl.updates)
}

func TestTrackerRotatesOnQuotaError(t *testing.T) {
	store := &fakeTrackerStore{targets: []domain.TrackerTarget{{ID: "vid00000001"}}}
	calls := 0
	api := &rotatingStatsAPI{
		fn: func(key string) (*youtube.VideoListResponse, error) {
			calls++
			if key == "key-one" {
				return nil, &resiliency.QuotaError{Key: key}
			}
			return &youtube.VideoListResponse{}, nil
		},
	}

	tr := NewTracker(store, nil, api, nil, testExecutor(t, "tracking", "key-one", "key-two"), nil, 50, testLogger())
	_, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

type rotatingStatsAPI struct {
	fn func(key string) (*youtube.VideoListResponse, error)
}

func (a *rotatingStatsAPI) VideoStats(_ context.Context, key string, _ []string) (*youtube.VideoListResponse, error) {
	return a.fn(key)
}
