// Path: internal/agents/archeologist_test.go
package agents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/youtube"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArcheologistStore struct {
	mu         sync.Mutex
	priorities map[string]*int
}

func (s *fakeArcheologistStore) UpsertVideo(_ context.Context, v domain.VideoMeta, priorityOverride *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.priorities == nil {
		s.priorities = make(map[string]*int)
	}
	s.priorities[v.ID] = priorityOverride
	return nil
}

type fakeCategoryAPI struct {
	windows []youtube.CategorySearchParams
	respond func(p youtube.CategorySearchParams) (*youtube.SearchResponse, error)
}

func (a *fakeCategoryAPI) SearchByCategory(_ context.Context, _ string, p youtube.CategorySearchParams) (*youtube.SearchResponse, error) {
	a.windows = append(a.windows, p)
	if a.respond != nil {
		return a.respond(p)
	}
	return &youtube.SearchResponse{}, nil
}

func TestArcheologistCoversEveryMonthAndCategory(t *testing.T) {
	api := &fakeCategoryAPI{}
	a := NewArcheologist(&fakeArcheologistStore{}, api, testExecutor(t, "archeology"), nil, testLogger())

	sum, err := a.Run(context.Background(), 2019, 2020)
	require.NoError(t, err)

	assert.Equal(t, 24, sum.MonthsProcessed)
	// One search per category per month.
	assert.Len(t, api.windows, 24*len(targetCategories))

	// Windows are calendar months, inclusive-exclusive.
	first := api.windows[0]
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), first.PublishedAfter)
	assert.Equal(t, time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC), first.PublishedBefore)

	// December rolls into January of the next year.
	var december youtube.CategorySearchParams
	for _, w := range api.windows {
		if w.PublishedAfter.Month() == time.December && w.PublishedAfter.Year() == 2019 {
			december = w
			break
		}
	}
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), december.PublishedBefore)
}

func TestArcheologistFastTracksRelics(t *testing.T) {
	store := &fakeArcheologistStore{}
	api := &fakeCategoryAPI{respond: func(p youtube.CategorySearchParams) (*youtube.SearchResponse, error) {
		if p.CategoryID != "10" {
			return &youtube.SearchResponse{}, nil
		}
		return &youtube.SearchResponse{Items: []youtube.SearchItem{{
			ID:      youtube.VideoRef{VideoID: "vid00000001"},
			Snippet: youtube.Snippet{Title: "relic", PublishedAt: p.PublishedAfter},
		}}}, nil
	}}

	a := NewArcheologist(store, api, testExecutor(t, "archeology"), nil, testLogger())
	sum, err := a.Run(context.Background(), 2020, 2020)
	require.NoError(t, err)

	assert.Equal(t, 12, sum.VideosDiscovered)
	require.NotNil(t, store.priorities["vid00000001"])
	assert.Equal(t, backfillPriority, *store.priorities["vid00000001"])
}

func TestArcheologistSearchFailureContinuesCampaign(t *testing.T) {
	api := &fakeCategoryAPI{respond: func(p youtube.CategorySearchParams) (*youtube.SearchResponse, error) {
		if p.CategoryID == "20" {
			return nil, errors.New("upstream 500")
		}
		return &youtube.SearchResponse{}, nil
	}}

	a := NewArcheologist(&fakeArcheologistStore{}, api, testExecutor(t, "archeology"), nil, testLogger())
	sum, err := a.Run(context.Background(), 2020, 2020)
	require.NoError(t, err)
	assert.Equal(t, 12, sum.MonthsProcessed)
	assert.Equal(t, 12, sum.SearchesFailed)
}

func TestArcheologistTerminationAbortsCampaign(t *testing.T) {
	api := &fakeCategoryAPI{respond: func(youtube.CategorySearchParams) (*youtube.SearchResponse, error) {
		return nil, &resiliency.Termination{Agent: "archeologist", Detail: "blocked"}
	}}

	a := NewArcheologist(&fakeArcheologistStore{}, api, testExecutor(t, "archeology"), nil, testLogger())
	sum, err := a.Run(context.Background(), 2020, 2021)
	require.True(t, resiliency.IsTermination(err))
	assert.Zero(t, sum.MonthsProcessed)
	assert.Len(t, api.windows, 1)
}

func TestArcheologistRejectsInvertedRange(t *testing.T) {
	a := NewArcheologist(&fakeArcheologistStore{}, &fakeCategoryAPI{}, testExecutor(t, "archeology"), nil, testLogger())
	_, err := a.Run(context.Background(), 2021, 2020)
	assert.Error(t, err)
}

func TestArcheologistRotatesOnQuotaError(t *testing.T) {
	burned := map[string]bool{"key-one": true}
	api := &fakeCategoryAPI{respond: func(youtube.CategorySearchParams) (*youtube.SearchResponse, error) {
		return &youtube.SearchResponse{}, nil
	}}
	// Wrap: first key always 403s, executor must fall through to the
	// second for every search.
	rotating := &quotaGate{api: api, burned: burned}

	a := NewArcheologist(&fakeArcheologistStore{}, rotating, testExecutor(t, "archeology", "key-one", "key-two"), nil, testLogger())
	sum, err := a.Run(context.Background(), 2020, 2020)
	require.NoError(t, err)
	assert.Equal(t, 12, sum.MonthsProcessed)
	assert.Zero(t, sum.SearchesFailed)
}

type quotaGate struct {
	api    *fakeCategoryAPI
	burned map[string]bool
}

func (g *quotaGate) SearchByCategory(ctx context.Context, key string, p youtube.CategorySearchParams) (*youtube.SearchResponse, error) {
	if g.burned[key] {
		return nil, &resiliency.QuotaError{Key: key}
	}
	return g.api.SearchByCategory(ctx, key, p)
}
