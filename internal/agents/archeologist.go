// Path: internal/agents/archeologist.go
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/events"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/youtube"
)

// targetCategories are the content categories worth digging through:
// music, gaming, entertainment, science/tech, education.
var targetCategories = []string{"10", "20", "24", "28", "27"}

// backfillPriority fast-tracks historical finds ahead of live discovery.
const backfillPriority = 100

// ArcheologistStore is the ingest surface of the historical backfill.
type ArcheologistStore interface {
	UpsertVideo(ctx context.Context, v domain.VideoMeta, priorityOverride *int) error
}

type categoryAPI interface {
	SearchByCategory(ctx context.Context, key string, p youtube.CategorySearchParams) (*youtube.SearchResponse, error)
}

// ArcheologistSummary reports one backfill campaign.
type ArcheologistSummary struct {
	MonthsProcessed  int
	SearchesFailed   int
	VideosDiscovered int
}

// Archeologist backfills the most-viewed historical videos month by month.
// Campaigns consume quota aggressively and are meant to run sparingly.
type Archeologist struct {
	store  ArcheologistStore
	api    categoryAPI
	exec   *resiliency.Executor
	broker *events.Broker
	log    *slog.Logger
}

// NewArcheologist wires a historical discovery agent.
func NewArcheologist(store ArcheologistStore, api categoryAPI, exec *resiliency.Executor, broker *events.Broker, log *slog.Logger) *Archeologist {
	return &Archeologist{
		store:  store,
		api:    api,
		exec:   exec,
		broker: broker,
		log:    log.With("agent", "archeologist"),
	}
}

// Run executes a campaign over the inclusive year range.
func (a *Archeologist) Run(ctx context.Context, startYear, endYear int) (ArcheologistSummary, error) {
	var sum ArcheologistSummary
	if startYear > endYear {
		return sum, fmt.Errorf("invalid campaign range %d-%d", startYear, endYear)
	}

	for year := startYear; year <= endYear; year++ {
		for month := time.January; month <= time.December; month++ {
			if err := a.digMonth(ctx, year, month, &sum); err != nil {
				return sum, err
			}
			sum.MonthsProcessed++
		}
	}

	a.log.Info("campaign complete",
		"months", sum.MonthsProcessed,
		"discovered", sum.VideosDiscovered,
		"failed_searches", sum.SearchesFailed)
	publish(a.broker, "archeologist", sum)
	return sum, nil
}

func (a *Archeologist) digMonth(ctx context.Context, year int, month time.Month, sum *ArcheologistSummary) error {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	for _, category := range targetCategories {
		resp, err := resiliency.Execute(ctx, a.exec, func(ctx context.Context, key string) (*youtube.SearchResponse, error) {
			return a.api.SearchByCategory(ctx, key, youtube.CategorySearchParams{
				CategoryID:      category,
				PublishedAfter:  start,
				PublishedBefore: end,
			})
		})
		if err != nil {
			if resiliency.IsTermination(err) {
				return err
			}
			a.log.Error("historical search failed",
				"window", start.Format("2006-01"), "category", category, "error", err)
			sum.SearchesFailed++
			continue
		}

		priority := backfillPriority
		recovered := 0
		for _, item := range resp.Items {
			if !domain.ValidVideoID(item.ID.VideoID) {
				continue
			}
			if err := a.store.UpsertVideo(ctx, searchItemMeta(item), &priority); err != nil {
				a.log.Error("failed to ingest relic", "video", item.ID.VideoID, "error", err)
				continue
			}
			recovered++
		}
		sum.VideosDiscovered += recovered

		a.log.Info("recovered relics",
			"window", start.Format("2006-01"), "category", category, "count", recovered)
	}
	return nil
}
