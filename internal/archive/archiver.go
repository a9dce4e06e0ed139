// Path: internal/archive/archiver.go
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/vault"
)

// StatsSource is the hot-tier side of archival.
type StatsSource interface {
	SelectStatsBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.StatsRow, error)
	DeleteStatsByID(ctx context.Context, ids []int64) error
}

// MetricsSink is the cold-tier side of archival.
type MetricsSink interface {
	AppendMetrics(ctx context.Context, rows []vault.MetricRow, date string) error
}

// Archiver migrates aged stats rows from the hot tier into date-partitioned
// vault artifacts. Hot-tier rows are deleted only after every partition
// touched by a batch is confirmed written, so a crash mid-batch re-archives
// rather than loses data. Duplicate rows in the vault are tolerated.
type Archiver struct {
	source StatsSource
	sink   MetricsSink
	batch  int
	log    *slog.Logger

	// Pause between drain batches, keeping a large backlog from
	// saturating the hot tier.
	Pause time.Duration
}

// NewArchiver builds an Archiver moving up to batch rows per pass.
func NewArchiver(source StatsSource, sink MetricsSink, batch int, log *slog.Logger) *Archiver {
	if batch <= 0 {
		batch = 5000
	}
	return &Archiver{source: source, sink: sink, batch: batch, log: log, Pause: time.Second}
}

// ArchiveBatch moves one batch of stats rows older than cutoff and reports
// how many were migrated. Zero means the backlog is drained.
func (a *Archiver) ArchiveBatch(ctx context.Context, cutoff time.Time) (int, error) {
	stats, err := a.source.SelectStatsBefore(ctx, cutoff, a.batch)
	if err != nil {
		return 0, fmt.Errorf("select archival batch: %w", err)
	}
	if len(stats) == 0 {
		return 0, nil
	}

	partitions := make(map[string][]vault.MetricRow)
	ids := make([]int64, 0, len(stats))
	for _, s := range stats {
		date := s.Timestamp.UTC().Format(vault.DateLayout)
		partitions[date] = append(partitions[date], vault.MetricRow{
			VideoID:   s.VideoID,
			Views:     s.Views,
			Likes:     s.Likes,
			Comments:  s.Comments,
			Timestamp: s.Timestamp,
		})
		ids = append(ids, s.ID)
	}

	for date, rows := range partitions {
		if err := a.sink.AppendMetrics(ctx, rows, date); err != nil {
			return 0, fmt.Errorf("archive partition %s: %w", date, err)
		}
	}

	if err := a.source.DeleteStatsByID(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete archived rows: %w", err)
	}

	a.log.Info("archived stats batch", "rows", len(stats), "partitions", len(partitions))
	return len(stats), nil
}

// Drain repeatedly archives batches until the backlog older than cutoff is
// empty, returning the total rows migrated.
func (a *Archiver) Drain(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := a.ArchiveBatch(ctx, cutoff)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n

		if a.Pause > 0 {
			select {
			case <-time.After(a.Pause):
			case <-ctx.Done():
				return total, ctx.Err()
			}
		}
	}
}
