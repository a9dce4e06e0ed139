// Path: internal/archive/archiver_test.go
package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource simulates the hot-tier stats table with in-memory rows.
type fakeSource struct {
	rows    []domain.StatsRow
	batches []int
}

func (f *fakeSource) SelectStatsBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.StatsRow, error) {
	var out []domain.StatsRow
	for _, r := range f.rows {
		if r.Timestamp.Before(cutoff) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	f.batches = append(f.batches, len(out))
	return out, nil
}

func (f *fakeSource) DeleteStatsByID(_ context.Context, ids []int64) error {
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.rows[:0]
	for _, r := range f.rows {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

// fakeSink records appended partitions and can fail a specific date.
type fakeSink struct {
	partitions map[string][]vault.MetricRow
	failDate   string
}

func (f *fakeSink) AppendMetrics(_ context.Context, rows []vault.MetricRow, date string) error {
	if date == f.failDate {
		return errors.New("sink unavailable")
	}
	if f.partitions == nil {
		f.partitions = make(map[string][]vault.MetricRow)
	}
	f.partitions[date] = append(f.partitions[date], rows...)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statsAt(id int64, ts time.Time) domain.StatsRow {
	views := int64(100 * id)
	return domain.StatsRow{ID: id, VideoID: "vid00000001", Views: &views, Timestamp: ts}
}

func TestDrainMovesBacklogInBatches(t *testing.T) {
	old := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{}
	for i := int64(1); i <= 12000; i++ {
		source.rows = append(source.rows, statsAt(i, old))
	}
	sink := &fakeSink{}
	a := NewArchiver(source, sink, 5000, testLogger())
	a.Pause = 0

	total, err := a.Drain(context.Background(), old.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 12000, total)
	assert.Empty(t, source.rows)
	assert.Len(t, sink.partitions["2026-08-01"], 12000)
	// Two full batches, the remainder, then the empty select that ends
	// the drain.
	assert.Equal(t, []int{5000, 5000, 2000, 0}, source.batches)
}

func TestArchiveBatchPartitionsByDate(t *testing.T) {
	source := &fakeSource{rows: []domain.StatsRow{
		statsAt(1, time.Date(2026, 8, 1, 23, 59, 0, 0, time.UTC)),
		statsAt(2, time.Date(2026, 8, 2, 0, 1, 0, 0, time.UTC)),
		statsAt(3, time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)),
	}}
	sink := &fakeSink{}
	a := NewArchiver(source, sink, 100, testLogger())

	n, err := a.ArchiveBatch(context.Background(), time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, sink.partitions["2026-08-01"], 1)
	assert.Len(t, sink.partitions["2026-08-02"], 2)
}

func TestArchiveBatchRespectsCutoff(t *testing.T) {
	cutoff := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: []domain.StatsRow{
		statsAt(1, cutoff.Add(-time.Second)),
		statsAt(2, cutoff),
		statsAt(3, cutoff.Add(time.Second)),
	}}
	sink := &fakeSink{}
	a := NewArchiver(source, sink, 100, testLogger())

	n, err := a.ArchiveBatch(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, source.rows, 2)
}

func TestArchiveBatchKeepsRowsWhenSinkFails(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: []domain.StatsRow{statsAt(1, ts), statsAt(2, ts)}}
	sink := &fakeSink{failDate: "2026-08-01"}
	a := NewArchiver(source, sink, 100, testLogger())

	_, err := a.ArchiveBatch(context.Background(), ts.Add(24*time.Hour))
	require.Error(t, err)
	// Rows survive for the next attempt.
	assert.Len(t, source.rows, 2)
}

func TestArchiveBatchEmptyBacklog(t *testing.T) {
	a := NewArchiver(&fakeSource{}, &fakeSink{}, 100, testLogger())
	n, err := a.ArchiveBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDrainStopsOnContextCancel(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: []domain.StatsRow{statsAt(1, ts)}}
	a := NewArchiver(source, &fakeSink{}, 100, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Drain(ctx, ts.Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}
