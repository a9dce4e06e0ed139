// Path: internal/store/watchlist.go
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WatchlistRepository persists the ghost-tracking watchlist. It shares the
// connection pool with Repository but is composed separately: watchlist
// entries track videos forever, surviving janitor cleanup of the parent row.
type WatchlistRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewWatchlistRepository creates a watchlist repository over the shared pool.
func NewWatchlistRepository(pool *pgxpool.Pool, log *slog.Logger) *WatchlistRepository {
	return &WatchlistRepository{pool: pool, log: log}
}

// Add enrolls a video at the given tier, due immediately. Re-enrolling is a
// no-op.
func (r *WatchlistRepository) Add(ctx context.Context, videoID string, tier domain.TrackingTier) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO watchlist (video_id, tracking_tier, next_track_at, created_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (video_id) DO NOTHING`,
		videoID, string(tier))
	if err != nil {
		return fmt.Errorf("add %s to watchlist: %w", videoID, err)
	}
	return nil
}

// DueBatch claims up to n entries whose next-due time has passed, most
// overdue first.
func (r *WatchlistRepository) DueBatch(ctx context.Context, n int) ([]domain.WatchlistEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT video_id, tracking_tier, last_tracked_at, next_track_at
		FROM watchlist
		WHERE next_track_at <= NOW()
		ORDER BY next_track_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, n)
	if err != nil {
		return nil, fmt.Errorf("watchlist due batch: %w", err)
	}
	defer rows.Close()

	var entries []domain.WatchlistEntry
	for rows.Next() {
		var e domain.WatchlistEntry
		var tier string
		if err := rows.Scan(&e.VideoID, &tier, &e.LastTrackedAt, &e.NextTrackAt); err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		e.Tier = domain.TrackingTier(tier)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateSchedules applies a batch of reschedules computed by a tracking
// cycle.
func (r *WatchlistRepository) UpdateSchedules(ctx context.Context, updates []domain.WatchlistUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, u := range updates {
		b.Queue(`
			UPDATE watchlist
			SET tracking_tier = $1,
			    last_tracked_at = $2,
			    next_track_at = $3
			WHERE video_id = $4`,
			string(u.Tier), u.LastTrackedAt, u.NextTrackAt, u.VideoID)
	}

	br := r.pool.SendBatch(ctx, b)
	for range updates {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("update watchlist schedule: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	r.log.Info("updated watchlist schedules", "count", len(updates))
	return nil
}

// NextTrack computes the tracking tier and next-due timestamp from content
// age. Boundaries are lower-tier-exclusive: exactly 24h is DAILY, exactly
// 7d is WEEKLY. The tier is a monotonic function of age and never regresses.
func NextTrack(publishedAt, now time.Time) (domain.TrackingTier, time.Time) {
	age := now.Sub(publishedAt)

	switch {
	case age < 24*time.Hour:
		return domain.TierHourly, now.Add(time.Hour)
	case age < 7*24*time.Hour:
		return domain.TierDaily, now.Add(24 * time.Hour)
	default:
		return domain.TierWeekly, now.Add(7 * 24 * time.Hour)
	}
}
