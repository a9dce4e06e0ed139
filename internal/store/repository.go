// Path: internal/store/repository.go
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

// Repository owns all hot-tier persistence: the discovery work queue, video
// metadata, the append-only stats log, and retention cleanup. It issues no
// network calls to the external API.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a repository over an injected connection pool.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// ClaimSearchBatch selects up to n active queue entries by priority, then
// mention volume. SKIP LOCKED partitions the queue across concurrent agent
// instances without contention.
func (r *Repository) ClaimSearchBatch(ctx context.Context, n int) ([]domain.SearchTopic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, query_term, next_page_token, last_searched_at, priority
		FROM search_queue
		WHERE status = 'active'
		ORDER BY priority DESC, mention_count DESC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, n)
	if err != nil {
		return nil, fmt.Errorf("claim search batch: %w", err)
	}
	defer rows.Close()

	var topics []domain.SearchTopic
	for rows.Next() {
		var t domain.SearchTopic
		if err := rows.Scan(&t.ID, &t.QueryTerm, &t.NextPageToken, &t.LastSearchedAt, &t.Priority); err != nil {
			return nil, fmt.Errorf("scan search topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// UpdateSearchState records the pagination cursor and result count for one
// topic. Status flips to exhausted when the API stops returning a cursor.
func (r *Repository) UpdateSearchState(ctx context.Context, topicID int64, nextToken *string, resultCount int, status domain.TopicStatus) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE search_queue
		SET next_page_token = $1,
		    last_searched_at = $2,
		    result_count_total = COALESCE(result_count_total, 0) + $3,
		    status = $4
		WHERE id = $5`,
		nextToken, time.Now().UTC(), resultCount, string(status), topicID)
	if err != nil {
		return fmt.Errorf("update search state for topic %d: %w", topicID, err)
	}
	return nil
}

// AddSearchTerms feeds the snowball: novel terms join the queue with a
// mention count of 1, known terms get their count bumped. Returns the number
// of distinct terms processed.
func (r *Repository) AddSearchTerms(ctx context.Context, terms []string) (int, error) {
	return r.addSearchTerms(ctx, terms, 0)
}

// AddSearchTermsWithPriority is AddSearchTerms for fast-tracked content: the
// entry's priority is raised to at least the given value.
func (r *Repository) AddSearchTermsWithPriority(ctx context.Context, terms []string, priority int) (int, error) {
	return r.addSearchTerms(ctx, terms, priority)
}

func (r *Repository) addSearchTerms(ctx context.Context, terms []string, priority int) (int, error) {
	unique := dedupe(terms)
	if len(unique) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	for _, term := range unique {
		b.Queue(`
			INSERT INTO search_queue (query_term, priority, mention_count)
			VALUES ($1, $2, 1)
			ON CONFLICT (query_term)
			DO UPDATE SET mention_count = search_queue.mention_count + 1,
			              priority = GREATEST(search_queue.priority, EXCLUDED.priority)`,
			term, priority)
	}

	br := r.pool.SendBatch(ctx, b)
	for range unique {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("snowball insert: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	return len(unique), nil
}

// UpsertVideo idempotently ingests channel and video metadata; duplicate
// sightings are no-ops (first seen wins). A non-nil priority override marks
// the video's tags into the queue at that priority so historical content is
// fast-tracked ahead of live discovery.
func (r *Repository) UpsertVideo(ctx context.Context, v domain.VideoMeta, priorityOverride *int) error {
	if v.ID == "" {
		return nil
	}

	if v.ChannelID != "" && v.ChannelTitle != "" {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO channels (id, title, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`,
			v.ChannelID, v.ChannelTitle, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("upsert channel %s: %w", v.ChannelID, err)
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO videos (
			id, channel_id, title, published_at,
			tags, category_id, default_language,
			discovered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		v.ID, nullable(v.ChannelID), v.Title, v.PublishedAt,
		v.Tags, nullable(v.CategoryID), nullable(v.DefaultLanguage),
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", v.ID, err)
	}

	if priorityOverride != nil && len(v.Tags) > 0 {
		if _, err := r.AddSearchTermsWithPriority(ctx, v.Tags, *priorityOverride); err != nil {
			return fmt.Errorf("fast-track tags for %s: %w", v.ID, err)
		}
	}
	return nil
}

// TrackerTargets runs the 3-zone staleness query: videos under 24h old not
// refreshed within 1h, 1-7d old not within 6h, older not within 24h. Zone
// order then staleness order is the freshness contract; claim semantics
// match the discovery queue.
func (r *Repository) TrackerTargets(ctx context.Context, n int) ([]domain.TrackerTarget, error) {
	now := time.Now().UTC()

	z1Cutoff := now.Add(-24 * time.Hour)
	z1Thresh := now.Add(-1 * time.Hour)
	z2Cutoff := now.Add(-7 * 24 * time.Hour)
	z2Thresh := now.Add(-6 * time.Hour)
	z3Thresh := now.Add(-24 * time.Hour)

	rows, err := r.pool.Query(ctx, `
		WITH z1 AS (
			SELECT id, title, published_at, last_updated_at, 1 AS zone
			FROM videos
			WHERE published_at >= $1
			  AND (last_updated_at IS NULL OR last_updated_at < $2)
			LIMIT $8
			FOR UPDATE SKIP LOCKED
		), z2 AS (
			SELECT id, title, published_at, last_updated_at, 2 AS zone
			FROM videos
			WHERE published_at < $3 AND published_at >= $4
			  AND (last_updated_at IS NULL OR last_updated_at < $5)
			LIMIT $8
			FOR UPDATE SKIP LOCKED
		), z3 AS (
			SELECT id, title, published_at, last_updated_at, 3 AS zone
			FROM videos
			WHERE published_at < $6
			  AND (last_updated_at IS NULL OR last_updated_at < $7)
			LIMIT $8
			FOR UPDATE SKIP LOCKED
		)
		SELECT id, title, published_at, last_updated_at, zone
		FROM (
			SELECT * FROM z1
			UNION ALL SELECT * FROM z2
			UNION ALL SELECT * FROM z3
		) candidates
		ORDER BY zone ASC, last_updated_at ASC NULLS FIRST
		LIMIT $8`,
		z1Cutoff, z1Thresh, z1Cutoff, z2Cutoff, z2Thresh, z2Cutoff, z3Thresh, n)
	if err != nil {
		return nil, fmt.Errorf("tracker targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.TrackerTarget
	for rows.Next() {
		var t domain.TrackerTarget
		if err := rows.Scan(&t.ID, &t.Title, &t.PublishedAt, &t.LastUpdatedAt, &t.Zone); err != nil {
			return nil, fmt.Errorf("scan tracker target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// AppendStatsBatch bulk-inserts engagement snapshots into the stats log.
// Pure insert, no read-before-write.
func (r *Repository) AppendStatsBatch(ctx context.Context, stats []domain.StatsRow) error {
	if len(stats) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, s := range stats {
		ts := s.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		b.Queue(`
			INSERT INTO video_stats_log (video_id, views, likes, comment_count, timestamp)
			VALUES ($1, $2, $3, $4, $5)`,
			s.VideoID, s.Views, s.Likes, s.Comments, ts)
	}

	br := r.pool.SendBatch(ctx, b)
	for range stats {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("append stats: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	r.log.Info("logged stats to hot tier", "rows", len(stats))
	return nil
}

// TouchVideos stamps last_updated_at for videos just refreshed by the
// tracker, which removes them from their zone's claim window.
func (r *Repository) TouchVideos(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE videos SET last_updated_at = $1 WHERE id = ANY($2)`,
		time.Now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("touch videos: %w", err)
	}
	return nil
}

// ScribeBatch fetches videos awaiting transcripts, oldest discovered first
// so they are vaulted before janitor cleanup can reach them.
func (r *Repository) ScribeBatch(ctx context.Context, n int) ([]domain.PendingVideo, error) {
	return r.pendingBatch(ctx, "has_transcript", n)
}

// PainterBatch fetches videos awaiting visual processing, oldest first.
func (r *Repository) PainterBatch(ctx context.Context, n int) ([]domain.PendingVideo, error) {
	return r.pendingBatch(ctx, "has_visuals", n)
}

func (r *Repository) pendingBatch(ctx context.Context, flag string, n int) ([]domain.PendingVideo, error) {
	// flag is one of two compile-time column names, never user input.
	q := fmt.Sprintf(`
		SELECT id, title, published_at, discovered_at
		FROM videos
		WHERE status = 'PENDING'
		  AND %s = FALSE
		ORDER BY discovered_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, flag)

	rows, err := r.pool.Query(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("pending batch (%s): %w", flag, err)
	}
	defer rows.Close()

	var videos []domain.PendingVideo
	for rows.Next() {
		var v domain.PendingVideo
		if err := rows.Scan(&v.ID, &v.Title, &v.PublishedAt, &v.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("scan pending video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// MarkTranscriptSafe flips the transcript durability flag checked by the
// janitor before deletion.
func (r *Repository) MarkTranscriptSafe(ctx context.Context, videoID string) error {
	return r.setFlag(ctx, "has_transcript", videoID)
}

// MarkVisualsSafe flips the visuals durability flag checked by the janitor.
func (r *Repository) MarkVisualsSafe(ctx context.Context, videoID string) error {
	return r.setFlag(ctx, "has_visuals", videoID)
}

func (r *Repository) setFlag(ctx context.Context, flag, videoID string) error {
	q := fmt.Sprintf(`UPDATE videos SET %s = TRUE, last_updated_at = $1 WHERE id = $2`, flag)
	if _, err := r.pool.Exec(ctx, q, time.Now().UTC(), videoID); err != nil {
		return fmt.Errorf("set %s for %s: %w", flag, videoID, err)
	}
	return nil
}

// MarkDone marks processing complete; the video becomes eligible for
// cleanup after retention.
func (r *Repository) MarkDone(ctx context.Context, videoID string) error {
	return r.setStatus(ctx, videoID, domain.StatusDone)
}

// MarkFailed marks processing failed; failed videos are never cleaned up.
func (r *Repository) MarkFailed(ctx context.Context, videoID string) error {
	return r.setStatus(ctx, videoID, domain.StatusFailed)
}

func (r *Repository) setStatus(ctx context.Context, videoID string, status domain.ProcessingStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE videos SET status = $1, last_updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), videoID)
	if err != nil {
		return fmt.Errorf("set status %s for %s: %w", status, videoID, err)
	}
	return nil
}

// SelectStatsBefore returns up to limit stats rows older than cutoff,
// oldest first. Ordering bounds archival staleness.
func (r *Repository) SelectStatsBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.StatsRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, video_id, views, likes, comment_count, timestamp
		FROM video_stats_log
		WHERE timestamp < $1
		ORDER BY timestamp ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("select stats before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var stats []domain.StatsRow
	for rows.Next() {
		var s domain.StatsRow
		if err := rows.Scan(&s.ID, &s.VideoID, &s.Views, &s.Likes, &s.Comments, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// DeleteStatsByID removes archived rows by primary key. Deleting by the
// captured ids, never by re-evaluating the time predicate, prevents rows
// inserted mid-archival from being dropped unarchived.
func (r *Repository) DeleteStatsByID(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM video_stats_log WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("delete archived stats: %w", err)
	}
	return nil
}

// CompletedPending lists videos still PENDING whose transcript and visual
// evidence are both vaulted, bounded to limit. The janitor promotes these
// to DONE.
func (r *Repository) CompletedPending(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM videos
		WHERE status = 'PENDING'
		  AND has_transcript = TRUE
		  AND has_visuals = TRUE
		ORDER BY discovered_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("completed pending: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completed pending: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func cleanupPredicate(safetyCheck bool) string {
	p := `discovered_at < $1 AND status = 'DONE'`
	if safetyCheck {
		p += ` AND (has_transcript = TRUE OR has_visuals = TRUE)`
	}
	return p
}

// CountCleanupCandidates counts DONE videos discovered before cutoff,
// gated by the durability flags when the safety check is on.
func (r *Repository) CountCleanupCandidates(ctx context.Context, cutoff time.Time, safetyCheck bool) (int64, error) {
	var count int64
	q := `SELECT COUNT(*) FROM videos WHERE ` + cleanupPredicate(safetyCheck)
	if err := r.pool.QueryRow(ctx, q, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cleanup candidates: %w", err)
	}
	return count, nil
}

// DeleteCleanupCandidates deletes the rows CountCleanupCandidates would
// report and returns how many went.
func (r *Repository) DeleteCleanupCandidates(ctx context.Context, cutoff time.Time, safetyCheck bool) (int64, error) {
	q := `DELETE FROM videos WHERE ` + cleanupPredicate(safetyCheck)
	tag, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	var out []string
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
