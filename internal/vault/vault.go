// Path: internal/vault/vault.go
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/config"
)

// ErrNotFound reports that no artifact exists at the requested path.
var ErrNotFound = errors.New("vault: artifact not found")

// DateLayout is the UTC calendar-date partition key format.
const DateLayout = "2006-01-02"

// MetricRow is one engagement snapshot inside a date-partitioned metrics
// artifact. Rows are immutable time-series facts, so a partition tolerates
// duplicates from overlapping appends.
type MetricRow struct {
	VideoID     string     `json:"video_id"`
	Views       *int64     `json:"views"`
	Likes       *int64     `json:"likes"`
	Comments    *int64     `json:"comments"`
	Timestamp   time.Time  `json:"timestamp"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Vault is the cold-tier storage strategy. Implementations are append
// oriented and need no locking: the hot tier treats a confirmed write here
// as the sole precondition for deleting its own rows.
type Vault interface {
	// AppendMetrics appends rows to the metrics artifact for the given
	// UTC date partition.
	AppendMetrics(ctx context.Context, rows []MetricRow, date string) error

	// StoreJSON writes a JSON artifact at path, replacing any previous
	// content.
	StoreJSON(ctx context.Context, path string, data any) error

	// FetchJSON reads the artifact at path into out. Returns ErrNotFound
	// when no artifact exists there.
	FetchJSON(ctx context.Context, path string, out any) error

	// List returns the paths of all artifacts under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// StoreBinary writes an opaque artifact and returns its provider URI.
	StoreBinary(ctx context.Context, path string, data []byte, contentType string) (string, error)

	// FetchBinary reads an opaque artifact. Returns ErrNotFound when
	// absent.
	FetchBinary(ctx context.Context, path string) ([]byte, error)

	// Close releases the provider's client resources.
	Close(ctx context.Context) error
}

// New builds the configured provider.
func New(ctx context.Context, cfg config.VaultConfig) (Vault, error) {
	switch cfg.Provider {
	case "gcs":
		return NewGCSVault(ctx, cfg)
	case "mongo":
		return NewMongoVault(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown vault provider %q", cfg.Provider)
	}
}

// MetricsPath returns the artifact path for one date partition.
func MetricsPath(date string) string {
	return fmt.Sprintf("metrics/date=%s/stats.json", date)
}

// MetadataPath returns the artifact path for one video's raw metadata.
func MetadataPath(videoID, date string) string {
	return fmt.Sprintf("metadata/%s/%s.json", date, videoID)
}

// TranscriptPath returns the artifact path for one video's transcript.
func TranscriptPath(videoID string) string {
	return fmt.Sprintf("transcripts/%s.json", videoID)
}

// VisualPath returns the artifact path for one captured frame.
func VisualPath(videoID string, index int) string {
	return fmt.Sprintf("visuals/%s/%d.jpg", videoID, index)
}

// StoreMetadata archives a video's raw metadata under today's partition
// when date is empty.
func StoreMetadata(ctx context.Context, v Vault, videoID string, data any, date string) error {
	if date == "" {
		date = time.Now().UTC().Format(DateLayout)
	}
	return v.StoreJSON(ctx, MetadataPath(videoID, date), data)
}

// StoreTranscript archives a video's transcript payload.
func StoreTranscript(ctx context.Context, v Vault, videoID string, transcript any) error {
	return v.StoreJSON(ctx, TranscriptPath(videoID), transcript)
}

// FetchTranscript loads a previously archived transcript into out.
func FetchTranscript(ctx context.Context, v Vault, videoID string, out any) error {
	return v.FetchJSON(ctx, TranscriptPath(videoID), out)
}

// StoreVisualEvidence archives captured frames for one video, one artifact
// per frame.
func StoreVisualEvidence(ctx context.Context, v Vault, videoID string, frames [][]byte) error {
	for i, frame := range frames {
		if _, err := v.StoreBinary(ctx, VisualPath(videoID, i), frame, "image/jpeg"); err != nil {
			return fmt.Errorf("store frame %d for %s: %w", i, videoID, err)
		}
	}
	return nil
}

// appendMetrics is the shared read-merge-write append used by providers.
// A missing partition starts empty; duplicated rows from an interrupted
// earlier attempt are acceptable since rows are immutable facts.
func appendMetrics(ctx context.Context, v Vault, rows []MetricRow, date string) error {
	if len(rows) == 0 {
		return nil
	}
	if date == "" {
		date = time.Now().UTC().Format(DateLayout)
	}

	path := MetricsPath(date)

	var existing []MetricRow
	if err := v.FetchJSON(ctx, path, &existing); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("read metrics partition %s: %w", path, err)
	}

	combined := append(existing, rows...)
	if err := v.StoreJSON(ctx, path, combined); err != nil {
		return fmt.Errorf("write metrics partition %s: %w", path, err)
	}
	return nil
}
