// Path: internal/domain/models.go
package domain

import "time"

// ProcessingStatus is the lifecycle state of a hot-tier video row.
type ProcessingStatus string

const (
	// StatusPending marks a freshly discovered video awaiting processing.
	StatusPending ProcessingStatus = "PENDING"
	// StatusDone marks a fully processed video, eligible for cleanup
	// once past retention.
	StatusDone ProcessingStatus = "DONE"
	// StatusFailed marks a video whose processing failed; never cleaned up.
	StatusFailed ProcessingStatus = "FAILED"
)

// TopicStatus is the lifecycle state of a search-queue entry. Exhaustion is
// a status, not a removal.
type TopicStatus string

const (
	TopicActive    TopicStatus = "active"
	TopicExhausted TopicStatus = "exhausted"
)

// TrackingTier drives the adaptive watchlist schedule. Tiers only escalate
// forward as content ages.
type TrackingTier string

const (
	TierHourly TrackingTier = "HOURLY"
	TierDaily  TrackingTier = "DAILY"
	TierWeekly TrackingTier = "WEEKLY"
)

// SearchTopic is one outstanding query term in the discovery queue.
type SearchTopic struct {
	ID             int64
	QueryTerm      string
	NextPageToken  *string
	LastSearchedAt *time.Time
	Priority       int
}

// VideoMeta is the normalized metadata of one discovered video.
type VideoMeta struct {
	ID              string
	ChannelID       string
	ChannelTitle    string
	Title           string
	PublishedAt     time.Time
	Tags            []string
	CategoryID      string
	DefaultLanguage string
}

// TrackerTarget is one video selected by the 3-zone staleness query.
type TrackerTarget struct {
	ID            string
	Title         string
	PublishedAt   time.Time
	LastUpdatedAt *time.Time
	Zone          int
}

// StatsRow is an append-only engagement snapshot in the hot stats log.
// Counters are nil when the platform hides them.
type StatsRow struct {
	ID        int64
	VideoID   string
	Views     *int64
	Likes     *int64
	Comments  *int64
	Timestamp time.Time
}

// WatchlistEntry tracks a video independently of its hot-tier row; it
// deliberately survives cleanup of the parent video.
type WatchlistEntry struct {
	VideoID       string
	Tier          TrackingTier
	LastTrackedAt *time.Time
	NextTrackAt   time.Time
}

// WatchlistUpdate is one reschedule produced by a ghost-tracking cycle.
type WatchlistUpdate struct {
	VideoID       string
	Tier          TrackingTier
	LastTrackedAt time.Time
	NextTrackAt   time.Time
}

// PendingVideo is one video awaiting transcript or visual processing.
type PendingVideo struct {
	ID           string
	Title        string
	PublishedAt  time.Time
	DiscoveredAt time.Time
}

// CleanupReport summarizes one janitor video-retention pass.
type CleanupReport struct {
	Deleted       int64
	WouldDelete   int64
	DryRun        bool
	Cutoff        time.Time
	RetentionDays int
	SafetyCheck   bool
}

func allowedID(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// ValidVideoID reports whether id has the platform's 11-char video id shape.
func ValidVideoID(id string) bool {
	return len(id) == 11 && allowedID(id)
}

// ValidChannelID reports whether id has the platform's channel id shape.
func ValidChannelID(id string) bool {
	return len(id) == 24 && len(id) > 2 && id[:2] == "UC" && allowedID(id[2:])
}
