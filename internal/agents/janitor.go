// Path: internal/agents/janitor.go
package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/config"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/events"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
)

// Drainer is the archival loop the janitor runs in phase one.
type Drainer interface {
	Drain(ctx context.Context, cutoff time.Time) (int, error)
}

// CleanupStore is the hot-tier retention surface of phase two.
type CleanupStore interface {
	CompletedPending(ctx context.Context, limit int) ([]string, error)
	MarkDone(ctx context.Context, videoID string) error
	CountCleanupCandidates(ctx context.Context, cutoff time.Time, safetyCheck bool) (int64, error)
	DeleteCleanupCandidates(ctx context.Context, cutoff time.Time, safetyCheck bool) (int64, error)
}

// promoteBatch bounds one promotion pass over fully vaulted videos.
const promoteBatch = 500

// JanitorSummary reports one cleanup cycle.
type JanitorSummary struct {
	StatsArchived int
	ArchiveErr    error
	Promoted      int
	Report        domain.CleanupReport
}

// Janitor rebalances the hot and cold tiers: phase one drains aged stats
// rows into the vault, phase two promotes fully vaulted videos to DONE and
// deletes processed videos past retention. An archival failure is fatal to
// that batch only; the cleanup
// phase still runs and the next scheduled cycle retries the backlog.
type Janitor struct {
	drainer Drainer
	store   CleanupStore
	cfg     config.JanitorConfig
	broker  *events.Broker
	log     *slog.Logger
}

// NewJanitor wires a cleanup agent.
func NewJanitor(drainer Drainer, store CleanupStore, cfg config.JanitorConfig, broker *events.Broker, log *slog.Logger) *Janitor {
	return &Janitor{
		drainer: drainer,
		store:   store,
		cfg:     cfg,
		broker:  broker,
		log:     log.With("agent", "janitor"),
	}
}

// Run executes one janitor cycle. With dryRun set, nothing is mutated:
// archival is skipped and cleanup only reports what it would delete.
func (j *Janitor) Run(ctx context.Context, dryRun bool) (JanitorSummary, error) {
	var sum JanitorSummary

	cutoff := time.Now().UTC().AddDate(0, 0, -j.cfg.RetentionDays)

	if dryRun || !j.cfg.Enabled {
		j.log.Info("stats archival skipped", "dry_run", dryRun, "enabled", j.cfg.Enabled)
	} else {
		archived, err := j.drainer.Drain(ctx, cutoff)
		sum.StatsArchived = archived
		if err != nil {
			if resiliency.IsTermination(err) {
				return sum, err
			}
			// The batch retries next cycle; cleanup still proceeds.
			j.log.Error("stats archival failed", "archived", archived, "error", err)
			sum.ArchiveErr = err
		} else {
			j.log.Info("stats archival complete", "archived", archived)
		}
	}

	// Videos with both evidence artifacts vaulted have nothing left to
	// process; promote them so retention can reach them.
	if !dryRun {
		promoted, err := j.promote(ctx)
		sum.Promoted = promoted
		if err != nil {
			return sum, err
		}
		if promoted > 0 {
			j.log.Info("promoted fully vaulted videos", "count", promoted)
		}
	}

	report := domain.CleanupReport{
		DryRun:        dryRun,
		Cutoff:        cutoff,
		RetentionDays: j.cfg.RetentionDays,
		SafetyCheck:   j.cfg.SafetyCheck,
	}

	if dryRun {
		count, err := j.store.CountCleanupCandidates(ctx, cutoff, j.cfg.SafetyCheck)
		if err != nil {
			return sum, err
		}
		report.WouldDelete = count
		j.log.Info("cleanup dry run", "would_delete", count)
	} else {
		deleted, err := j.store.DeleteCleanupCandidates(ctx, cutoff, j.cfg.SafetyCheck)
		if err != nil {
			return sum, err
		}
		report.Deleted = deleted
		j.log.Info("cleanup complete", "deleted", deleted, "retention_days", j.cfg.RetentionDays)
	}

	sum.Report = report
	publish(j.broker, "janitor", sum)
	return sum, nil
}

func (j *Janitor) promote(ctx context.Context) (int, error) {
	total := 0
	for {
		ids, err := j.store.CompletedPending(ctx, promoteBatch)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}
		for _, id := range ids {
			if err := j.store.MarkDone(ctx, id); err != nil {
				return total, err
			}
			total++
		}
	}
}
