// Path: internal/agents/painter.go
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/capture"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/events"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/vault"
)

// PainterStore is the hot-tier surface of visual processing.
type PainterStore interface {
	PainterBatch(ctx context.Context, n int) ([]domain.PendingVideo, error)
	MarkVisualsSafe(ctx context.Context, videoID string) error
	MarkFailed(ctx context.Context, videoID string) error
}

// PainterSummary reports one visual-evidence cycle.
type PainterSummary struct {
	Processed int
	Painted   int
	Failed    int
}

// Painter captures visual evidence frames for pending videos and archives
// them in the vault. Unlike captions, a video with no capturable frames is
// a failure: every public video has at least a default thumbnail.
type Painter struct {
	store      PainterStore
	source     capture.FrameSource
	vault      vault.Vault
	broker     *events.Broker
	batch      int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewPainter wires a visual-evidence agent.
func NewPainter(store PainterStore, source capture.FrameSource, v vault.Vault, broker *events.Broker, batch int, log *slog.Logger) *Painter {
	return &Painter{
		store:      store,
		source:     source,
		vault:      v,
		broker:     broker,
		batch:      batch,
		retryDelay: itemRetryDelay,
		log:        log.With("agent", "painter"),
	}
}

// Run executes one visual-evidence cycle.
func (p *Painter) Run(ctx context.Context) (PainterSummary, error) {
	var sum PainterSummary

	targets, err := p.store.PainterBatch(ctx, p.batch)
	if err != nil {
		return sum, err
	}
	if len(targets) == 0 {
		p.log.Info("no videos need visuals, idle cycle")
		publish(p.broker, "painter", sum)
		return sum, nil
	}

	for _, video := range targets {
		if err := p.processVideo(ctx, video); err != nil {
			if resiliency.IsTermination(err) {
				return sum, err
			}
			p.log.Error("failed to paint video", "video", video.ID, "error", err)
			if markErr := p.store.MarkFailed(ctx, video.ID); markErr != nil {
				p.log.Error("failed to mark video failed", "video", video.ID, "error", markErr)
			}
			sum.Failed++
		} else {
			sum.Painted++
		}
		sum.Processed++
	}

	p.log.Info("painter cycle complete",
		"processed", sum.Processed,
		"painted", sum.Painted,
		"failed", sum.Failed)
	publish(p.broker, "painter", sum)
	return sum, nil
}

func (p *Painter) processVideo(ctx context.Context, video domain.PendingVideo) error {
	var frames [][]byte
	err := resiliency.Retry(ctx, itemRetryAttempts, p.retryDelay, func(ctx context.Context) error {
		var fetchErr error
		frames, fetchErr = p.source.Fetch(ctx, video.ID)
		return fetchErr
	})
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no frames captured for %s", video.ID)
	}

	err = resiliency.Retry(ctx, itemRetryAttempts, p.retryDelay, func(ctx context.Context) error {
		return vault.StoreVisualEvidence(ctx, p.vault, video.ID, frames)
	})
	if err != nil {
		return err
	}

	if err := p.store.MarkVisualsSafe(ctx, video.ID); err != nil {
		return err
	}
	p.log.Info("painted visual evidence", "video", video.ID, "frames", len(frames))
	return nil
}
