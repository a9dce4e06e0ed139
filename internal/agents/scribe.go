// Path: internal/agents/scribe.go
package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/capture"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/domain"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/events"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/vault"
)

const (
	itemRetryAttempts = 3
	itemRetryDelay    = 2 * time.Second
)

// ScribeStore is the hot-tier surface of transcript processing.
type ScribeStore interface {
	ScribeBatch(ctx context.Context, n int) ([]domain.PendingVideo, error)
	MarkTranscriptSafe(ctx context.Context, videoID string) error
	MarkFailed(ctx context.Context, videoID string) error
}

// ScribeSummary reports one transcript cycle.
type ScribeSummary struct {
	Processed   int
	Archived    int
	Unavailable int
	Failed      int
}

// Scribe archives caption tracks for pending videos. A video with no
// captions at all is still marked transcript-safe: absence is a terminal
// fact worth recording, not a failure to retry forever.
type Scribe struct {
	store      ScribeStore
	source     capture.TranscriptSource
	vault      vault.Vault
	broker     *events.Broker
	batch      int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewScribe wires a transcript agent.
func NewScribe(store ScribeStore, source capture.TranscriptSource, v vault.Vault, broker *events.Broker, batch int, log *slog.Logger) *Scribe {
	return &Scribe{
		store:      store,
		source:     source,
		vault:      v,
		broker:     broker,
		batch:      batch,
		retryDelay: itemRetryDelay,
		log:        log.With("agent", "scribe"),
	}
}

// Run executes one transcript cycle.
func (s *Scribe) Run(ctx context.Context) (ScribeSummary, error) {
	var sum ScribeSummary

	targets, err := s.store.ScribeBatch(ctx, s.batch)
	if err != nil {
		return sum, err
	}
	if len(targets) == 0 {
		s.log.Info("no videos need transcripts, idle cycle")
		publish(s.broker, "scribe", sum)
		return sum, nil
	}

	for _, video := range targets {
		if err := s.processVideo(ctx, video, &sum); err != nil {
			if resiliency.IsTermination(err) {
				return sum, err
			}
			s.log.Error("failed to scribe video", "video", video.ID, "error", err)
			if markErr := s.store.MarkFailed(ctx, video.ID); markErr != nil {
				s.log.Error("failed to mark video failed", "video", video.ID, "error", markErr)
			}
			sum.Failed++
		}
		sum.Processed++
	}

	s.log.Info("scribe cycle complete",
		"processed", sum.Processed,
		"archived", sum.Archived,
		"unavailable", sum.Unavailable,
		"failed", sum.Failed)
	publish(s.broker, "scribe", sum)
	return sum, nil
}

func (s *Scribe) processVideo(ctx context.Context, video domain.PendingVideo, sum *ScribeSummary) error {
	var transcript *capture.Transcript
	err := resiliency.Retry(ctx, itemRetryAttempts, s.retryDelay, func(ctx context.Context) error {
		var fetchErr error
		transcript, fetchErr = s.source.Fetch(ctx, video.ID)
		return fetchErr
	})
	if err != nil {
		return err
	}

	if transcript == nil {
		s.log.Warn("transcripts unavailable", "video", video.ID)
		sum.Unavailable++
		return s.store.MarkTranscriptSafe(ctx, video.ID)
	}

	err = resiliency.Retry(ctx, itemRetryAttempts, s.retryDelay, func(ctx context.Context) error {
		return vault.StoreTranscript(ctx, s.vault, video.ID, transcript)
	})
	if err != nil {
		return err
	}

	if err := s.store.MarkTranscriptSafe(ctx, video.ID); err != nil {
		return err
	}
	sum.Archived++
	s.log.Info("scribed transcript", "video", video.ID, "language", transcript.Language, "lines", len(transcript.Lines))
	return nil
}
