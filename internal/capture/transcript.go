// Path: internal/capture/transcript.go
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
)

// TranscriptSource fetches caption tracks for a video. A nil transcript with
// a nil error means the video has no captions, which is a valid terminal
// state rather than a failure.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) (*Transcript, error)
}

// Line is one caption segment.
type Line struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Transcript is a full caption track for one video.
type Transcript struct {
	VideoID  string `json:"video_id"`
	Language string `json:"language"`
	Lines    []Line `json:"lines"`
}

// transcriptLanguages is the fallback order: English first, then the common
// languages worth keeping when no English track exists.
var transcriptLanguages = []string{"en", "es", "fr", "de", "pt", "ru", "ja", "ko"}

const timedTextBase = "https://www.youtube.com/api/timedtext"

// TimedTextSource fetches captions from the public timed-text endpoint,
// trying each fallback language in order.
type TimedTextSource struct {
	client  *http.Client
	baseURL string
	agent   string
}

// NewTimedTextSource creates a transcript source for one agent.
func NewTimedTextSource(agent string) *TimedTextSource {
	return &TimedTextSource{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: timedTextBase,
		agent:   agent,
	}
}

// timedTextPayload is the json3 wire format of the timed-text endpoint.
type timedTextPayload struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// Fetch implements TranscriptSource. An empty response for every fallback
// language means the video has no captions.
func (s *TimedTextSource) Fetch(ctx context.Context, videoID string) (*Transcript, error) {
	for _, lang := range transcriptLanguages {
		tr, err := s.fetchLanguage(ctx, videoID, lang)
		if err != nil {
			return nil, err
		}
		if tr != nil {
			return tr, nil
		}
	}
	return nil, nil
}

func (s *TimedTextSource) fetchLanguage(ctx context.Context, videoID, lang string) (*Transcript, error) {
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", lang)
	params.Set("fmt", "json3")

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, &resiliency.Termination{Agent: s.agent, Detail: "transcript endpoint rate limited"}
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	// The endpoint answers 200 with an empty body when the track is absent.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var payload timedTextPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript for %s: %w", videoID, err)
	}

	var lines []Line
	for _, ev := range payload.Events {
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Text:     text,
			Start:    float64(ev.StartMs) / 1000,
			Duration: float64(ev.DurationMs) / 1000,
		})
	}
	if len(lines) == 0 {
		return nil, nil
	}

	return &Transcript{VideoID: videoID, Language: lang, Lines: lines}, nil
}
