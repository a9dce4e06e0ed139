// Path: internal/capture/frames.go
package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
)

// FrameSource captures visual evidence frames for a video. An empty result
// with a nil error means no frames could be captured.
type FrameSource interface {
	Fetch(ctx context.Context, videoID string) ([][]byte, error)
}

// thumbnailVariants is the capture order, best quality first. Missing
// variants are skipped, not errors.
var thumbnailVariants = []string{"maxresdefault", "sddefault", "hqdefault"}

const thumbnailBase = "https://i.ytimg.com/vi"

// ThumbnailSource captures the available thumbnail renditions of a video
// from the public image CDN.
type ThumbnailSource struct {
	client  *http.Client
	baseURL string
	agent   string
}

// NewThumbnailSource creates a frame source for one agent.
func NewThumbnailSource(agent string) *ThumbnailSource {
	return &ThumbnailSource{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: thumbnailBase,
		agent:   agent,
	}
}

// Fetch implements FrameSource.
func (s *ThumbnailSource) Fetch(ctx context.Context, videoID string) ([][]byte, error) {
	var frames [][]byte
	for _, variant := range thumbnailVariants {
		frame, err := s.fetchVariant(ctx, videoID, variant)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, nil
}

func (s *ThumbnailSource) fetchVariant(ctx context.Context, videoID, variant string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/%s/%s.jpg", s.baseURL, videoID, variant)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
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
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %s for %s: %w", variant, videoID, err)
		}
		return data, nil
	case http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, &resiliency.Termination{Agent: s.agent, Detail: "thumbnail endpoint rate limited"}
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
