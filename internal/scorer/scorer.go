// Package scorer composes the WebP codec adapter, the YUV420p
// converter, and the VMAF engine into one component: decode a
// candidate, convert both legs to YUV420p, and submit the pair to
// libvmaf.
package scorer

import (
	"context"
	"fmt"
	"image"

	"github.com/gwlsn/webpq/internal/search"
	"github.com/gwlsn/webpq/internal/vmaf"
	"github.com/gwlsn/webpq/internal/webpcodec"
	"github.com/gwlsn/webpq/internal/yuvconv"
)

// Scorer creates a Session per source image; ffmpegPath and tempDir
// are forwarded to the underlying vmaf.Scorer.
type Scorer struct {
	FFmpegPath string
	TempDir    string
}

// New returns a Scorer using the given ffmpeg binary and scratch
// directory for rawvideo frames.
func New(ffmpegPath, tempDir string) *Scorer {
	return &Scorer{FFmpegPath: ffmpegPath, TempDir: tempDir}
}

// Session scores candidates against one precomputed source conversion:
// the source's YUV420p form is computed once per image and reused
// across every candidate probed during that image's search.
type Session struct {
	vmafScorer *vmaf.Scorer
}

// NewSession converts source to YUV420p once and prepares to score
// candidates against it. Returned as search.ScoreSession so Scorer
// satisfies search.Scorer directly.
func (s *Scorer) NewSession(ctx context.Context, source image.Image) (search.ScoreSession, error) {
	sourceYUV, err := yuvconv.Convert(source)
	if err != nil {
		return nil, fmt.Errorf("scorer: converting source to yuv420p: %w", err)
	}

	vs, err := vmaf.NewScorer(s.FFmpegPath, s.TempDir, sourceYUV)
	if err != nil {
		return nil, fmt.Errorf("scorer: preparing vmaf session: %w", err)
	}

	return &Session{vmafScorer: vs}, nil
}

// Score decodes candidate, converts it to YUV420p, and returns its
// VMAF score against the session's source.
func (s *Session) Score(ctx context.Context, candidate []byte) (float64, error) {
	img, err := webpcodec.Decode(candidate)
	if err != nil {
		return 0, fmt.Errorf("scorer: decoding candidate: %w", err)
	}

	candidateYUV, err := yuvconv.Convert(img)
	if err != nil {
		return 0, fmt.Errorf("scorer: converting candidate to yuv420p: %w", err)
	}

	score, err := s.vmafScorer.Score(ctx, candidateYUV)
	if err != nil {
		return 0, fmt.Errorf("scorer: vmaf scoring: %w", err)
	}
	return score, nil
}

// Close releases the session's scratch resources.
func (s *Session) Close() error {
	return s.vmafScorer.Close()
}
