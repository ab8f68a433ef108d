// Package search implements the decision core of the pipeline: the
// ascending quality probe that drives the classifier, candidate
// encoder, and scorer per image and terminates at the first candidate
// whose score crosses its class- and size-dependent threshold, with a
// lossless fallback if none does.
package search

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gwlsn/webpq/internal/logger"
	"github.com/gwlsn/webpq/internal/model"
)

// maxQ is the last quality level probed before falling back to
// lossless encoding.
const maxQ = 99

// Classifier assigns a ClassReport to a decoded source image.
type Classifier interface {
	Classify(img image.Image) (model.ClassReport, error)
}

// Encoder wraps the external WebP lossy and lossless encoders. The
// search controller never sees codec handles, only these two calls.
type Encoder interface {
	EncodeLossy(src image.Image, q float32) ([]byte, error)
	EncodeLossless(src image.Image) ([]byte, error)
}

// Scorer creates one scoring Session per source image.
type Scorer interface {
	NewSession(ctx context.Context, source image.Image) (ScoreSession, error)
}

// ScoreSession scores repeated candidates against one precomputed
// source conversion, then releases its resources.
type ScoreSession interface {
	Score(ctx context.Context, candidate []byte) (float64, error)
	Close() error
}

// Controller is the search decision core: it owns no state across
// images, only references to its three collaborators.
type Controller struct {
	Classifier Classifier
	Encoder    Encoder
	Scorer     Scorer
}

// New builds a Controller from its three collaborators.
func New(classifier Classifier, encoder Encoder, scorer Scorer) *Controller {
	return &Controller{Classifier: classifier, Encoder: encoder, Scorer: scorer}
}

// probe records one searched quality level's outcome, kept only long
// enough to log it and fall back on if the loop exhausts the range.
type probe struct {
	q     int
	score float64
}

// Search drives the classify -> probe -> score -> threshold loop for
// one source image and returns the chosen candidate bytes plus its
// metadata.
func (c *Controller) Search(ctx context.Context, src model.SourceImage) ([]byte, model.OutMeta, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return nil, model.OutMeta{}, fmt.Errorf("%w: zero-dimensional image %dx%d", ErrInvalidInput, src.Width, src.Height)
	}

	report, err := c.Classifier.Classify(src.Img)
	if err != nil {
		return nil, model.OutMeta{}, fmt.Errorf("search: classify: %w", err)
	}

	threshold, err := Threshold(report.Class, src.Small())
	if err != nil {
		return nil, model.OutMeta{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	startQ := StartQ(report.Class)
	if startQ >= 100 {
		return nil, model.OutMeta{}, fmt.Errorf("%w: start_q %d >= 100", ErrConfiguration, startQ)
	}

	session, err := c.Scorer.NewSession(ctx, src.Img)
	if err != nil {
		return nil, model.OutMeta{}, fmt.Errorf("search: preparing scorer session: %w", err)
	}
	defer session.Close()

	var last probe
	haveLast := false

	for q := startQ; q <= maxQ; q++ {
		candidate, err := c.Encoder.EncodeLossy(src.Img, float32(q))
		if err != nil {
			return nil, model.OutMeta{}, fmt.Errorf("%w: encoding at q=%d: %v", ErrEncoderFailure, q, err)
		}

		score, err := session.Score(ctx, candidate)
		if err != nil {
			// A scoring failure on one candidate isn't fatal: move on and
			// try the next quality level.
			logger.Warn("scorer failure, skipping candidate", "q", q, "error", err)
			continue
		}

		last = probe{q: q, score: score}
		haveLast = true
		logger.Info("search iteration", "class", report.Class, "q", q, "score", score, "threshold", threshold)

		if score >= threshold {
			return candidate, model.OutMeta{
				Class:  report.Class,
				Score:  score,
				EndQ:   q,
				Passed: true,
			}, nil
		}
	}

	// Exhausted the range without crossing the threshold: lossless fallback.
	bytes, err := c.Encoder.EncodeLossless(src.Img)
	if err != nil {
		return nil, model.OutMeta{}, fmt.Errorf("%w: lossless fallback: %v", ErrEncoderFailure, err)
	}

	meta := model.OutMeta{
		Class:  report.Class,
		EndQ:   maxQ,
		Passed: false,
	}
	if haveLast {
		meta.Score = last.score
	}
	logger.Info("search fallback to lossless", "class", report.Class, "end_q", meta.EndQ)

	return bytes, meta, nil
}

// IsFatal reports whether err should abort the whole image (encoder
// failure or configuration error) as opposed to being recoverable at
// the batch level (invalid input, I/O).
func IsFatal(err error) bool {
	return errors.Is(err, ErrEncoderFailure) || errors.Is(err, ErrConfiguration)
}
