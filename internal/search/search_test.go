package search

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/gwlsn/webpq/internal/model"
)

// fakeClassifier always returns a fixed class.
type fakeClassifier struct {
	class model.Class
}

func (f fakeClassifier) Classify(img image.Image) (model.ClassReport, error) {
	return model.ClassReport{Class: f.class, Detail: "fake"}, nil
}

// fakeEncoder returns deterministic placeholder bytes tagged with q so
// tests can assert which quality level was chosen without a real codec.
type fakeEncoder struct {
	lossyCalls     []float32
	losslessCalled bool
	failAt         map[float32]bool
}

func (f *fakeEncoder) EncodeLossy(src image.Image, q float32) ([]byte, error) {
	f.lossyCalls = append(f.lossyCalls, q)
	if f.failAt[q] {
		return nil, fmt.Errorf("boom at q=%v", q)
	}
	return []byte(fmt.Sprintf("lossy-%v", q)), nil
}

func (f *fakeEncoder) EncodeLossless(src image.Image) ([]byte, error) {
	f.losslessCalled = true
	return []byte("lossless"), nil
}

// fakeScorer maps encoded candidate bytes to a canned score via a
// lookup table keyed by the candidate's string form; unmatched
// candidates score 0. Candidates listed in errAt report failure.
type fakeScorer struct {
	scores   map[string]float64
	errAt    map[string]bool
	sessions int
	newErr   error
}

func (f *fakeScorer) NewSession(ctx context.Context, source image.Image) (ScoreSession, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	f.sessions++
	return &fakeSession{parent: f}, nil
}

type fakeSession struct {
	parent *fakeScorer
	closed bool
}

func (s *fakeSession) Score(ctx context.Context, candidate []byte) (float64, error) {
	key := string(candidate)
	if s.parent.errAt[key] {
		return 0, fmt.Errorf("scoring failed for %s", key)
	}
	return s.parent.scores[key], nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func solidImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestSearchSmallLowComplexityAcceptsEarly(t *testing.T) {
	enc := &fakeEncoder{}
	sc := &fakeScorer{scores: map[string]float64{
		"lossy-10": 99.5,
	}}
	c := New(fakeClassifier{class: model.ClassL0}, enc, sc)

	src := model.SourceImage{Img: solidImage(400, 300), Width: 400, Height: 300}
	data, meta, err := c.Search(context.Background(), src)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if !meta.Passed {
		t.Fatalf("expected Passed=true, got meta=%+v", meta)
	}
	if meta.EndQ != 10 {
		t.Fatalf("expected EndQ=10 (first probe), got %d", meta.EndQ)
	}
	if string(data) != "lossy-10" {
		t.Fatalf("unexpected candidate bytes: %q", data)
	}
	if len(enc.lossyCalls) != 1 {
		t.Fatalf("expected exactly one lossy encode, got %d", len(enc.lossyCalls))
	}
}

func TestSearchHighComplexityStartsAtOne(t *testing.T) {
	enc := &fakeEncoder{}
	sc := &fakeScorer{scores: map[string]float64{
		"lossy-1": 90.0,
	}}
	c := New(fakeClassifier{class: model.ClassH2}, enc, sc)

	src := model.SourceImage{Img: solidImage(1920, 1080), Width: 1920, Height: 1080}
	_, meta, err := c.Search(context.Background(), src)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if meta.EndQ != 1 {
		t.Fatalf("expected H2 search to start and accept at q=1, got %d", meta.EndQ)
	}
	if !meta.Passed {
		t.Fatalf("expected Passed=true")
	}
}

func TestSearchFallsBackToLosslessWhenThresholdNeverMet(t *testing.T) {
	enc := &fakeEncoder{}
	sc := &fakeScorer{scores: map[string]float64{}} // every score defaults to 0
	c := New(fakeClassifier{class: model.ClassL0}, enc, sc)

	src := model.SourceImage{Img: solidImage(400, 300), Width: 400, Height: 300}
	data, meta, err := c.Search(context.Background(), src)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if meta.Passed {
		t.Fatalf("expected Passed=false on exhaustion")
	}
	if meta.EndQ != maxQ {
		t.Fatalf("expected EndQ=%d on fallback, got %d", maxQ, meta.EndQ)
	}
	if !enc.losslessCalled {
		t.Fatalf("expected lossless fallback encode to be called")
	}
	if string(data) != "lossless" {
		t.Fatalf("expected lossless candidate bytes, got %q", data)
	}
	// L0 starts at q=10 and probes through 99 inclusive: 90 lossy calls.
	if len(enc.lossyCalls) != 90 {
		t.Fatalf("expected 90 lossy probes, got %d", len(enc.lossyCalls))
	}
}

func TestSearchSizeBoundaryAt600IsNotSmall(t *testing.T) {
	enc := &fakeEncoder{}
	sc := &fakeScorer{scores: map[string]float64{
		"lossy-10": 96.0, // passes the large (95.0) threshold but not small (99.0)
	}}
	c := New(fakeClassifier{class: model.ClassL0}, enc, sc)

	src := model.SourceImage{Img: solidImage(600, 600), Width: 600, Height: 600}
	if src.Small() {
		t.Fatalf("600x600 must not count as small")
	}
	_, meta, err := c.Search(context.Background(), src)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if !meta.Passed {
		t.Fatalf("expected the large-image threshold to accept a 96.0 score")
	}
}

func TestSearchSkipsScorerFailureAndContinues(t *testing.T) {
	enc := &fakeEncoder{}
	sc := &fakeScorer{
		scores: map[string]float64{"lossy-11": 99.0},
		errAt:  map[string]bool{"lossy-10": true},
	}
	c := New(fakeClassifier{class: model.ClassL0}, enc, sc)

	src := model.SourceImage{Img: solidImage(400, 300), Width: 400, Height: 300}
	_, meta, err := c.Search(context.Background(), src)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if meta.EndQ != 11 {
		t.Fatalf("expected search to skip failed q=10 and accept at q=11, got %d", meta.EndQ)
	}
}

func TestSearchRejectsZeroDimensions(t *testing.T) {
	enc := &fakeEncoder{}
	sc := &fakeScorer{scores: map[string]float64{}}
	c := New(fakeClassifier{class: model.ClassL0}, enc, sc)

	src := model.SourceImage{Img: solidImage(1, 1), Width: 0, Height: 0}
	_, _, err := c.Search(context.Background(), src)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchEncodeFailureIsFatal(t *testing.T) {
	enc := &fakeEncoder{failAt: map[float32]bool{10: true}}
	sc := &fakeScorer{scores: map[string]float64{}}
	c := New(fakeClassifier{class: model.ClassL0}, enc, sc)

	src := model.SourceImage{Img: solidImage(400, 300), Width: 400, Height: 300}
	_, _, err := c.Search(context.Background(), src)
	if !errors.Is(err, ErrEncoderFailure) {
		t.Fatalf("expected ErrEncoderFailure, got %v", err)
	}
	if !IsFatal(err) {
		t.Fatalf("expected IsFatal(err) to be true")
	}
}

func TestSearchIsDeterministicForSameInputs(t *testing.T) {
	run := func() model.OutMeta {
		enc := &fakeEncoder{}
		sc := &fakeScorer{scores: map[string]float64{"lossy-10": 99.2}}
		c := New(fakeClassifier{class: model.ClassL0}, enc, sc)
		src := model.SourceImage{Img: solidImage(400, 300), Width: 400, Height: 300}
		_, meta, err := c.Search(context.Background(), src)
		if err != nil {
			t.Fatalf("Search returned error: %v", err)
		}
		return meta
	}

	a, b := run(), run()
	if a != b {
		t.Fatalf("expected deterministic result, got %+v vs %+v", a, b)
	}
}
