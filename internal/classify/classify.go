// Package classify implements the classifier bridge: it assigns each
// source image one of six coarse perceptual-complexity classes.
//
// The interface is the contract the search controller depends on;
// HeuristicClassifier is the one implementation shipped here, built
// from cheap per-pixel signals since no trained classifier is
// available. Swapping in a real model later means writing a second
// Classifier, not touching the search controller.
package classify

import (
	"fmt"
	"image"

	"github.com/gwlsn/webpq/internal/model"
)

// Classifier assigns a ClassReport to a decoded source image.
// Implementations must be deterministic for a given pixel buffer.
type Classifier interface {
	Classify(img image.Image) (model.ClassReport, error)
}

// HeuristicClassifier buckets images by gradient energy (detail) and
// luma variance (busyness), both normalized by pixel count so the
// result doesn't scale with resolution.
type HeuristicClassifier struct{}

// NewHeuristicClassifier returns the default classifier implementation.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// cutoff pairs a complexity score upper bound with the class it maps to.
// Scores at or above the last cutoff's bound map to the final class.
type cutoff struct {
	bound float64
	class model.Class
}

var cutoffs = []cutoff{
	{bound: 6, class: model.ClassL0},
	{bound: 14, class: model.ClassL1},
	{bound: 24, class: model.ClassL2},
	{bound: 38, class: model.ClassM1},
	{bound: 58, class: model.ClassH1},
}

// Classify computes the complexity score and maps it to a Class.
func (c *HeuristicClassifier) Classify(img image.Image) (model.ClassReport, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return model.ClassReport{}, fmt.Errorf("classify: empty image bounds %v", b)
	}

	edgeEnergy, variance := complexitySignals(img)
	score := 0.6*edgeEnergy + 0.4*variance

	class := model.ClassH2
	for _, cu := range cutoffs {
		if score < cu.bound {
			class = cu.class
			break
		}
	}

	return model.ClassReport{
		Class:  class,
		Detail: fmt.Sprintf("edge=%.2f variance=%.2f score=%.2f", edgeEnergy, variance, score),
	}, nil
}

// complexitySignals computes mean absolute horizontal luma gradient
// ("edge energy") and the population variance of luma, both scaled to
// a roughly 0-100 range regardless of image size.
func complexitySignals(img image.Image) (edgeEnergy, variance float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	luma := make([]float64, w*h)
	idx := func(x, y int) int { return y*w + x }

	var sum, sumSq float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// RGBA() returns 16-bit components; reduce to 8-bit luma.
			y8 := (0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8))
			luma[idx(x, y)] = y8
			sum += y8
			sumSq += y8 * y8
		}
	}

	n := float64(w * h)
	mean := sum / n
	variance = sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	// Normalize variance (max ~16384 for 8-bit luma) onto a 0-100-ish scale.
	variance = variance / 16384 * 100

	var gradSum float64
	var gradCount int
	for y := 0; y < h; y++ {
		for x := 1; x < w; x++ {
			d := luma[idx(x, y)] - luma[idx(x-1, y)]
			if d < 0 {
				d = -d
			}
			gradSum += d
			gradCount++
		}
	}
	if gradCount > 0 {
		// Mean absolute gradient is at most ~255; scale onto 0-100.
		edgeEnergy = (gradSum / float64(gradCount)) / 255 * 100
	}

	return edgeEnergy, variance
}
