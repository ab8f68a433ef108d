// Package model holds the data types shared across the quantization
// search pipeline: the classifier's output, the decoded source raster,
// and the per-image result record.
package model

import (
	"image"
	"time"
)

// Class is a coarse perceptual-complexity tag assigned once per source
// image and never mutated afterward. The zero value is not a valid
// class; always construct one via the classifier.
type Class string

const (
	ClassL0 Class = "L0"
	ClassL1 Class = "L1"
	ClassL2 Class = "L2"
	ClassM1 Class = "M1"
	ClassH1 Class = "H1"
	ClassH2 Class = "H2"
)

// classOrder gives the total order L0 < L1 < L2 < M1 < H1 < H2.
var classOrder = map[Class]int{
	ClassL0: 0,
	ClassL1: 1,
	ClassL2: 2,
	ClassM1: 3,
	ClassH1: 4,
	ClassH2: 5,
}

// Valid reports whether c is one of the six recognized classes.
func (c Class) Valid() bool {
	_, ok := classOrder[c]
	return ok
}

// Less reports whether c sorts before other in the class total order.
func (c Class) Less(other Class) bool {
	return classOrder[c] < classOrder[other]
}

// ClassReport pairs a Class with auxiliary diagnostics from the
// classifier. Only Class is consumed by the search controller; Detail
// is carried for logging only.
type ClassReport struct {
	Class  Class
	Detail string
}

// SourceImage is a decoded raster owned by the search for the duration
// of one image's processing.
type SourceImage struct {
	Img    image.Image
	Width  int
	Height int
}

// Small reports whether this source counts as "small" for threshold
// purposes: min(width, height) < 600, strictly.
func (s SourceImage) Small() bool {
	return s.Width < 600 || s.Height < 600
}

// Score is a VMAF-style perceptual similarity score in [0, 100].
// Higher is better.
type Score float64

// OutMeta is the per-image result record produced by the search
// controller and collected by the batch driver.
type OutMeta struct {
	Class      Class   `json:"class"`
	Score      float64 `json:"score"`
	EndQ       int     `json:"end_q"`
	Passed     bool    `json:"passed"`
	InputPath  string  `json:"input_path,omitempty"`
	OutputPath string  `json:"output_path,omitempty"`
	BytesIn    int64   `json:"bytes_in,omitempty"`
	BytesOut   int64   `json:"bytes_out,omitempty"`
}

// RunMeta labels one batch invocation for logging and resume-cache
// correlation. It never substitutes for or mutates an image's OutMeta.
type RunMeta struct {
	RunID     string
	StartedAt time.Time
	EndedAt   time.Time
	Passed    int
	Fallback  int
	Failed    int
	BytesIn   int64
	BytesOut  int64
}

// BytesSaved returns BytesIn - BytesOut, clamped to zero.
func (r RunMeta) BytesSaved() int64 {
	if r.BytesIn <= r.BytesOut {
		return 0
	}
	return r.BytesIn - r.BytesOut
}
