package yuvconv

import (
	"image"
	"image/color"
	"testing"
)

func solidGray(w, h int, v uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestConvertProducesMatchingBounds(t *testing.T) {
	img := solidGray(12, 8, 128)
	yuv, err := Convert(img)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	b := yuv.Bounds()
	if b.Dx() != 12 || b.Dy() != 8 {
		t.Fatalf("unexpected bounds: %v", b)
	}
	if yuv.SubsampleRatio != image.YCbCrSubsampleRatio420 {
		t.Fatalf("expected 4:2:0 subsampling, got %v", yuv.SubsampleRatio)
	}
}

func TestConvertRejectsEmptyBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, err := Convert(img); err == nil {
		t.Fatalf("expected error for zero-size image")
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	img := solidGray(10, 10, 200)
	a, err := Convert(img)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	b, err := Convert(img)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if string(a.Y) != string(b.Y) || string(a.Cb) != string(b.Cb) || string(a.Cr) != string(b.Cr) {
		t.Fatalf("expected identical conversion output for identical input")
	}
}
