// Package yuvconv converts a decoded raster into the canonical
// YUV420p representation the scorer submits to the VMAF engine.
// Conversion uses identical chroma-siting and range conventions for
// every call so a pixel-identical pair scores at the maximum.
package yuvconv

import (
	"fmt"
	"image"

	"github.com/deepteams/webp/sharpyuv"
)

// options is shared by every conversion so source and candidate always
// go through the same matrix, transfer function, and chroma filter.
// Sharp (iterative) downsampling is disabled because libvmaf's own
// yuv420p formatting uses plain averaging; matching it avoids a
// systematic chroma mismatch that would understate otherwise-identical
// candidates.
var options = &sharpyuv.Options{
	Matrix:       sharpyuv.GetConversionMatrix(sharpyuv.MatrixWebP),
	TransferType: sharpyuv.TransferSRGB,
	SharpEnabled: false,
}

// Convert produces a 4:2:0 planar YUV image from any image.Image.
func Convert(img image.Image) (*image.YCbCr, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("yuvconv: invalid image bounds %v", b)
	}

	rgb, stride := packRGB(img, b)

	yuv := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	if err := sharpyuv.Convert(rgb, w, h, stride, yuv, options); err != nil {
		return nil, fmt.Errorf("yuvconv: convert: %w", err)
	}
	return yuv, nil
}

// packRGB flattens img into row-major 3-bytes-per-pixel RGB, discarding
// alpha.
func packRGB(img image.Image, b image.Rectangle) (rgb []byte, stride int) {
	w, h := b.Dx(), b.Dy()
	stride = w * 3
	rgb = make([]byte, stride*h)

	for y := 0; y < h; y++ {
		row := rgb[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x*3+0] = byte(r >> 8)
			row[x*3+1] = byte(g >> 8)
			row[x*3+2] = byte(bl >> 8)
		}
	}
	return rgb, stride
}
