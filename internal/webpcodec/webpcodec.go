// Package webpcodec is the narrow adapter around the WebP codec. It is
// the only package that imports github.com/deepteams/webp directly —
// the search controller only ever sees []byte and image.Image, never
// codec handles.
package webpcodec

import (
	"bytes"
	"fmt"
	"image"

	"github.com/deepteams/webp"
)

// method is the encoder effort level used for every encode, lossy or
// lossless: method 6 is libwebp's maximum-effort setting.
const method = 6

// EncodeLossy encodes src as lossy WebP at the given quality, q in
// [1, 100]. The call runs to completion before returning; a non-nil
// error means encoding failed and no output bytes exist.
func EncodeLossy(src image.Image, q float32) ([]byte, error) {
	if q < 1 || q > 100 {
		return nil, fmt.Errorf("webpcodec: quality %v out of range [1, 100]", q)
	}

	opts := &webp.EncoderOptions{
		Lossless: false,
		Quality:  q,
		Method:   method,
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, src, opts); err != nil {
		return nil, fmt.Errorf("webpcodec: lossy encode at q=%v: %w", q, err)
	}
	return buf.Bytes(), nil
}

// EncodeLossless encodes src as lossless WebP, used only as the
// terminal fallback when no lossy candidate crosses its threshold.
func EncodeLossless(src image.Image) ([]byte, error) {
	opts := &webp.EncoderOptions{
		Lossless: true,
		Quality:  100,
		Method:   method,
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, src, opts); err != nil {
		return nil, fmt.Errorf("webpcodec: lossless encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes WebP-encoded candidate bytes back to a raster, for
// the scorer's round trip through the codec.
func Decode(candidate []byte) (image.Image, error) {
	img, err := webp.Decode(bytes.NewReader(candidate))
	if err != nil {
		return nil, fmt.Errorf("webpcodec: decode candidate: %w", err)
	}
	return img, nil
}

// Adapter satisfies the search package's Encoder interface by
// forwarding to the package-level encode functions above.
type Adapter struct{}

func (Adapter) EncodeLossy(src image.Image, q float32) ([]byte, error) { return EncodeLossy(src, q) }
func (Adapter) EncodeLossless(src image.Image) ([]byte, error)         { return EncodeLossless(src) }
