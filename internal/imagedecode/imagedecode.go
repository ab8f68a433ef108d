// Package imagedecode turns raw file bytes into a model.SourceImage,
// detecting JPEG or PNG from magic bytes via the standard image
// package's format registry.
package imagedecode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gwlsn/webpq/internal/model"
)

// Decode detects and decodes raw JPEG or PNG bytes into a SourceImage.
func Decode(data []byte) (model.SourceImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.SourceImage{}, fmt.Errorf("imagedecode: %w", err)
	}
	if format != "jpeg" && format != "png" {
		return model.SourceImage{}, fmt.Errorf("imagedecode: unsupported format %q", format)
	}

	b := img.Bounds()
	return model.SourceImage{
		Img:    img,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}
