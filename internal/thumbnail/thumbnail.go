package thumbnail

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

const (
	// MaxSize is the bounding box for generated thumbnails, in pixels.
	MaxSize = 300
	// JPEGQuality keeps thumbnails small; originals are untouched.
	JPEGQuality = 80
)

// Generate decodes an uploaded image and returns a JPEG thumbnail fitting
// within MaxSize x MaxSize. Unsupported formats return the decode error; the
// caller treats that as non-fatal and serves the original instead.
func Generate(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	thumb := resize.Thumbnail(MaxSize, MaxSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
