package processor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const (
	// ThumbnailSize is the fixed edge length of cached thumbnails.
	ThumbnailSize = 64

	thumbnailQuality = 80
	previewQuality   = 90

	// frameChannels is the channel count of a raw frame buffer (RGBA).
	frameChannels = 4
)

// Processor produces resampled raster derivatives from encoded source bytes.
// All resizing uses cover fit: scale the source uniformly to fully cover the
// target box, then crop the centered excess, so no blank border pixels are
// ever produced.
type Processor struct{}

func New() *Processor {
	return &Processor{}
}

// Thumbnail produces a ThumbnailSize-square JPEG derivative. It returns nil
// on any decode or encode failure and never errors.
func (p *Processor) Thumbnail(data []byte) []byte {
	img, err := decode(data)
	if err != nil {
		return nil
	}

	out, err := encodeJPEG(coverFit(img, ThumbnailSize, ThumbnailSize), thumbnailQuality)
	if err != nil {
		return nil
	}
	return out
}

// Preview produces a cover-cropped JPEG at the exact requested dimensions.
// Previews vary per device, so they are computed fresh on every call.
func (p *Processor) Preview(data []byte, width, height int) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding preview source: %w", err)
	}

	out, err := encodeJPEG(coverFit(img, width, height), previewQuality)
	if err != nil {
		return nil, fmt.Errorf("encoding preview: %w", err)
	}
	return out, nil
}

// Rasterize resizes to exactly width x height and strips all encoding,
// returning a flat RGBA buffer of length width*height*4. A length mismatch
// is a defect and fails loudly rather than silently truncating or padding.
func (p *Processor) Rasterize(data []byte, width, height int) ([]byte, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid raster dimensions %dx%d", width, height)
	}

	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding frame source: %w", err)
	}

	fit := coverFit(img, width, height)

	want := width * height * frameChannels
	buf := make([]byte, 0, want)
	for y := 0; y < height; y++ {
		row := fit.Pix[y*fit.Stride : y*fit.Stride+width*frameChannels]
		buf = append(buf, row...)
	}
	if len(buf) != want {
		return nil, fmt.Errorf("rasterized buffer is %d bytes, expected %d", len(buf), want)
	}
	return buf, nil
}

// Dimensions reports the pixel geometry of the encoded source.
func (p *Processor) Dimensions(data []byte) (int, int, error) {
	img, err := decode(data)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image: %w", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

func coverFit(img image.Image, width, height int) *image.NRGBA {
	return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	// PNG/JPEG/GIF are registered with the stdlib decoder; WebP needs an
	// explicit fallback.
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, nil
	}
	return nil, err
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
