package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxDimension is the hard ceiling on any target frame dimension.
const MaxDimension = 1024

// DefaultMaxFetchBytes bounds remote image downloads (50MB).
const DefaultMaxFetchBytes = 50 << 20

var ErrAmbiguousSource = errors.New("exactly one of image id, url, or data must be set")

// Source identifies the image to transcode. Exactly one field must be set.
type Source struct {
	ImageID string
	URL     string
	Data    []byte
}

func (s Source) validate() error {
	set := 0
	if s.ImageID != "" {
		set++
	}
	if s.URL != "" {
		set++
	}
	if len(s.Data) > 0 {
		set++
	}
	if set != 1 {
		return ErrAmbiguousSource
	}
	return nil
}

// ImageStore is the stored-id source path, backed by the image repository.
type ImageStore interface {
	GetImageData(ctx context.Context, id string) ([]byte, string, error)
}

// Rasterizer turns encoded bytes into a raw RGBA buffer at exact dimensions.
type Rasterizer interface {
	Rasterize(data []byte, width, height int) ([]byte, error)
	Dimensions(data []byte) (int, int, error)
}

type Transcoder struct {
	store         ImageStore
	raster        Rasterizer
	httpClient    *http.Client
	maxFetchBytes int64
}

func New(store ImageStore, raster Rasterizer, httpClient *http.Client, maxFetchBytes int64) *Transcoder {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if maxFetchBytes <= 0 {
		maxFetchBytes = DefaultMaxFetchBytes
	}
	return &Transcoder{
		store:         store,
		raster:        raster,
		httpClient:    httpClient,
		maxFetchBytes: maxFetchBytes,
	}
}

// Transcode resolves the source to encoded bytes, cover-fits them to the
// target geometry, and returns the raw RGBA frame plus the source's original
// pixel dimensions.
func (t *Transcoder) Transcode(ctx context.Context, src Source, width, height int) (frame []byte, srcWidth, srcHeight int, err error) {
	if err := ValidateDimensions(width, height); err != nil {
		return nil, 0, 0, err
	}
	if err := src.validate(); err != nil {
		return nil, 0, 0, err
	}

	data, err := t.fetchSource(ctx, src)
	if err != nil {
		return nil, 0, 0, err
	}

	srcWidth, srcHeight, err = t.raster.Dimensions(data)
	if err != nil {
		return nil, 0, 0, err
	}

	frame, err = t.raster.Rasterize(data, width, height)
	if err != nil {
		return nil, 0, 0, err
	}
	return frame, srcWidth, srcHeight, nil
}

// ValidateDimensions rejects non-positive or pathologically large target
// geometry before any resize is attempted.
func ValidateDimensions(width, height int) error {
	if width < 1 || width > MaxDimension || height < 1 || height > MaxDimension {
		return fmt.Errorf("invalid target dimensions %dx%d: each must be between 1 and %d", width, height, MaxDimension)
	}
	return nil
}

func (t *Transcoder) fetchSource(ctx context.Context, src Source) ([]byte, error) {
	switch {
	case len(src.Data) > 0:
		return src.Data, nil
	case src.ImageID != "":
		data, _, err := t.store.GetImageData(ctx, src.ImageID)
		if err != nil {
			return nil, err
		}
		return data, nil
	default:
		return t.fetchRemote(ctx, src.URL)
	}
}

func (t *Transcoder) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	// Reject an advertised oversize before reading the body.
	if resp.ContentLength > t.maxFetchBytes {
		return nil, fmt.Errorf("Image too large: %d bytes exceeds the %d byte limit", resp.ContentLength, t.maxFetchBytes)
	}

	// Servers that lie about (or omit) Content-Length hit the read cap.
	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > t.maxFetchBytes {
		return nil, fmt.Errorf("Image too large: response exceeds the %d byte limit", t.maxFetchBytes)
	}
	return data, nil
}
