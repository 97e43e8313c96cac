package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trunov/framehub/internal/transcoder"
)

const (
	// DefaultRequestTimeout bounds each call in the frame pipeline.
	DefaultRequestTimeout = 15 * time.Second
	// DefaultControlTimeout bounds simple control calls.
	DefaultControlTimeout = 10 * time.Second

	// Source images above this edge length still transcode fine but get a
	// non-fatal warning attached to the result.
	recommendedMaxDimension = 256

	maxDisplayDimension = 1024
)

var errInvalidDimensions = errors.New("Invalid display dimensions")

// DisplayConfig is the pixel geometry a device declares at /configuration.
type DisplayConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SendResult reports a frame delivery. A frame is either fully delivered or
// not delivered; Warning carries non-fatal conditions on success.
type SendResult struct {
	Success bool   `json:"success"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FrameTranscoder produces a raw RGBA frame at the device's geometry.
type FrameTranscoder interface {
	Transcode(ctx context.Context, src transcoder.Source, width, height int) ([]byte, int, int, error)
}

// Client orchestrates "send image X to device Y": fetch geometry, transcode,
// post the frame. Every network call carries an independent timeout.
type Client struct {
	httpClient     *http.Client
	trans          FrameTranscoder
	requestTimeout time.Duration
	controlTimeout time.Duration
}

func NewClient(trans FrameTranscoder, requestTimeout, controlTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	if controlTimeout <= 0 {
		controlTimeout = DefaultControlTimeout
	}
	return &Client{
		httpClient:     &http.Client{},
		trans:          trans,
		requestTimeout: requestTimeout,
		controlTimeout: controlTimeout,
	}
}

// SendFrame runs the delivery pipeline to completion or to the first failed
// stage. There is no partial-success state.
func (c *Client) SendFrame(ctx context.Context, baseURL string, src transcoder.Source) SendResult {
	base := normalizeBaseURL(baseURL)

	cfg, err := c.GetDisplayConfig(ctx, base)
	if err != nil {
		return SendResult{Error: c.errMessage(err)}
	}

	frameCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	frame, srcWidth, srcHeight, err := c.trans.Transcode(frameCtx, src, cfg.Width, cfg.Height)
	if err != nil {
		return SendResult{Error: c.errMessage(err)}
	}

	var warning string
	if srcWidth > recommendedMaxDimension || srcHeight > recommendedMaxDimension {
		warning = fmt.Sprintf("Source image is %dx%d which exceeds the recommended maximum of %dx%d",
			srcWidth, srcHeight, recommendedMaxDimension, recommendedMaxDimension)
	}

	if err := c.postFrame(ctx, base, frame); err != nil {
		return SendResult{Error: c.errMessage(err)}
	}

	log.Info().
		Str("device", base).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Msg("frame delivered")

	return SendResult{Success: true, Warning: warning}
}

// GetDisplayConfig fetches and validates the device's declared geometry.
func (c *Client) GetDisplayConfig(ctx context.Context, baseURL string) (DisplayConfig, error) {
	base := normalizeBaseURL(baseURL)

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var cfg DisplayConfig
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/configuration", nil)
	if err != nil {
		return cfg, fmt.Errorf("Failed to get display config: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return cfg, err
		}
		return cfg, fmt.Errorf("Failed to get display config: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cfg, fmt.Errorf("Failed to get display config: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("Failed to get display config: %v", err)
	}

	if cfg.Width < 1 || cfg.Width > maxDisplayDimension ||
		cfg.Height < 1 || cfg.Height > maxDisplayDimension {
		return cfg, errInvalidDimensions
	}
	return cfg, nil
}

func (c *Client) postFrame(ctx context.Context, base string, frame []byte) error {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("frame", "frame.raw")
	if err != nil {
		return fmt.Errorf("Failed to post frame: %v", err)
	}
	if _, err := part.Write(frame); err != nil {
		return fmt.Errorf("Failed to post frame: %v", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("Failed to post frame: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/frame", body)
	if err != nil {
		return fmt.Errorf("Failed to post frame: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return err
		}
		return fmt.Errorf("Failed to post frame: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Failed to post frame: status %d", resp.StatusCode)
	}
	return nil
}

// PostControl posts a single control value (brightness, temperature) to the
// device. These simple calls run under the shorter control timeout.
func (c *Client) PostControl(ctx context.Context, baseURL, endpoint string, value int) error {
	base := normalizeBaseURL(baseURL)

	ctx, cancel := context.WithTimeout(ctx, c.controlTimeout)
	defer cancel()

	payload, _ := json.Marshal(map[string]int{"value": value})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/"+strings.TrimPrefix(endpoint, "/"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create control request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%s", c.timeoutMessage(c.controlTimeout))
		}
		return fmt.Errorf("control request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("control request failed: status %d", resp.StatusCode)
	}
	return nil
}

// errMessage maps a pipeline error to its caller-facing string. A timeout at
// any stage yields the same uniform message.
func (c *Client) errMessage(err error) string {
	if isTimeout(err) {
		return c.timeoutMessage(c.requestTimeout)
	}
	return err.Error()
}

func (c *Client) timeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("Request timed out after %d seconds", int(timeout.Seconds()))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// normalizeBaseURL strips trailing slashes so sub-paths join cleanly.
func normalizeBaseURL(base string) string {
	return strings.TrimRight(base, "/")
}
