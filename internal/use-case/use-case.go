package use_case

import (
	"context"
	"errors"
	"fmt"

	"github.com/trunov/framehub/internal/device"
	"github.com/trunov/framehub/internal/entities"
	"github.com/trunov/framehub/internal/registry"
	"github.com/trunov/framehub/internal/repository/storage"
	"github.com/trunov/framehub/internal/transcoder"
)

const maxPreviewDimension = 1024

var (
	ErrInvalidDimensions = errors.New("width and height must each be between 1 and 1024")
	ErrDeviceNotFound    = errors.New("device not found")
)

type Storage interface {
	InsertImage(ctx context.Context, data []byte, mimeType string, originalURL string) (entities.StoreResult, error)
	GetImage(ctx context.Context, id string) (*entities.Image, error)
	ListImages(ctx context.Context, limit, offset int) ([]entities.ImageMetadata, error)
	GetThumbnail(ctx context.Context, id string) ([]byte, error)
	GetImageData(ctx context.Context, id string) ([]byte, string, error)
}

type Previewer interface {
	Preview(data []byte, width, height int) ([]byte, error)
}

type DeviceRegistry interface {
	Get(ctx context.Context, id string) (*registry.Device, error)
}

type DeviceClient interface {
	SendFrame(ctx context.Context, baseURL string, src transcoder.Source) device.SendResult
	PostControl(ctx context.Context, baseURL, endpoint string, value int) error
}

type useCase struct {
	storage   Storage
	previews  Previewer
	devices   DeviceRegistry
	devClient DeviceClient
}

func New(storage Storage, previews Previewer, devices DeviceRegistry, devClient DeviceClient) *useCase {
	return &useCase{
		storage:   storage,
		previews:  previews,
		devices:   devices,
		devClient: devClient,
	}
}

func (c *useCase) UploadImage(ctx context.Context, data []byte, mimeType string, originalURL string) (entities.StoreResult, error) {
	return c.storage.InsertImage(ctx, data, mimeType, originalURL)
}

func (c *useCase) GetImage(ctx context.Context, id string) (*entities.Image, error) {
	return c.storage.GetImage(ctx, id)
}

func (c *useCase) ListImages(ctx context.Context, limit, offset int) ([]entities.ImageMetadata, error) {
	return c.storage.ListImages(ctx, limit, offset)
}

func (c *useCase) GetThumbnail(ctx context.Context, id string) ([]byte, error) {
	return c.storage.GetThumbnail(ctx, id)
}

// GetPreview computes a cover-cropped derivative at the exact requested
// dimensions. Out-of-range dimensions are rejected before storage is touched.
func (c *useCase) GetPreview(ctx context.Context, id string, width, height int) ([]byte, error) {
	if width < 1 || width > maxPreviewDimension || height < 1 || height > maxPreviewDimension {
		return nil, ErrInvalidDimensions
	}

	data, _, err := c.storage.GetImageData(ctx, id)
	if err != nil {
		return nil, err
	}

	preview, err := c.previews.Preview(data, width, height)
	if err != nil {
		return nil, storage.NewError(storage.CodeProcessingError,
			fmt.Sprintf("failed to generate preview: %v", err))
	}
	return preview, nil
}

// SendToDevice resolves the registered device and runs the delivery pipeline.
func (c *useCase) SendToDevice(ctx context.Context, deviceID string, src transcoder.Source) (device.SendResult, error) {
	dev, err := c.devices.Get(ctx, deviceID)
	if err != nil {
		return device.SendResult{}, err
	}
	if dev == nil {
		return device.SendResult{}, ErrDeviceNotFound
	}
	return c.devClient.SendFrame(ctx, dev.BaseURL, src), nil
}

// SetControl posts a single control value to the registered device.
func (c *useCase) SetControl(ctx context.Context, deviceID, endpoint string, value int) error {
	dev, err := c.devices.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if dev == nil {
		return ErrDeviceNotFound
	}
	return c.devClient.PostControl(ctx, dev.BaseURL, endpoint, value)
}
