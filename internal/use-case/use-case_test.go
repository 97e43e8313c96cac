package use_case

import (
	"context"
	"errors"
	"testing"

	"github.com/trunov/framehub/internal/device"
	"github.com/trunov/framehub/internal/entities"
	"github.com/trunov/framehub/internal/registry"
	"github.com/trunov/framehub/internal/repository/storage"
	"github.com/trunov/framehub/internal/transcoder"
)

type fakeStorage struct {
	Storage
	getDataCalls int
	data         []byte
	dataErr      error
}

func (f *fakeStorage) GetImageData(ctx context.Context, id string) ([]byte, string, error) {
	f.getDataCalls++
	if f.dataErr != nil {
		return nil, "", f.dataErr
	}
	return f.data, "image/png", nil
}

func (f *fakeStorage) InsertImage(ctx context.Context, data []byte, mimeType string, originalURL string) (entities.StoreResult, error) {
	return entities.StoreResult{ID: "stored-id", IsNew: true}, nil
}

type fakePreviewer struct {
	out []byte
	err error
}

func (f *fakePreviewer) Preview(data []byte, width, height int) ([]byte, error) {
	return f.out, f.err
}

type fakeRegistry struct {
	dev *registry.Device
	err error
}

func (f *fakeRegistry) Get(ctx context.Context, id string) (*registry.Device, error) {
	return f.dev, f.err
}

type fakeDeviceClient struct {
	gotBaseURL string
	result     device.SendResult
}

func (f *fakeDeviceClient) SendFrame(ctx context.Context, baseURL string, src transcoder.Source) device.SendResult {
	f.gotBaseURL = baseURL
	return f.result
}

func (f *fakeDeviceClient) PostControl(ctx context.Context, baseURL, endpoint string, value int) error {
	f.gotBaseURL = baseURL
	return nil
}

func TestGetPreviewRejectsDimensionsBeforeStorage(t *testing.T) {
	store := &fakeStorage{}
	uc := New(store, &fakePreviewer{}, &fakeRegistry{}, &fakeDeviceClient{})

	tests := [][2]int{{0, 100}, {100, 0}, {-1, 50}, {1025, 50}, {50, 9999}}
	for _, dims := range tests {
		_, err := uc.GetPreview(context.Background(), "some-id", dims[0], dims[1])
		if !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("dims %dx%d: expected ErrInvalidDimensions, got %v", dims[0], dims[1], err)
		}
	}
	if store.getDataCalls != 0 {
		t.Errorf("storage touched %d times before dimension validation", store.getDataCalls)
	}
}

func TestGetPreviewHappyPath(t *testing.T) {
	store := &fakeStorage{data: []byte{1, 2, 3}}
	uc := New(store, &fakePreviewer{out: []byte("jpeg")}, &fakeRegistry{}, &fakeDeviceClient{})

	got, err := uc.GetPreview(context.Background(), "some-id", 64, 32)
	if err != nil {
		t.Fatalf("GetPreview: %v", err)
	}
	if string(got) != "jpeg" {
		t.Errorf("unexpected preview payload %q", got)
	}
}

func TestGetPreviewProcessingError(t *testing.T) {
	store := &fakeStorage{data: []byte("not an image")}
	uc := New(store, &fakePreviewer{err: errors.New("decode failed")}, &fakeRegistry{}, &fakeDeviceClient{})

	_, err := uc.GetPreview(context.Background(), "some-id", 64, 32)

	var typed *storage.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected typed storage error, got %v", err)
	}
	if typed.Code != storage.CodeProcessingError {
		t.Errorf("code = %q, want %q", typed.Code, storage.CodeProcessingError)
	}
	if typed.Status != 500 {
		t.Errorf("status = %d, want 500", typed.Status)
	}
}

func TestGetPreviewNotFoundPropagates(t *testing.T) {
	notFound := storage.NewError(storage.CodeNotFound, "image not found: some-id")
	store := &fakeStorage{dataErr: notFound}
	uc := New(store, &fakePreviewer{}, &fakeRegistry{}, &fakeDeviceClient{})

	_, err := uc.GetPreview(context.Background(), "some-id", 64, 32)
	if !errors.Is(err, notFound) {
		t.Errorf("expected not-found error to propagate, got %v", err)
	}
}

func TestSendToDeviceUnknownDevice(t *testing.T) {
	uc := New(&fakeStorage{}, &fakePreviewer{}, &fakeRegistry{dev: nil}, &fakeDeviceClient{})

	_, err := uc.SendToDevice(context.Background(), "missing", transcoder.Source{Data: []byte{1}})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSendToDeviceResolvesBaseURL(t *testing.T) {
	client := &fakeDeviceClient{result: device.SendResult{Success: true}}
	reg := &fakeRegistry{dev: &registry.Device{ID: "d1", Name: "lobby", BaseURL: "http://10.0.0.5:8080"}}
	uc := New(&fakeStorage{}, &fakePreviewer{}, reg, client)

	result, err := uc.SendToDevice(context.Background(), "d1", transcoder.Source{Data: []byte{1}})
	if err != nil {
		t.Fatalf("SendToDevice: %v", err)
	}
	if !result.Success {
		t.Error("expected result passthrough")
	}
	if client.gotBaseURL != "http://10.0.0.5:8080" {
		t.Errorf("client called with base %q", client.gotBaseURL)
	}
}

func TestSetControlUnknownDevice(t *testing.T) {
	uc := New(&fakeStorage{}, &fakePreviewer{}, &fakeRegistry{}, &fakeDeviceClient{})

	err := uc.SetControl(context.Background(), "missing", "brightness", 100)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}
