package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/trunov/framehub/internal/config"
	"github.com/trunov/framehub/internal/device"
	"github.com/trunov/framehub/internal/entities"
	"github.com/trunov/framehub/internal/registry"
	"github.com/trunov/framehub/internal/repository/storage"
	"github.com/trunov/framehub/internal/transcoder"
	use_case "github.com/trunov/framehub/internal/use-case"
)

type fakeUseCase struct {
	previewErr error
	sendResult device.SendResult
	sendErr    error
	gotSource  transcoder.Source
	metadata   []entities.ImageMetadata
}

func (f *fakeUseCase) UploadImage(ctx context.Context, data []byte, mimeType string, originalURL string) (entities.StoreResult, error) {
	return entities.StoreResult{ID: "new-id", IsNew: true}, nil
}

func (f *fakeUseCase) GetImage(ctx context.Context, id string) (*entities.Image, error) {
	return nil, nil
}

func (f *fakeUseCase) ListImages(ctx context.Context, limit, offset int) ([]entities.ImageMetadata, error) {
	return f.metadata, nil
}

func (f *fakeUseCase) GetThumbnail(ctx context.Context, id string) ([]byte, error) {
	return nil, storage.NewError(storage.CodeNotFound, "image not found: "+id)
}

func (f *fakeUseCase) GetPreview(ctx context.Context, id string, width, height int) ([]byte, error) {
	if f.previewErr != nil {
		return nil, f.previewErr
	}
	return []byte("jpeg"), nil
}

func (f *fakeUseCase) SendToDevice(ctx context.Context, deviceID string, src transcoder.Source) (device.SendResult, error) {
	f.gotSource = src
	return f.sendResult, f.sendErr
}

func (f *fakeUseCase) SetControl(ctx context.Context, deviceID, endpoint string, value int) error {
	return nil
}

type fakeDevices struct{}

func (fakeDevices) Add(ctx context.Context, name, baseURL string) (registry.Device, error) {
	return registry.Device{ID: "d1", Name: name, BaseURL: baseURL}, nil
}
func (fakeDevices) List(ctx context.Context) ([]registry.Device, error) { return nil, nil }
func (fakeDevices) Remove(ctx context.Context, id string) error         { return nil }

func testRouter(uc UseCase) chi.Router {
	cfg := config.NewConfig()
	_ = cfg.Read("nonexistent.json") // defaults only

	h := New(uc, fakeDevices{}, cfg)

	r := chi.NewRouter()
	r.Get("/api/images/{id}/preview", h.GetPreview)
	r.Get("/api/images/{id}/thumbnail", h.GetThumbnail)
	r.Post("/api/devices/{id}/frame", h.SendFrame)
	r.Post("/api/devices", h.CreateDevice)
	return r
}

func TestGetPreviewMissingParams(t *testing.T) {
	r := testRouter(&fakeUseCase{})

	req := httptest.NewRequest(http.MethodGet, "/api/images/abc/preview", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetPreviewInvalidDimensions(t *testing.T) {
	r := testRouter(&fakeUseCase{previewErr: use_case.ErrInvalidDimensions})

	req := httptest.NewRequest(http.MethodGet, "/api/images/abc/preview?width=0&height=100", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetThumbnailNotFoundStatus(t *testing.T) {
	r := testRouter(&fakeUseCase{})

	req := httptest.NewRequest(http.MethodGet, "/api/images/abc/thumbnail", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSendFrameRequiresExactlyOneSource(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"image_id":"9f3c9a4e-8a1c-4c44-b7a1-2f9d2f6a1b11","url":"http://example.com/a.png"}`,
	}
	for _, body := range bodies {
		r := testRouter(&fakeUseCase{})
		req := httptest.NewRequest(http.MethodPost, "/api/devices/d1/frame", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSendFrameUnknownDevice(t *testing.T) {
	r := testRouter(&fakeUseCase{sendErr: use_case.ErrDeviceNotFound})

	req := httptest.NewRequest(http.MethodPost, "/api/devices/missing/frame",
		strings.NewReader(`{"url":"http://example.com/a.png"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSendFramePassesResultThrough(t *testing.T) {
	uc := &fakeUseCase{sendResult: device.SendResult{
		Success: true,
		Warning: "Source image is 1920x1080 which exceeds the recommended maximum of 256x256",
	}}
	r := testRouter(uc)

	req := httptest.NewRequest(http.MethodPost, "/api/devices/d1/frame",
		strings.NewReader(`{"url":"http://example.com/a.png"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result device.SendResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("response not json: %v", err)
	}
	if !result.Success || !strings.Contains(result.Warning, "1920x1080") {
		t.Errorf("unexpected result %+v", result)
	}
	if uc.gotSource.URL != "http://example.com/a.png" {
		t.Errorf("source url = %q", uc.gotSource.URL)
	}
}

func TestCreateDeviceValidation(t *testing.T) {
	r := testRouter(&fakeUseCase{})

	req := httptest.NewRequest(http.MethodPost, "/api/devices",
		strings.NewReader(`{"name":"lobby","base_url":"not-a-url"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
