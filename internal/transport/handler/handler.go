package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/trunov/framehub/internal/config"
	"github.com/trunov/framehub/internal/device"
	"github.com/trunov/framehub/internal/entities"
	"github.com/trunov/framehub/internal/registry"
	"github.com/trunov/framehub/internal/transcoder"
	use_case "github.com/trunov/framehub/internal/use-case"
)

type UseCase interface {
	UploadImage(ctx context.Context, data []byte, mimeType string, originalURL string) (entities.StoreResult, error)
	GetImage(ctx context.Context, id string) (*entities.Image, error)
	ListImages(ctx context.Context, limit, offset int) ([]entities.ImageMetadata, error)
	GetThumbnail(ctx context.Context, id string) ([]byte, error)
	GetPreview(ctx context.Context, id string, width, height int) ([]byte, error)
	SendToDevice(ctx context.Context, deviceID string, src transcoder.Source) (device.SendResult, error)
	SetControl(ctx context.Context, deviceID, endpoint string, value int) error
}

type DeviceRegistry interface {
	Add(ctx context.Context, name, baseURL string) (registry.Device, error)
	List(ctx context.Context) ([]registry.Device, error)
	Remove(ctx context.Context, id string) error
}

type Handler struct {
	useCase   UseCase
	devices   DeviceRegistry
	cfg       *config.Config
	validator *validator.Validate
}

func New(useCase UseCase, devices DeviceRegistry, cfg *config.Config) *Handler {
	return &Handler{
		useCase:   useCase,
		devices:   devices,
		cfg:       cfg,
		validator: validator.New(),
	}
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	maxMultipartMem := h.cfg.Upload.MaxMultipartMemoryMB
	if err := r.ParseMultipartForm(maxMultipartMem << 20); err != nil {
		writeMultipartError(w, err)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		if strings.Contains(err.Error(), "no such file") {
			writeJSONError(w, `missing image file: form field key should be "image"`, http.StatusBadRequest)
		} else {
			writeJSONError(w, "an error occurred while uploading the file: "+err.Error(), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	params := UploadImageParams{
		OriginalURL: r.Form.Get("originalUrl"),
	}
	if err := h.validator.Struct(params); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
		return
	}

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err = file.Seek(0, 0); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	fileType := mime.String()
	if err := validateMimeType(fileType); err != nil {
		writeJSONError(w, fmt.Sprintf("unsupported file type: %s", fileType), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result, err := h.useCase.UploadImage(r.Context(), data, fileType, params.OriginalURL)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	writeJSON(w, result, status)
}

func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	items, err := h.useCase.ListImages(r.Context(), limit, offset)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, items, http.StatusOK)
}

func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	img, err := h.useCase.GetImage(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if img == nil {
		writeJSONError(w, fmt.Sprintf("image not found: %s", id), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	_, _ = w.Write(img.Data)
}

func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	thumb, err := h.useCase.GetThumbnail(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if thumb == nil {
		writeJSONError(w, "thumbnail unavailable", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(thumb)
}

func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	width, werr := strconv.Atoi(r.URL.Query().Get("width"))
	height, herr := strconv.Atoi(r.URL.Query().Get("height"))
	if werr != nil || herr != nil {
		writeJSONError(w, "width and height query parameters are required", http.StatusBadRequest)
		return
	}

	preview, err := h.useCase.GetPreview(r.Context(), id, width, height)
	if err != nil {
		if errors.Is(err, use_case.ErrInvalidDimensions) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeStorageError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(preview)
}

func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
		return
	}

	dev, err := h.devices.Add(r.Context(), req.Name, req.BaseURL)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidBaseURL) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dev, http.StatusCreated)
}

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, devices, http.StatusOK)
}

func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.devices.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendFrame accepts either a JSON body selecting a stored image or remote
// url, or a multipart upload carrying the image bytes directly.
func (h *Handler) SendFrame(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	src, ok := h.frameSource(w, r)
	if !ok {
		return
	}

	result, err := h.useCase.SendToDevice(r.Context(), deviceID, src)
	if err != nil {
		if errors.Is(err, use_case.ErrDeviceNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, result, http.StatusOK)
}

func (h *Handler) frameSource(w http.ResponseWriter, r *http.Request) (transcoder.Source, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)
		if err := r.ParseMultipartForm(h.cfg.Upload.MaxMultipartMemoryMB << 20); err != nil {
			writeMultipartError(w, err)
			return transcoder.Source{}, false
		}

		file, _, err := r.FormFile("image")
		if err != nil {
			writeJSONError(w, `missing image file: form field key should be "image"`, http.StatusBadRequest)
			return transcoder.Source{}, false
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return transcoder.Source{}, false
		}
		return transcoder.Source{Data: data}, true
	}

	var req SendFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return transcoder.Source{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
		return transcoder.Source{}, false
	}
	if (req.ImageID == "") == (req.URL == "") {
		writeJSONError(w, "exactly one of image_id or url must be provided", http.StatusBadRequest)
		return transcoder.Source{}, false
	}

	return transcoder.Source{ImageID: req.ImageID, URL: req.URL}, true
}

// SetControl forwards a single control value (brightness, temperature) to
// the device's matching endpoint.
func (h *Handler) SetControl(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := chi.URLParam(r, "id")

		var req ControlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.validator.Struct(req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
			return
		}

		if err := h.useCase.SetControl(r.Context(), deviceID, endpoint, req.Value); err != nil {
			if errors.Is(err, use_case.ErrDeviceNotFound) {
				writeJSONError(w, err.Error(), http.StatusNotFound)
				return
			}
			writeJSONError(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
