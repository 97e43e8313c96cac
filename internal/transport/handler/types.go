package handler

// UploadImageParams carries the optional metadata accepted with an upload.
type UploadImageParams struct {
	OriginalURL string `validate:"omitempty,url,max=2048"` // images.original_url
}

// CreateDeviceRequest registers a device endpoint.
type CreateDeviceRequest struct {
	Name    string `json:"name" validate:"required,max=64"`
	BaseURL string `json:"base_url" validate:"required,url,max=2048"`
}

// SendFrameRequest selects the frame source for a delivery. Exactly one of
// ImageID or URL must be set for JSON bodies; multipart bodies carry the
// bytes directly.
type SendFrameRequest struct {
	ImageID string `json:"image_id" validate:"omitempty,uuid4"`
	URL     string `json:"url" validate:"omitempty,url,max=2048"`
}

// ControlRequest posts a single control value to a device.
type ControlRequest struct {
	Value int `json:"value" validate:"gte=0,lte=255"`
}
