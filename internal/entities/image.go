package entities

import "time"

// Image is a stored binary asset, deduplicated by content hash.
// Data is write-once; Thumbnail transitions absent -> present exactly once.
type Image struct {
	ID          string    `json:"id"`
	ContentHash string    `json:"content_hash"`
	OriginalURL *string   `json:"original_url,omitempty"`
	MimeType    string    `json:"mime_type"`
	Data        []byte    `json:"-"`
	Thumbnail   []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImageMetadata is the listing projection of Image: everything except the
// blob and thumbnail payloads, so listing stays cheap.
type ImageMetadata struct {
	ID           string    `json:"id"`
	ContentHash  string    `json:"content_hash"`
	OriginalURL  *string   `json:"original_url,omitempty"`
	MimeType     string    `json:"mime_type"`
	HasThumbnail bool      `json:"has_thumbnail"`
	CreatedAt    time.Time `json:"created_at"`
}

// StoreResult reports the outcome of an image store. IsNew is false when the
// submitted bytes resolved to an already existing row.
type StoreResult struct {
	ID    string `json:"id"`
	IsNew bool   `json:"is_new"`
}
