package handler

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/trunov/framehub/internal/repository/storage"
)

func TestParseIntDefault(t *testing.T) {
	tests := []struct {
		in   string
		def  int
		want int
	}{
		{"", 20, 20},
		{"42", 20, 42},
		{"abc", 20, 20},
		{"-3", 20, -3},
	}
	for _, tt := range tests {
		if got := parseIntDefault(tt.in, tt.def); got != tt.want {
			t.Errorf("parseIntDefault(%q, %d) = %d, want %d", tt.in, tt.def, got, tt.want)
		}
	}
}

func TestValidateMimeType(t *testing.T) {
	for _, mime := range []string{"image/png", "image/jpeg", "image/gif", "image/webp"} {
		if err := validateMimeType(mime); err != nil {
			t.Errorf("validateMimeType(%q) = %v, want nil", mime, err)
		}
	}
	for _, mime := range []string{"image/svg+xml", "application/pdf", "text/html", ""} {
		if err := validateMimeType(mime); err == nil {
			t.Errorf("validateMimeType(%q) = nil, want error", mime)
		}
	}
}

func TestWriteStorageErrorUsesTypedStatus(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
	}{
		{storage.CodeUniqueViolation, 409},
		{storage.CodeNotFound, 404},
		{storage.CodeConnectionError, 503},
		{storage.CodeInsertFailed, 500},
		{storage.CodeProcessingError, 500},
		{storage.CodeCheckViolation, 400},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeStorageError(rec, storage.NewError(tt.code, "boom"))

		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.code, rec.Code, tt.wantStatus)
		}

		var body APIError
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: body not json: %v", tt.code, err)
		}
		if body.Code != tt.code {
			t.Errorf("body code = %q, want %q", body.Code, tt.code)
		}
	}
}
