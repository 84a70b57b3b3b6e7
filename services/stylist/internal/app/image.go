package app

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Image is a photo supplied inline as base64 data.
type Image struct {
	Base64    string `json:"base64"`
	MediaType string `json:"mediaType"`
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// decodeImage checks the payload and returns its bytes and media type.
// A missing media type is sniffed from the data.
func (a *App) decodeImage(img Image) ([]byte, string, error) {
	raw := strings.TrimSpace(img.Base64)
	if i := strings.Index(raw, ";base64,"); strings.HasPrefix(raw, "data:") && i > 0 {
		if img.MediaType == "" {
			img.MediaType = raw[len("data:"):i]
		}
		raw = raw[i+len(";base64,"):]
	}
	if raw == "" {
		return nil, "", fmt.Errorf("%w: no data", ErrInvalidImage)
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > a.maxImageBytes+3 {
		return nil, "", fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, a.maxImageBytes)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 || len(data) > a.maxImageBytes {
		return nil, "", fmt.Errorf("%w: size %d out of range", ErrInvalidImage, len(data))
	}
	mediaType := strings.ToLower(strings.TrimSpace(img.MediaType))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	if _, ok := imageExtensions[mediaType]; !ok {
		return nil, "", fmt.Errorf("%w: unsupported media type %q", ErrInvalidImage, mediaType)
	}
	return data, mediaType, nil
}

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
