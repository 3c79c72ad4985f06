// Package image post-processes mural assets before storage: decoding the
// synthesized data URL, stripping metadata, re-encoding, and producing the
// map thumbnail.
package image

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/h2non/bimg"
)

// Mural output bounds. Murals render as wide banners; thumbnails back the
// map pins.
const (
	MuralMaxWidth  = 1920
	ThumbnailWidth = 500
	DefaultQuality = 85
)

// ErrNotDataURL is returned when a mural payload is not a base64 data URL.
var ErrNotDataURL = errors.New("payload is not a base64 data URL")

// Config holds re-encoding settings for mural processing.
type Config struct {
	// Quality for JPEG/WebP encoding (1-100)
	Quality int
	// MaxWidth limits image width (0 = no limit)
	MaxWidth int
	// StripMetadata removes all EXIF/metadata
	StripMetadata bool
}

// DefaultConfig returns the settings used for stored murals.
func DefaultConfig() Config {
	return Config{
		Quality:       DefaultQuality,
		MaxWidth:      MuralMaxWidth,
		StripMetadata: true,
	}
}

// FromDataURL extracts the raw image bytes from a base64 data URL of the
// form data:image/png;base64,....
func FromDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, ErrNotDataURL
	}
	_, payload, ok := strings.Cut(dataURL, ";base64,")
	if !ok {
		return nil, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}
	return data, nil
}

// ProcessMural sanitizes and re-encodes a mural image as JPEG: metadata
// stripped, width bounded, EXIF orientation applied before stripping.
func ProcessMural(data []byte) ([]byte, error) {
	return ProcessWithConfig(data, DefaultConfig())
}

// ProcessWithConfig re-encodes an image with custom settings.
func ProcessWithConfig(data []byte, cfg Config) ([]byte, error) {
	img := bimg.NewImage(data)
	metadata, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata: %w", err)
	}

	options := bimg.Options{
		Quality:       cfg.Quality,
		StripMetadata: cfg.StripMetadata,
		Type:          bimg.JPEG,
	}
	if cfg.MaxWidth > 0 && metadata.Size.Width > cfg.MaxWidth {
		options.Width = cfg.MaxWidth
	}

	out, err := img.Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}
	return out, nil
}

// Thumbnail produces the map-pin rendition of a mural.
func Thumbnail(data []byte) ([]byte, error) {
	img := bimg.NewImage(data)
	out, err := img.Process(bimg.Options{
		Width:         ThumbnailWidth,
		Quality:       DefaultQuality,
		StripMetadata: true,
		Type:          bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate thumbnail: %w", err)
	}
	return out, nil
}

// VerifyNoEXIF checks if the image has EXIF metadata.
// Returns true if no EXIF data is present, false otherwise.
func VerifyNoEXIF(imageBytes []byte) (bool, error) {
	img := bimg.NewImage(imageBytes)
	metadata, err := img.Metadata()
	if err != nil {
		return false, fmt.Errorf("failed to read image metadata: %w", err)
	}

	// bimg metadata will not include EXIF data if it was stripped
	exif := metadata.EXIF
	hasEXIF := exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != ""

	return !hasEXIF, nil
}
