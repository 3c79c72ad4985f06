// Package location provides models and repositories for poem locations
// pinned on the archive map.
package location

import "time"

// MuralType identifies what kind of mural asset a location carries.
const (
	MuralTypeImage = "image"
	MuralTypeVideo = "video"
)

// CanvasWidth and CanvasHeight define the fixed logical canvas that all
// location coordinates live in. Positions are logical units, not geographic
// degrees.
const (
	CanvasWidth  = 800.0
	CanvasHeight = 600.0
)

// PreviewLength is the number of runes of the full poem shown to viewers
// who have not unlocked the location.
const PreviewLength = 60

// Location represents a point of interest on the archive map with its
// associated poem content and unlock price.
type Location struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Description string  `json:"description,omitempty"`
	Poet        string  `json:"poet"`

	// Preview is the blurred teaser shown before unlock.
	Preview  string `json:"preview"`
	FullPoem string `json:"fullPoem,omitempty"`

	// Price is the unlock cost in wallet units.
	Price int64 `json:"price"`

	// Media assets. MuralURL may point at an uploaded video or an
	// AI-generated image depending on MuralType.
	AudioURL     string `json:"audioUrl,omitempty"`
	MuralURL     string `json:"muralUrl,omitempty"`
	MuralType    string `json:"muralType,omitempty"`
	PoetImageURL string `json:"poetImageUrl,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	DriveFileID  string `json:"drive_file_id,omitempty"`

	// Provenance.
	IsUserSubmitted bool       `json:"isUserSubmitted,omitempty"`
	UserID          string     `json:"user_id,omitempty"`
	PublishDate     *time.Time `json:"publishDate,omitempty"`

	Views int64 `json:"views"`
}

// PreviewOf returns the unlock teaser for a poem: its first PreviewLength
// runes followed by an ellipsis. An empty poem yields an ellipsis-only
// preview.
func PreviewOf(poem string) string {
	runes := []rune(poem)
	if len(runes) > PreviewLength {
		runes = runes[:PreviewLength]
	}
	return string(runes) + "..."
}

// DriveThumbnailURL builds the public thumbnail URL for an external drive
// file reference.
func DriveThumbnailURL(fileID string) string {
	return "https://drive.google.com/thumbnail?id=" + fileID + "&sz=w500"
}
