package files

import "time"

// VideoFile is an inventory row for a video discovered during a scan.
// It records where the file sits and what the probe saw; the catalog
// entities reference it through pending validations until a transfer
// lands the file in storage.
type VideoFile struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"sizeBytes"`
	FileHash  string `json:"fileHash,omitempty"`

	ResolutionWidth  int      `json:"resolutionWidth,omitempty"`
	ResolutionHeight int      `json:"resolutionHeight,omitempty"`
	ResolutionLabel  string   `json:"resolutionLabel,omitempty"`
	VideoCodec       string   `json:"videoCodec,omitempty"`
	AudioCodecs      []string `json:"audioCodecs,omitempty"`
	AudioChannels    string   `json:"audioChannels,omitempty"`
	AudioLanguages   []string `json:"audioLanguages,omitempty"`
	DurationSeconds  float64  `json:"durationSeconds,omitempty"`
	Container        string   `json:"container,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Ghost is a cataloged path whose file no longer exists on disk.
type Ghost struct {
	Entity string `json:"entity"`
	ID     int64  `json:"id"`
	Path   string `json:"path"`
}
