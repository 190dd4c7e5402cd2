package tv

import "time"

// Episode is a single episode of a series. An episode row exists only
// once a file has been validated for it; the technical block mirrors
// the file that was transferred.
type Episode struct {
	ID            int64  `json:"id"`
	SeriesID      int64  `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title,omitempty"`
	AirDate       string `json:"airDate,omitempty"`
	Overview      string `json:"overview,omitempty"`

	DurationSeconds int      `json:"durationSeconds,omitempty"`
	ResolutionLabel string   `json:"resolutionLabel,omitempty"`
	VideoCodec      string   `json:"videoCodec,omitempty"`
	AudioCodecs     []string `json:"audioCodecs,omitempty"`
	AudioChannels   string   `json:"audioChannels,omitempty"`
	AudioLanguages  []string `json:"audioLanguages,omitempty"`
	Container       string   `json:"container,omitempty"`
	FileHash        string   `json:"fileHash,omitempty"`

	FilePath string `json:"filePath,omitempty"`
	LinkPath string `json:"linkPath,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
