package movies

import "time"

// Movie is a catalog movie row. The JSON form doubles as the trash
// payload, so every column is represented.
type Movie struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	OriginalTitle   string   `json:"originalTitle,omitempty"`
	SortTitle       string   `json:"sortTitle"`
	Year            int      `json:"year,omitempty"`
	TmdbID          int      `json:"tmdbId,omitempty"`
	ImdbID          string   `json:"imdbId,omitempty"`
	Genres          []string `json:"genres,omitempty"`
	Overview        string   `json:"overview,omitempty"`
	PosterURL       string   `json:"posterUrl,omitempty"`
	Director        string   `json:"director,omitempty"`
	CastMembers     []string `json:"castMembers,omitempty"`
	DurationSeconds int      `json:"durationSeconds,omitempty"`

	// Technical snapshot of the associated file
	ResolutionLabel string   `json:"resolutionLabel,omitempty"`
	VideoCodec      string   `json:"videoCodec,omitempty"`
	AudioCodecs     []string `json:"audioCodecs,omitempty"`
	AudioChannels   string   `json:"audioChannels,omitempty"`
	AudioLanguages  []string `json:"audioLanguages,omitempty"`
	Container       string   `json:"container,omitempty"`
	FileHash        string   `json:"fileHash,omitempty"`

	// Storage and presentation paths, set on transfer
	FilePath string `json:"filePath,omitempty"`
	LinkPath string `json:"linkPath,omitempty"`

	Watched        bool `json:"watched"`
	PersonalRating *int `json:"personalRating,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
