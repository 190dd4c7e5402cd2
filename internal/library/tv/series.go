package tv

import "time"

// Series is a TV series tracked by the catalog. The JSON form doubles
// as the trash payload.
type Series struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	OriginalTitle  string    `json:"originalTitle,omitempty"`
	SortTitle      string    `json:"sortTitle"`
	Year           int       `json:"year,omitempty"`
	TvdbID         int       `json:"tvdbId,omitempty"`
	TmdbID         int       `json:"tmdbId,omitempty"`
	ImdbID         string    `json:"imdbId,omitempty"`
	Genres         []string  `json:"genres,omitempty"`
	Overview       string    `json:"overview,omitempty"`
	PosterURL      string    `json:"posterUrl,omitempty"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CastMembers    []string  `json:"castMembers,omitempty"`
	Watched        bool      `json:"watched"`
	PersonalRating *int      `json:"personalRating,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SeriesTrashPayload is the trash payload for a series. Episode rows go
// away with the series through the foreign key cascade, so the payload
// carries them explicitly to make restore whole.
type SeriesTrashPayload struct {
	Series   *Series    `json:"series"`
	Episodes []*Episode `json:"episodes,omitempty"`
}
