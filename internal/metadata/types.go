package metadata

// Source identifies a metadata provider.
type Source string

const (
	SourceTMDB Source = "tmdb"
	SourceTVDB Source = "tvdb"
)

// SearchResult is a provider-neutral search hit. Snapshots of these
// are persisted with match candidates, hence the JSON tags.
type SearchResult struct {
	Source        Source  `json:"source"`
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title,omitempty"`
	Year          int     `json:"year,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	PosterURL     string  `json:"poster_url,omitempty"`
	VoteAverage   float64 `json:"vote_average,omitempty"`
	VoteCount     int     `json:"vote_count,omitempty"`
	Popularity    float64 `json:"popularity,omitempty"`
}

// MediaDetails is the full record for a movie or series. Movie
// runtime is in minutes; for series it is the typical episode
// runtime. SeasonEpisodeCounts maps season number to declared episode
// count and is only filled for series.
type MediaDetails struct {
	Source              Source      `json:"source"`
	ID                  int         `json:"id"`
	Title               string      `json:"title"`
	OriginalTitle       string      `json:"original_title,omitempty"`
	Year                int         `json:"year,omitempty"`
	Overview            string      `json:"overview,omitempty"`
	PosterURL           string      `json:"poster_url,omitempty"`
	Runtime             int         `json:"runtime,omitempty"`
	Genres              []string    `json:"genres,omitempty"`
	Status              string      `json:"status,omitempty"`
	Director            string      `json:"director,omitempty"`
	CreatedBy           string      `json:"created_by,omitempty"`
	Cast                []string    `json:"cast,omitempty"`
	VoteAverage         float64     `json:"vote_average,omitempty"`
	VoteCount           int         `json:"vote_count,omitempty"`
	Popularity          float64     `json:"popularity,omitempty"`
	ImdbID              string      `json:"imdb_id,omitempty"`
	TmdbID              int         `json:"tmdb_id,omitempty"`
	TvdbID              int         `json:"tvdb_id,omitempty"`
	NumberOfSeasons     int         `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes    int         `json:"number_of_episodes,omitempty"`
	SeasonEpisodeCounts map[int]int `json:"season_episode_counts,omitempty"`
	ReleaseDate         string      `json:"release_date,omitempty"`
}

// EpisodeTitle names one episode of a season.
type EpisodeTitle struct {
	Season   int    `json:"season"`
	Episode  int    `json:"episode"`
	Title    string `json:"title"`
	Overview string `json:"overview,omitempty"`
	AirDate  string `json:"air_date,omitempty"`
}

// ExternalIDs are the cross-catalog ids of a series.
type ExternalIDs struct {
	ImdbID string `json:"imdb_id,omitempty"`
	TvdbID int    `json:"tvdb_id,omitempty"`
}

// SourceStatus reports the reachability of one provider.
type SourceStatus struct {
	Source     Source `json:"source"`
	Configured bool   `json:"configured"`
	Err        string `json:"error,omitempty"`
}
