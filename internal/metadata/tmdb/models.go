package tmdb

// SearchMoviesResponse is the response from TMDB movie search.
type SearchMoviesResponse struct {
	Page         int           `json:"page"`
	Results      []MovieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// MovieResult is a movie from TMDB search results.
type MovieResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	PosterPath    *string `json:"poster_path"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Popularity    float64 `json:"popularity"`
	Adult         bool    `json:"adult"`
	GenreIDs      []int   `json:"genre_ids"`
}

// MovieDetails is the detailed movie info from TMDB.
type MovieDetails struct {
	ID            int          `json:"id"`
	Title         string       `json:"title"`
	OriginalTitle string       `json:"original_title"`
	Overview      string       `json:"overview"`
	ReleaseDate   string       `json:"release_date"`
	PosterPath    *string      `json:"poster_path"`
	VoteAverage   float64      `json:"vote_average"`
	VoteCount     int          `json:"vote_count"`
	Popularity    float64      `json:"popularity"`
	Runtime       int          `json:"runtime"`
	Status        string       `json:"status"`
	ImdbID        string       `json:"imdb_id"`
	Genres        []Genre      `json:"genres"`
	ExternalIDs   *ExternalIDs `json:"external_ids,omitempty"`
	Credits       *Credits     `json:"credits,omitempty"`
}

// SearchTVResponse is the response from TMDB TV search.
type SearchTVResponse struct {
	Page         int        `json:"page"`
	Results      []TVResult `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

// TVResult is a TV series from TMDB search results.
type TVResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   *string `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
	GenreIDs     []int   `json:"genre_ids"`
}

// TVDetails is the detailed TV series info from TMDB.
type TVDetails struct {
	ID               int          `json:"id"`
	Name             string       `json:"name"`
	OriginalName     string       `json:"original_name"`
	Overview         string       `json:"overview"`
	FirstAirDate     string       `json:"first_air_date"`
	PosterPath       *string      `json:"poster_path"`
	VoteAverage      float64      `json:"vote_average"`
	VoteCount        int          `json:"vote_count"`
	Popularity       float64      `json:"popularity"`
	Status           string       `json:"status"`
	Genres           []Genre      `json:"genres"`
	CreatedBy        []Creator    `json:"created_by"`
	NumberOfSeasons  int          `json:"number_of_seasons"`
	NumberOfEpisodes int          `json:"number_of_episodes"`
	EpisodeRunTime   []int        `json:"episode_run_time"`
	Seasons          []Season     `json:"seasons"`
	ExternalIDs      *ExternalIDs `json:"external_ids,omitempty"`
	Credits          *Credits     `json:"credits,omitempty"`
}

// Creator is a series creator from TMDB.
type Creator struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Credits is the credits block appended to detail responses.
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// CastMember is a cast entry from TMDB credits.
type CastMember struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// CrewMember is a crew entry from TMDB credits.
type CrewMember struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// Genre represents a genre from TMDB.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Season represents a TV season from TMDB series details.
type Season struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	AirDate      string `json:"air_date"`
	EpisodeCount int    `json:"episode_count"`
	SeasonNumber int    `json:"season_number"`
}

// ExternalIDs contains external IDs from TMDB.
type ExternalIDs struct {
	ImdbID     string `json:"imdb_id"`
	TvdbID     int    `json:"tvdb_id"`
	WikidataID string `json:"wikidata_id"`
}

// SeasonDetails is the detailed season info from the
// /tv/{id}/season/{number} endpoint.
type SeasonDetails struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Overview     string           `json:"overview"`
	AirDate      string           `json:"air_date"`
	SeasonNumber int              `json:"season_number"`
	Episodes     []EpisodeDetails `json:"episodes"`
}

// EpisodeDetails is the episode info from TMDB season details.
type EpisodeDetails struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
	EpisodeNumber int    `json:"episode_number"`
	SeasonNumber  int    `json:"season_number"`
	Runtime       int    `json:"runtime"`
}

// FindResponse is the response from the /find/{external_id} endpoint.
type FindResponse struct {
	MovieResults []MovieResult `json:"movie_results"`
	TVResults    []TVResult    `json:"tv_results"`
}

// ErrorResponse is an error from the TMDB API.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}

// NormalizedMovieResult is the normalized movie result returned by the
// client. Search results fill the identity and scoring fields; details
// add runtime, genres and external ids.
type NormalizedMovieResult struct {
	ID            int
	Title         string
	OriginalTitle string
	Year          int
	Overview      string
	PosterURL     string
	Runtime       int
	Genres        []string
	Status        string
	Director      string
	Cast          []string
	ImdbID        string
	VoteAverage   float64
	VoteCount     int
	Popularity    float64
	ReleaseDate   string
}

// NormalizedSeriesResult is the normalized series result returned by
// the client. SeasonEpisodeCounts maps season number to declared
// episode count and is only filled by GetSeries.
type NormalizedSeriesResult struct {
	ID                  int
	Title               string
	OriginalTitle       string
	Year                int
	Overview            string
	PosterURL           string
	Runtime             int
	Genres              []string
	Status              string
	CreatedBy           string
	Cast                []string
	ImdbID              string
	TvdbID              int
	VoteAverage         float64
	VoteCount           int
	Popularity          float64
	FirstAirDate        string
	NumberOfSeasons     int
	NumberOfEpisodes    int
	SeasonEpisodeCounts map[int]int
}

// NormalizedEpisodeResult is the normalized episode result.
type NormalizedEpisodeResult struct {
	SeasonNumber  int
	EpisodeNumber int
	Title         string
	Overview      string
	AirDate       string
	Runtime       int
}

// NormalizedExternalIDs is the normalized external id pair for a series.
type NormalizedExternalIDs struct {
	ImdbID string
	TvdbID int
}
