package tvdb

// LoginRequest is the request body for TVDB authentication.
type LoginRequest struct {
	APIKey string `json:"apikey"`
}

// LoginResponse is the response from TVDB authentication.
type LoginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

// SearchResponse is the response from TVDB search.
type SearchResponse struct {
	Status string         `json:"status"`
	Data   []SearchResult `json:"data"`
}

// SearchResult is a single search hit. TVDB returns ids and years as
// strings here.
type SearchResult struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Year      string            `json:"year"`
	Overview  string            `json:"overview"`
	Status    string            `json:"status"`
	ImageURL  string            `json:"image_url"`
	Thumbnail string            `json:"thumbnail"`
	TvdbID    string            `json:"tvdb_id"`
	RemoteIDs []RemoteID        `json:"remote_ids"`
	Overviews map[string]string `json:"overviews"`
}

// RemoteID links a TVDB record to an external catalog.
type RemoteID struct {
	ID         string `json:"id"`
	SourceName string `json:"sourceName"`
}

// SeriesResponse is the response from the extended series endpoint.
type SeriesResponse struct {
	Status string       `json:"status"`
	Data   SeriesDetail `json:"data"`
}

// SeriesDetail is the extended series record.
type SeriesDetail struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	Overview       string         `json:"overview"`
	Year           string         `json:"year"`
	FirstAired     string         `json:"firstAired"`
	Image          string         `json:"image"`
	AverageRuntime int            `json:"averageRuntime"`
	Score          float64        `json:"score"`
	Status         SeriesStatus   `json:"status"`
	Genres         []Genre        `json:"genres"`
	RemoteIDs      []RemoteID     `json:"remoteIds"`
	Seasons        []SeasonRecord `json:"seasons"`
}

// SeriesStatus is the status block of a series record.
type SeriesStatus struct {
	Name string `json:"name"`
}

// Genre is a genre entry.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SeasonRecord is a season summary inside the extended series record.
type SeasonRecord struct {
	ID     int        `json:"id"`
	Number int        `json:"number"`
	Type   SeasonType `json:"type"`
}

// SeasonType labels a season ordering, e.g. "official" or "dvd".
type SeasonType struct {
	Type string `json:"type"`
}

// EpisodesResponse is the response from the series episodes endpoint.
type EpisodesResponse struct {
	Status string `json:"status"`
	Data   struct {
		Series   SeriesDetail `json:"series"`
		Episodes []Episode    `json:"episodes"`
	} `json:"data"`
	Links Links `json:"links"`
}

// Episode is a single episode record.
type Episode struct {
	ID           int    `json:"id"`
	SeasonNumber int    `json:"seasonNumber"`
	Number       int    `json:"number"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	Aired        string `json:"aired"`
	Runtime      int    `json:"runtime"`
}

// Links carries pagination info.
type Links struct {
	Total int `json:"total_items"`
}

// ErrorResponse is an error payload from the TVDB API.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NormalizedSeriesResult is a series in provider-neutral form. Search
// fills the identity fields; GetSeries adds runtime, genres and the
// cross-catalog ids mined from remoteIds.
type NormalizedSeriesResult struct {
	ID              int
	Title           string
	Year            int
	Overview        string
	PosterURL       string
	Runtime         int
	Genres          []string
	Status          string
	ImdbID          string
	TmdbID          int
	FirstAirDate    string
	NumberOfSeasons int
}

// NormalizedEpisodeResult is an episode in provider-neutral form.
type NormalizedEpisodeResult struct {
	SeasonNumber  int
	EpisodeNumber int
	Title         string
	Overview      string
	AirDate       string
	Runtime       int
}
