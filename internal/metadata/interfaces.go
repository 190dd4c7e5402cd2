package metadata

import (
	"context"

	"github.com/mediatheque/mediatheque/internal/metadata/tmdb"
	"github.com/mediatheque/mediatheque/internal/metadata/tvdb"
)

// TMDBClient defines the interface for TMDB API operations.
type TMDBClient interface {
	Name() string
	IsConfigured() bool
	Test(ctx context.Context) error
	SearchMovies(ctx context.Context, query string, year int) ([]tmdb.NormalizedMovieResult, error)
	GetMovie(ctx context.Context, id int) (*tmdb.NormalizedMovieResult, error)
	SearchSeries(ctx context.Context, query string, year int) ([]tmdb.NormalizedSeriesResult, error)
	GetSeries(ctx context.Context, id int) (*tmdb.NormalizedSeriesResult, error)
	GetSeriesExternalIDs(ctx context.Context, id int) (tmdb.NormalizedExternalIDs, error)
	GetSeasonEpisodes(ctx context.Context, seriesID, season int) ([]tmdb.NormalizedEpisodeResult, error)
	Find(ctx context.Context, externalID, source string) ([]tmdb.NormalizedMovieResult, []tmdb.NormalizedSeriesResult, error)
}

// TVDBClient defines the interface for TVDB API operations.
type TVDBClient interface {
	Name() string
	IsConfigured() bool
	Test(ctx context.Context) error
	SearchSeries(ctx context.Context, query string, year int) ([]tvdb.NormalizedSeriesResult, error)
	GetSeries(ctx context.Context, id int) (*tvdb.NormalizedSeriesResult, error)
	GetSeasonEpisodes(ctx context.Context, seriesID, season int) ([]tvdb.NormalizedEpisodeResult, error)
}
