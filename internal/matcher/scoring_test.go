package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreYear(t *testing.T) {
	tests := []struct {
		name   string
		parsed int
		cand   int
		want   float64
	}{
		{"exact match", 2021, 2021, 100},
		{"one year off", 2021, 2022, 66.67},
		{"two years off", 2021, 2019, 33.33},
		{"three years off", 2021, 2024, 0},
		{"decades off", 2021, 1984, 0},
		{"parsed year missing", 0, 2021, 60},
		{"candidate year missing", 2021, 0, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreYear(tt.parsed, tt.cand), 0.01)
		})
	}
}

func TestScoreDuration(t *testing.T) {
	tests := []struct {
		name   string
		probed float64
		cand   int
		want   float64
	}{
		{"identical", 8160, 8160, 100},
		{"within fifteen percent", 8160, 7500, 100},
		{"midway between thresholds", 7350, 6000, 50},
		{"at thirty percent", 7800, 6000, 0},
		{"wildly off", 2400, 8160, 0},
		{"probe missing", 0, 8160, 60},
		{"candidate runtime missing", 8160, 0, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreDuration(tt.probed, tt.cand), 0.01)
		})
	}
}

func TestScoreEpisodeEnvelope(t *testing.T) {
	counts := map[int]int{1: 10, 2: 8, 3: 13}

	assert.InDelta(t, 100, scoreEpisodeEnvelope(5, counts), 0.01)
	// Held by season 3 alone.
	assert.InDelta(t, 100, scoreEpisodeEnvelope(13, counts), 0.01)
	assert.InDelta(t, 0, scoreEpisodeEnvelope(24, counts), 0.01)

	// No episode number or no declared seasons is neutral.
	assert.InDelta(t, 60, scoreEpisodeEnvelope(0, counts), 0.01)
	assert.InDelta(t, 60, scoreEpisodeEnvelope(5, nil), 0.01)
}

func TestDemoteBeyondEnvelope(t *testing.T) {
	counts := map[int]int{1: 3, 2: 2}

	assert.InDelta(t, 70, demoteBeyondEnvelope(90, 24, counts), 0.01)
	assert.InDelta(t, 90, demoteBeyondEnvelope(90, 2, counts), 0.01)
	assert.InDelta(t, 90, demoteBeyondEnvelope(90, 0, counts), 0.01)
	assert.InDelta(t, 90, demoteBeyondEnvelope(90, 24, nil), 0.01)
}

func TestScoreTitle_TakesBestOfOriginalTitle(t *testing.T) {
	cand := Candidate{Title: "Gone with the Wind"}
	without := scoreTitle("Autant en emporte le vent", cand)

	cand.OriginalTitle = "Autant en emporte le vent"
	with := scoreTitle("Autant en emporte le vent", cand)

	assert.Less(t, without, 100.0)
	assert.InDelta(t, 100, with, 0.01)
}

func TestScoreMovie_Composite(t *testing.T) {
	req := Request{Title: "The Matrix", Year: 1999, DurationSeconds: 8160}
	cand := Candidate{Title: "The Matrix", Year: 1999, DurationSeconds: 8160}

	assert.Equal(t, 100, scoreMovie(req, cand))
}

func TestScoreMovie_MonotonicInTitle(t *testing.T) {
	req := Request{Title: "Blade Runner", Year: 1982, DurationSeconds: 7020}

	exact := scoreMovie(req, Candidate{Title: "Blade Runner", Year: 1982, DurationSeconds: 7020})
	near := scoreMovie(req, Candidate{Title: "Blade Hunter", Year: 1982, DurationSeconds: 7020})
	far := scoreMovie(req, Candidate{Title: "Brazil", Year: 1982, DurationSeconds: 7020})

	assert.Greater(t, exact, near)
	assert.Greater(t, near, far)
}

func TestScoreSeries_Composite(t *testing.T) {
	req := Request{Title: "Lost", Year: 2004, Episode: 4}
	counts := map[int]int{1: 25, 2: 24}
	cand := Candidate{Title: "Lost", Year: 2004}

	assert.Equal(t, 100, scoreSeries(req, cand, counts))

	// Beyond every declared season: the envelope zeroes out and the
	// demotion lands on top of it.
	req.Episode = 30
	assert.Equal(t, 65, scoreSeries(req, cand, counts))
}
