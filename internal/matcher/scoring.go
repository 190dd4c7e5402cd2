package matcher

import (
	"math"

	"github.com/mediatheque/mediatheque/internal/titles"
)

// Weights of the composite score. Title similarity dominates; year and
// duration (the episode envelope, for series) temper it.
const (
	weightTitle    = 0.60
	weightYear     = 0.25
	weightDuration = 0.15

	// neutralScore is used when a component has no evidence on one
	// side: unknown year, unprobed duration, empty season map.
	neutralScore = 60

	// yearDecayRange is the distance in years at which the year
	// component reaches zero.
	yearDecayRange = 3

	// durationFullMatch and durationZeroMatch bound the relative
	// duration difference: at or below the first the component is
	// full, at or beyond the second it is zero, linear in between.
	durationFullMatch = 0.15
	durationZeroMatch = 0.30

	// episodeBeyondSeasonsPenalty demotes a series candidate whose
	// declared seasons are all shorter than the parsed episode number.
	episodeBeyondSeasonsPenalty = 20
)

// scoreMovie combines title, year and duration for one movie candidate.
func scoreMovie(req Request, cand Candidate) int {
	score := weightTitle*scoreTitle(req.Title, cand) +
		weightYear*scoreYear(req.Year, cand.Year) +
		weightDuration*scoreDuration(req.DurationSeconds, cand.DurationSeconds)
	return clampScore(score)
}

// scoreSeries swaps the duration bucket for the episode envelope and
// applies the beyond-envelope demotion.
func scoreSeries(req Request, cand Candidate, seasonCounts map[int]int) int {
	score := weightTitle*scoreTitle(req.Title, cand) +
		weightYear*scoreYear(req.Year, cand.Year) +
		weightDuration*scoreEpisodeEnvelope(req.Episode, seasonCounts)
	score = demoteBeyondEnvelope(score, req.Episode, seasonCounts)
	return clampScore(score)
}

// scoreTitle compares the parsed title against the candidate's title
// and original title, keeping the better of the two.
func scoreTitle(parsed string, cand Candidate) float64 {
	best := titles.TitleSimilarity(parsed, cand.Title)
	if cand.OriginalTitle != "" {
		if alt := titles.TitleSimilarity(parsed, cand.OriginalTitle); alt > best {
			best = alt
		}
	}
	return float64(best)
}

// scoreYear decays linearly from 100 at an exact match to 0 at
// yearDecayRange years apart. A missing year on either side is
// neutral, not disqualifying.
func scoreYear(parsedYear, candYear int) float64 {
	if parsedYear == 0 || candYear == 0 {
		return neutralScore
	}
	diff := parsedYear - candYear
	if diff < 0 {
		diff = -diff
	}
	if diff >= yearDecayRange {
		return 0
	}
	return 100 * (1 - float64(diff)/float64(yearDecayRange))
}

// scoreDuration compares the probed file duration against the
// candidate runtime as a relative difference, so short films are held
// to the same proportional tolerance as long ones.
func scoreDuration(probedSeconds float64, candSeconds int) float64 {
	if probedSeconds <= 0 || candSeconds <= 0 {
		return neutralScore
	}
	diff := math.Abs(probedSeconds-float64(candSeconds)) / float64(candSeconds)
	switch {
	case diff <= durationFullMatch:
		return 100
	case diff >= durationZeroMatch:
		return 0
	default:
		return 100 * (durationZeroMatch - diff) / (durationZeroMatch - durationFullMatch)
	}
}

// scoreEpisodeEnvelope checks whether any declared season is long
// enough to hold the parsed episode number. Exact episode-count
// equality is never required.
func scoreEpisodeEnvelope(episode int, seasonCounts map[int]int) float64 {
	if episode <= 0 || len(seasonCounts) == 0 {
		return neutralScore
	}
	for _, count := range seasonCounts {
		if episode <= count {
			return 100
		}
	}
	return 0
}

// demoteBeyondEnvelope applies the series demotion when the parsed
// episode number exceeds every declared season length.
func demoteBeyondEnvelope(score float64, episode int, seasonCounts map[int]int) float64 {
	if episode <= 0 || len(seasonCounts) == 0 {
		return score
	}
	largest := 0
	for _, count := range seasonCounts {
		if count > largest {
			largest = count
		}
	}
	if episode > largest {
		score -= episodeBeyondSeasonsPenalty
	}
	return score
}

func clampScore(score float64) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return int(math.Round(score))
	}
}
