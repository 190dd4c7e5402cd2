package audit

// EntityType names the catalog dimension a finding or confirmation
// refers to.
type EntityType string

const (
	EntityMovie   EntityType = "movie"
	EntityEpisode EntityType = "episode"
	EntitySeries  EntityType = "series"
)

// ValidEntityType reports whether t names a confirmable entity kind.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityMovie, EntityEpisode, EntitySeries:
		return true
	}
	return false
}

// Reason tags the kind of drift a finding reports.
type Reason string

const (
	ReasonTitleDrift        Reason = "title_drift"
	ReasonYearDrift         Reason = "year_drift"
	ReasonDurationDrift     Reason = "duration_drift"
	ReasonEpisodeCountDrift Reason = "episode_count_drift"
)

// Drift thresholds. A check only fires when both sides carry a value.
const (
	titleDriftThreshold   = 75
	yearDriftDelta        = 2
	durationDriftFraction = 0.30
)

// Confidence penalties per reason. Confidence starts at 100 and loses
// the penalty of every reason that fired, floored at zero.
var reasonPenalties = map[Reason]int{
	ReasonTitleDrift:        40,
	ReasonYearDrift:         25,
	ReasonDurationDrift:     25,
	ReasonEpisodeCountDrift: 35,
}

// Finding is one suspicious association. Confidence runs 0..100 with
// lower meaning more suspect. Detail carries the measured evidence in
// display form.
type Finding struct {
	EntityType EntityType `json:"entityType"`
	EntityID   int64      `json:"entityId"`
	Title      string     `json:"title"`
	FilePath   string     `json:"filePath,omitempty"`
	Confidence int        `json:"confidence"`
	Reasons    []Reason   `json:"reasons"`
	Detail     string     `json:"detail"`
}

func confidenceFor(reasons []Reason) int {
	score := 100
	for _, reason := range reasons {
		score -= reasonPenalties[reason]
	}
	if score < 0 {
		score = 0
	}
	return score
}
