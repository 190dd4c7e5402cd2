package validation

import (
	"time"

	"github.com/mediatheque/mediatheque/internal/library/scanner"
	"github.com/mediatheque/mediatheque/internal/matcher"
)

// Status is the lifecycle state of a pending validation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
)

// PendingValidation is one scanned file awaiting an identity decision.
// The parser output is kept on the row so cascade matching and
// transfer naming never re-parse the filename.
type PendingValidation struct {
	ID               int64             `json:"id"`
	VideoFileID      int64             `json:"videoFileId"`
	MediaType        scanner.MediaType `json:"mediaType"`
	ParsedTitle      string            `json:"parsedTitle"`
	ParsedYear       int               `json:"parsedYear,omitempty"`
	ParsedSeason     int               `json:"parsedSeason,omitempty"`
	ParsedEpisode    int               `json:"parsedEpisode,omitempty"`
	ParsedEpisodeEnd int               `json:"parsedEpisodeEnd,omitempty"`

	Status              Status              `json:"status"`
	AutoValidated       bool                `json:"autoValidated"`
	SelectedCandidateID string              `json:"selectedCandidateId,omitempty"`
	Candidates          []matcher.Candidate `json:"candidates"`

	// CascadeRootID is set on members auto-validated by a series
	// cascade and names the pending that was accepted first.
	CascadeRootID int64 `json:"cascadeRootId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Candidate returns the snapshot with the given external id, or nil.
func (p *PendingValidation) Candidate(externalID string) *matcher.Candidate {
	for i := range p.Candidates {
		if p.Candidates[i].ExternalID == externalID {
			return &p.Candidates[i]
		}
	}
	return nil
}

// EpisodeRange returns the inclusive episode numbers this file covers.
// Multi-episode files expand to every number between the parsed
// episode and the parsed end.
func (p *PendingValidation) EpisodeRange() []int {
	if p.ParsedEpisode <= 0 {
		return nil
	}
	end := p.ParsedEpisodeEnd
	if end < p.ParsedEpisode {
		end = p.ParsedEpisode
	}
	numbers := make([]int, 0, end-p.ParsedEpisode+1)
	for n := p.ParsedEpisode; n <= end; n++ {
		numbers = append(numbers, n)
	}
	return numbers
}
