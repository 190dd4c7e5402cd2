package transfer

import (
	"github.com/mediatheque/mediatheque/internal/library/files"
	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/tv"
)

// Item is one validated file ready for placement. Movie is set for
// movie items; Series plus at least one Episode for series items (a
// multi-episode file carries every episode it covers).
type Item struct {
	File     *files.VideoFile
	Movie    *movies.Movie
	Series   *tv.Series
	Episodes []*tv.Episode
}

// entityFile returns the file the catalog entity currently holds, if
// any, for similar-content detection.
func (i *Item) entityFile() (path, hash string) {
	if i.Movie != nil {
		return i.Movie.FilePath, i.Movie.FileHash
	}
	if len(i.Episodes) > 0 {
		return i.Episodes[0].FilePath, i.Episodes[0].FileHash
	}
	return "", ""
}

// PlannedItem is an item with its computed destination. Conflict
// resolution may rewrite both paths before execution.
type PlannedItem struct {
	Item
	Destination string
	LinkPath    string
}

// Group holds the items landing in one destination directory.
type Group struct {
	Dir   string
	Items []*PlannedItem
}

// Batch is a planned transfer, grouped by destination parent and
// ordered deterministically.
type Batch struct {
	Groups []Group
	Total  int
}

// EventKind tags a progress event.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventProgress EventKind = "progress"
	EventConflict EventKind = "conflict"
	EventResolved EventKind = "resolved"
	EventItemDone EventKind = "item_done"
	EventFinished EventKind = "finished"
)

// Event is one notification on the transfer stream. Conflict events
// carry a Reply channel and the batch stays suspended until exactly
// one Resolution arrives on it.
type Event struct {
	Kind     EventKind
	Total    int
	Done     int
	Current  string
	Item     *PlannedItem
	Conflict *Conflict
	Options  []Resolution
	Choice   Resolution
	Result   *ItemResult
	Report   *Report
	Reply    chan<- Resolution
}

// ItemStatus is the terminal state of one item in the report.
type ItemStatus string

const (
	ItemTransferred      ItemStatus = "transferred"
	ItemSkippedDuplicate ItemStatus = "skipped_duplicate"
	ItemSkipped          ItemStatus = "skipped"
	ItemFailed           ItemStatus = "failed"
)

// ItemResult records what happened to one item.
type ItemResult struct {
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	LinkPath    string     `json:"linkPath,omitempty"`
	Status      ItemStatus `json:"status"`
	Resolution  Resolution `json:"resolution,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Report summarizes a batch run.
type Report struct {
	Total       int          `json:"total"`
	Transferred int          `json:"transferred"`
	Duplicates  int          `json:"duplicates"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	DryRun      bool         `json:"dryRun,omitempty"`
	Interrupted bool         `json:"interrupted,omitempty"`
	Items       []ItemResult `json:"items,omitempty"`
}

// Options tunes one Execute run. A nil Events channel resolves every
// deferred conflict to skip; the channel is never closed by Execute.
type Options struct {
	DryRun bool
	Events chan<- Event
}
