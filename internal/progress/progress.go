// Package progress fans workflow events out to any number of
// subscribers. Publishing never blocks the producing pipeline: each
// subscriber gets a bounded channel and loses events it does not
// drain in time.
package progress

import (
	"sync"
	"time"

	"github.com/mediatheque/mediatheque/internal/logger"
)

// Kind identifies the type of event.
type Kind string

const (
	KindStarted  Kind = "started"
	KindScanning Kind = "scanning"
	KindItem     Kind = "item"
	KindFinished Kind = "finished"
)

// Outcome classifies what happened to one scanned file.
type Outcome string

const (
	OutcomeAutoValidated Outcome = "auto_validated"
	OutcomePending       Outcome = "pending"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeFailed        Outcome = "failed"
)

// Event is one progress notification from a running workflow.
type Event struct {
	Kind    Kind      `json:"kind"`
	Path    string    `json:"path,omitempty"`
	Outcome Outcome   `json:"outcome,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Done    int       `json:"done"`
	At      time.Time `json:"at"`
}

// Started marks the beginning of a run.
func Started() Event {
	return Event{Kind: KindStarted}
}

// Scanning reports a file the scanner just surfaced.
func Scanning(path string) Event {
	return Event{Kind: KindScanning, Path: path}
}

// Item reports the outcome for one processed file. done counts the
// items finished so far, this one included.
func Item(path string, outcome Outcome, detail string, done int) Event {
	return Event{Kind: KindItem, Path: path, Outcome: outcome, Detail: detail, Done: done}
}

// Finished marks the end of a run with the final item count.
func Finished(done int) Event {
	return Event{Kind: KindFinished, Done: done}
}

const defaultBufferSize = 64

// Broker delivers events to subscribers over bounded channels.
type Broker struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	bufferSize  int
	dropped     int
	logger      *logger.Logger
}

// NewBroker creates a broker.
func NewBroker(log *logger.Logger) *Broker {
	return &Broker{
		subscribers: make(map[int]chan Event),
		bufferSize:  defaultBufferSize,
		logger:      log.WithComponent("progress"),
	}
}

// Subscribe registers a subscriber and returns its channel plus a
// cancel function. Cancelling closes the channel and stops delivery;
// it is safe to call more than once.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if current, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(current)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking. A
// subscriber whose buffer is full misses this event.
func (b *Broker) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.dropped++
			b.logger.Debug().Int("subscriber", id).Str("kind", string(event.Kind)).Msg("Slow subscriber missed an event")
		}
	}
}

// Dropped returns how many event deliveries were skipped so far.
func (b *Broker) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close ends every subscription. Publishing after Close is a no-op.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
