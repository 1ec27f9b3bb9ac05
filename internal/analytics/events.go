package analytics

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSearch EventType = "search"
	EventCommit EventType = "commit"
)

// NewSearchEvent stamps e with a fresh id, its type and the current time.
func NewSearchEvent(e SearchEvent) SearchEvent {
	e.ID = uuid.NewString()
	e.Type = EventSearch
	e.Timestamp = time.Now().UTC()
	return e
}

// NewCommitEvent stamps e with a fresh id, its type and the current time.
func NewCommitEvent(e CommitEvent) CommitEvent {
	e.ID = uuid.NewString()
	e.Type = EventCommit
	e.Timestamp = time.Now().UTC()
	return e
}

// SearchEvent describes one executed search. Path is "simple" or "top". ID
// is unique per event so at-least-once sinks can drop redeliveries.
type SearchEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Index      string    `json:"index"`
	Path       string    `json:"path"`
	Query      string    `json:"query"`
	TotalHits  uint64    `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
}

// CommitEvent describes one successful write-session commit.
type CommitEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Index      string    `json:"index"`
	Documents  int       `json:"documents"`
	Generation uint64    `json:"generation"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Envelope pairs an event with the key it is partitioned by downstream.
type Envelope struct {
	Key   string
	Event any
}

// Recorder receives session events. Implementations must not block the
// caller for long; sessions record synchronously.
type Recorder interface {
	RecordSearch(SearchEvent)
	RecordCommit(CommitEvent)
}

type multi []Recorder

// Multi fans events out to every non-nil recorder in order.
func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) RecordSearch(e SearchEvent) {
	for _, r := range m {
		r.RecordSearch(e)
	}
}

func (m multi) RecordCommit(e CommitEvent) {
	for _, r := range m {
		r.RecordCommit(e)
	}
}
