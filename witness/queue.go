// Package witness implements the bounded admission queue between the batch
// execution engine and the proof-generation pipeline.
package witness

import (
	"errors"
	"sync"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"

	"github.com/quasarlabs/sequencer/storage"
)

// Status reports the queue's capacity state as observed atomically with an
// admission attempt.
type Status uint8

const (
	// StatusAvailable means the queue can accept more artifacts.
	StatusAvailable Status = iota
	// StatusFull means the queue is at capacity.
	StatusFull
)

func (s Status) String() string {
	if s == StatusFull {
		return "full"
	}
	return "available"
}

// ErrQueueFull is returned when an artifact is rejected for lack of
// capacity.
var ErrQueueFull = errors.New("witness queue is full")

// Artifact is the witness input of one sealed batch.
type Artifact struct {
	BatchNumber uint64
	State       *storage.WitnessState
}

// Queue is a fixed-capacity artifact queue. The admission check and the
// reported status are computed under one lock, so a caller observing
// StatusAvailable from its own Submit knows its artifact was admitted with
// room to spare.
type Queue struct {
	mu       sync.Mutex
	capacity int
	items    []*Artifact
	notifyCh chan struct{}

	occupancy metrics.Gauge
}

// NewQueue creates a queue with the given capacity. A nil gauge disables
// occupancy reporting.
func NewQueue(capacity int, occupancy metrics.Gauge) *Queue {
	if capacity <= 0 {
		panic("witness queue capacity must be positive")
	}
	if occupancy == nil {
		occupancy = discard.NewGauge()
	}
	return &Queue{
		capacity:  capacity,
		items:     make([]*Artifact, 0, capacity),
		notifyCh:  make(chan struct{}, 1),
		occupancy: occupancy,
	}
}

// Submit offers an artifact to the queue. When the queue is already at
// capacity the artifact is rejected with ErrQueueFull. The returned status
// reflects the queue state after admission: StatusFull on the submit that
// takes the last slot tells the producer to stop before the next batch.
func (q *Queue) Submit(a *Artifact) (Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		return StatusFull, ErrQueueFull
	}
	q.items = append(q.items, a)
	q.occupancy.Set(float64(len(q.items)))

	select {
	case q.notifyCh <- struct{}{}:
	default:
	}

	if len(q.items) == q.capacity {
		return StatusFull, nil
	}
	return StatusAvailable, nil
}

// Next returns the next artifact, or nil when the queue is empty.
func (q *Queue) Next() *Artifact {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	a := q.items[0]
	q.items = q.items[1:]
	q.occupancy.Set(float64(len(q.items)))
	return a
}

// NotifyCh returns a channel that receives a signal when artifacts are
// added.
func (q *Queue) NotifyCh() <-chan struct{} {
	return q.notifyCh
}

// Len returns the current number of queued artifacts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
