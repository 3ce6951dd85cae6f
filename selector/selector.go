// Package selector provides taskqueue.Selector implementations that choose
// which queue to service next: FIFO ordering lives on the root package as
// the zero-value default, while round-robin, strict priority, and scripted
// playback live here behind the same small interface.
package selector

import (
	"sync"

	"github.com/gotaskqueue/taskqueue"
)

// RoundRobin cycles through registered queues in index order, skipping
// empty ones, and remembering where it left off between calls so it does
// not starve higher-indexed queues.
type RoundRobin struct {
	mu     sync.Mutex
	queues []taskqueue.WorkQueueView
	cursor int
}

// NewRoundRobin returns a RoundRobin selector.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (s *RoundRobin) RegisterWorkQueues(queues []taskqueue.WorkQueueView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = queues
}

func (s *RoundRobin) Select() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.queues)
	if n == 0 {
		return 0, false
	}
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		q := s.queues[idx]
		if !q.Empty() {
			s.cursor = (idx + 1) % n
			return q.Index(), true
		}
	}
	return 0, false
}

func (s *RoundRobin) SetObserver(taskqueue.SelectorObserver) {}

// Priority selects the non-empty registered queue with the lowest index,
// treating index as priority rank (0 = highest priority). Ties never
// occur since indices are unique.
type Priority struct {
	mu     sync.Mutex
	queues []taskqueue.WorkQueueView
}

// NewPriority returns a Priority selector.
func NewPriority() *Priority { return &Priority{} }

func (s *Priority) RegisterWorkQueues(queues []taskqueue.WorkQueueView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = queues
}

func (s *Priority) Select() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range s.queues {
		if !q.Empty() {
			return q.Index(), true
		}
	}
	return 0, false
}

func (s *Priority) SetObserver(taskqueue.SelectorObserver) {}

// Scripted plays back a fixed schedule of queue indices, in order, for
// deterministic tests. When the script names a queue that is currently
// empty, that entry is consumed and the next scripted entry is tried; once
// the script is exhausted, it falls back to the first non-empty registered
// queue. Set Strict to instead refuse in either case.
type Scripted struct {
	mu     sync.Mutex
	queues []taskqueue.WorkQueueView
	script []int
	pos    int

	// Strict, when true, makes Select refuse instead of falling back once
	// the script is exhausted or names an empty queue.
	Strict bool
}

// NewScripted returns a Scripted selector that plays back schedule in order.
func NewScripted(schedule ...int) *Scripted {
	return &Scripted{script: append([]int(nil), schedule...)}
}

func (s *Scripted) RegisterWorkQueues(queues []taskqueue.WorkQueueView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = queues
}

func (s *Scripted) Select() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.pos < len(s.script) {
		idx := s.script[s.pos]
		s.pos++
		for _, q := range s.queues {
			if q.Index() == idx && !q.Empty() {
				return idx, true
			}
		}
		if s.Strict {
			return 0, false
		}
		// Scripted index wasn't runnable; try the next scripted entry.
	}
	if s.Strict {
		return 0, false
	}
	for _, q := range s.queues {
		if !q.Empty() {
			return q.Index(), true
		}
	}
	return 0, false
}

func (s *Scripted) SetObserver(taskqueue.SelectorObserver) {}
