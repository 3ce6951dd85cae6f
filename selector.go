package taskqueue

import "sync"

// WorkQueueView is the read-only view of one queue's work buffer a Selector
// is allowed to observe: only Front, Empty and Index, nothing that would
// let a Selector mutate scheduling state directly.
type WorkQueueView interface {
	// Empty reports whether the work buffer currently has no tasks.
	Empty() bool
	// Front returns the oldest task in the work buffer without removing it.
	// Only valid to call when Empty() is false.
	Front() Task
	// Index returns the queue's stable index, as passed to Manager.Runner.
	Index() int
}

// SelectorObserver is notified by selectors that support dynamic priority
// changes; the Manager implements this to re-arm a do_work whenever a
// selector decides a previously-ineligible queue has become eligible.
type SelectorObserver interface {
	OnTaskQueueEnabled()
}

// Selector is the pluggable policy that chooses which queue to service
// next out of those registered with it. Implementations must be
// deterministic given their inputs and must honor a false/none return from
// Select by causing the manager to end the current do_work iteration
// without popping any task.
//
// The default FIFO selector lives in this package (fifoSelector, used when
// no Selector is supplied); RoundRobin, Priority, and Scripted live in the
// sibling "selector" subpackage. The interface lives here so a Selector may
// be supplied without depending on that subpackage.
type Selector interface {
	// RegisterWorkQueues is called exactly once, at Manager construction,
	// with an index-stable view of every queue's work buffer.
	RegisterWorkQueues(queues []WorkQueueView)

	// Select returns the index of the queue to service next. The bool
	// result is false to refuse (the manager will not pop any task this
	// iteration). The manager guarantees work queues are only read, never
	// mutated, during this call, and that the queue returned is non-empty
	// at the moment Select returns.
	Select() (index int, ok bool)

	// SetObserver registers obs to receive OnTaskQueueEnabled
	// notifications. Selectors with no dynamic-priority concept may
	// implement this as a no-op.
	SetObserver(obs SelectorObserver)
}

// fifoSelector is the Manager's zero-value default: the queue holding the
// globally-oldest (lowest sequence number) front task wins, scanning
// registered queues in index order. This directly grounds "Single queue
// ordering" and is a safe default when the caller supplies no Selector.
type fifoSelector struct {
	mu     sync.Mutex
	queues []WorkQueueView
}

func (s *fifoSelector) RegisterWorkQueues(queues []WorkQueueView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = queues
}

func (s *fifoSelector) Select() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := -1
	var bestSeq uint32
	for _, q := range s.queues {
		if q.Empty() {
			continue
		}
		seq := q.Front().Sequence()
		if best == -1 || seq < bestSeq {
			best = q.Index()
			bestSeq = seq
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func (s *fifoSelector) SetObserver(SelectorObserver) {}
