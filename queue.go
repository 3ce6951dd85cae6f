package taskqueue

import (
	"container/heap"
	"sync"
)

// PumpPolicy governs when a queue's incoming tasks become runnable.
type PumpPolicy int

const (
	// PumpAuto moves incoming tasks to the work buffer as soon as they
	// arrive (or expire, for delayed tasks).
	PumpAuto PumpPolicy = iota
	// PumpAfterWakeup only moves incoming tasks once some other queue
	// with WakeCanWakeOtherQueues has run a task in the same do-work batch.
	PumpAfterWakeup
	// PumpManual only moves incoming tasks on an explicit Pump call. Expired
	// delayed tasks are moved into the incoming buffer by the run loop, but
	// reach the work buffer only through Pump.
	PumpManual
)

func (p PumpPolicy) String() string {
	switch p {
	case PumpAuto:
		return "AUTO"
	case PumpAfterWakeup:
		return "AFTER_WAKEUP"
	case PumpManual:
		return "MANUAL"
	default:
		return "UNKNOWN"
	}
}

// WakeupPolicy governs whether a queue's executing tasks cause
// PumpAfterWakeup queues to become eligible for pumping.
type WakeupPolicy int

const (
	// WakeCanWakeOtherQueues means a task running on this queue makes
	// AFTER_WAKEUP queues eligible to pump on the next do-work iteration.
	WakeCanWakeOtherQueues WakeupPolicy = iota
	// WakeDontWakeOtherQueues means tasks on this queue never wake others.
	WakeDontWakeOtherQueues
)

func (w WakeupPolicy) String() string {
	switch w {
	case WakeCanWakeOtherQueues:
		return "CAN_WAKE_OTHER_QUEUES"
	default:
		return "DONT_WAKE_OTHER_QUEUES"
	}
}

// QueueState classifies a queue's readiness to run work.
type QueueState int

const (
	QueueEmpty QueueState = iota
	QueueNeedsPumping
	QueueHasWork
)

func (s QueueState) String() string {
	switch s {
	case QueueHasWork:
		return "HAS_WORK"
	case QueueNeedsPumping:
		return "NEEDS_PUMPING"
	default:
		return "EMPTY"
	}
}

// queue owns one logical task queue's buffers and policies: an incoming
// FIFO and delayed min-heap guarded by a mutex for cross-thread posting,
// and a work buffer touched only on the main thread.
type queue struct {
	manager *Manager
	index   int
	name    string

	mu       sync.Mutex
	incoming incomingBuffer
	delayed  delayedHeap

	// work is only ever touched on the main thread: mutated by the
	// manager's do_work/pump routines, read by the selector via Front/Empty.
	work []Task

	pumpPolicy   PumpPolicy
	wakeupPolicy WakeupPolicy

	// pendingWake tracks the single in-flight delayed-wake notification
	// this queue has already sent the manager, keyed by delayed_run_time:
	// a second post that doesn't move the earliest time below pendingWakeAt
	// is already covered by that notification and must not re-notify.
	pendingWakeSet bool
	pendingWakeAt  Tick
}

func newQueue(m *Manager, index int, name string) *queue {
	return &queue{manager: m, index: index, name: name, pumpPolicy: PumpAuto}
}

// --- WorkQueueView (main-thread only; no locking needed) ---

func (q *queue) Empty() bool  { return len(q.work) == 0 }
func (q *queue) Front() Task  { return q.work[0] }
func (q *queue) Index() int   { return q.index }
func (q *queue) Name() string { return q.name }

// popWork removes and returns the oldest task in the work buffer.
func (q *queue) popWork() Task {
	t := q.work[0]
	q.work[0] = Task{}
	q.work = q.work[1:]
	return t
}

// --- posting (any thread) ---

func (q *queue) post(fn Func, nestable bool) {
	if !q.manager.alive.Load() {
		return
	}
	seq := q.manager.nextSequence()
	t := newTask(fn, seq, 0, false, nestable)

	q.mu.Lock()
	wasEmpty := q.incoming.len() == 0
	q.incoming.push(t)
	q.mu.Unlock()

	if wasEmpty && q.pumpPolicy == PumpAuto {
		q.manager.notifyIncomingNonEmpty(q)
	}
}

func (q *queue) postDelayedAt(fn Func, when Tick, nestable bool) {
	if !q.manager.alive.Load() {
		return
	}
	seq := q.manager.nextSequence()
	t := newTask(fn, seq, when, true, nestable)

	q.mu.Lock()
	heap.Push(&q.delayed, t)
	needsNotify := (!q.pendingWakeSet || when < q.pendingWakeAt) && q.pumpPolicy == PumpAuto
	if needsNotify {
		q.pendingWakeSet = true
		q.pendingWakeAt = when
	}
	q.mu.Unlock()

	if needsNotify {
		q.manager.notifyEarliestDelayedChanged(q, when)
	}
}

// --- draining (main thread only) ---

// expireDelayed moves every delayed task whose When is <= now into the
// incoming buffer, preserving sequence order, and returns how many moved.
func (q *queue) expireDelayed(now Tick) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	expired := popExpired(&q.delayed, now)
	for _, t := range expired {
		q.incoming.push(t.asExpired())
	}
	if q.pendingWakeSet && q.pendingWakeAt <= now {
		// The wake this queue last asked for has fired (or been overtaken by
		// time passing); any still-pending delayed task will need a fresh
		// notification once it becomes the new earliest.
		q.pendingWakeSet = false
	}
	return len(expired)
}

// pumpAll expires delayed tasks, then moves everything from incoming to
// work, regardless of pump policy. Used by the explicit Pump operation.
func (q *queue) pumpAll(now Tick) int {
	q.expireDelayed(now)

	q.mu.Lock()
	moved := q.incoming.drainInto(nil)
	q.mu.Unlock()

	q.work = append(q.work, moved...)
	return len(moved)
}

// applyPumpPolicy moves incoming tasks into the work buffer when it is
// empty and incoming is non-empty, according to this queue's pump policy.
// shouldTriggerWakeup reports whether the task that ran in the previous
// do-work iteration is allowed to wake AFTER_WAKEUP queues; previousFromSelf
// reports whether that prior task came from this same queue, which must
// not wake the queue it came from.
func (q *queue) applyPumpPolicy(shouldTriggerWakeup bool, previousFromSelf bool) {
	if len(q.work) != 0 {
		return
	}
	q.mu.Lock()
	n := q.incoming.len()
	q.mu.Unlock()
	if n == 0 {
		return
	}

	switch q.pumpPolicy {
	case PumpAuto:
		q.mu.Lock()
		moved := q.incoming.drainInto(nil)
		q.mu.Unlock()
		q.work = append(q.work, moved...)
	case PumpAfterWakeup:
		if !shouldTriggerWakeup || previousFromSelf {
			return
		}
		q.mu.Lock()
		moved := q.incoming.drainInto(nil)
		q.mu.Unlock()
		q.work = append(q.work, moved...)
	case PumpManual:
		// never moved here
	}
}

// isEmpty is a thread-safe snapshot: true iff incoming, delayed, and work
// are all empty.
func (q *queue) isEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.incoming.len() == 0 && len(q.delayed) == 0 && len(q.work) == 0
}

// state classifies the queue's current readiness.
func (q *queue) state(now Tick) QueueState {
	if len(q.work) != 0 {
		return QueueHasWork
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.incoming.len() != 0 {
		return QueueNeedsPumping
	}
	if t, ok := q.delayed.peek(); ok && t.when <= now {
		return QueueNeedsPumping
	}
	return QueueEmpty
}

// nextPendingDelayedTime returns the smallest delayed When strictly after
// now, ignoring already-expired entries.
func (q *queue) nextPendingDelayedTime(now Tick) (Tick, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var (
		best    Tick
		haveAny bool
	)
	for _, t := range q.delayed {
		if t.when <= now {
			continue
		}
		if !haveAny || t.when < best {
			best = t.when
			haveAny = true
		}
	}
	return best, haveAny
}
