package taskqueue

import "sync/atomic"

// runState is the manager's lock-free re-entrancy and scheduling-demand
// tracker: two cache-line-padded atomic fields manipulated purely with
// CAS/Load/Store, no mutex. It tracks exactly two things the re-entrancy
// guard needs: whether a task is currently executing, and how many
// do-works are already pending on the host loop. There is no
// "sleeping on a poller" state to track, since the HostLoop owns that.
type runState struct {
	_             [64]byte
	executing     atomic.Bool  // true while a task closure is running
	pendingDoWork atomic.Int32 // number of do-works posted but not yet run
	_             [56]byte
}

func newRunState() *runState {
	return &runState{}
}

// enterTask marks a task as executing and returns a function that clears
// the marker; callers should defer the returned function.
func (s *runState) enterTask() (exit func()) {
	s.executing.Store(true)
	return func() { s.executing.Store(false) }
}

// isExecuting reports whether a task is currently running on the main
// thread. maybePostDoWork consults this to implement the re-entrancy guard:
// it is a no-op while a task is executing, trusting the run loop to
// re-evaluate work after the task returns.
func (s *runState) isExecuting() bool { return s.executing.Load() }

// tryClaimDoWork increments the pending-do-work counter iff it is currently
// zero, returning whether the caller won the right to post one. This keeps
// at most one do-work pending on the host loop at any time.
func (s *runState) tryClaimDoWork() bool {
	return s.pendingDoWork.CompareAndSwap(0, 1)
}

// consumeDoWork decrements the pending-do-work counter, floored at zero,
// called at the start of every do_work invocation.
func (s *runState) consumeDoWork() {
	for {
		cur := s.pendingDoWork.Load()
		if cur <= 0 {
			return
		}
		if s.pendingDoWork.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}
