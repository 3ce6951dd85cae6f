package taskqueue

import "time"

// Runner is the per-queue handle producers on any thread use to post work.
type Runner struct {
	q *queue
}

// Post appends a nestable, non-delayed task.
func (r Runner) Post(fn Func) {
	r.q.post(fn, true)
}

// PostDelayed appends a nestable task to run no earlier than now()+delay.
// The clock is only read here, not on every post.
func (r Runner) PostDelayed(fn Func, delay time.Duration) {
	when := r.q.manager.clock.Now() + Tick(delay.Microseconds())
	r.q.postDelayedAt(fn, when, true)
}

// PostDelayedAt appends a nestable task to run no earlier than the given
// absolute tick.
func (r Runner) PostDelayedAt(fn Func, at Tick) {
	r.q.postDelayedAt(fn, at, true)
}

// PostNonNestable appends a task that defers to the outermost host loop
// invocation if selected while the host loop reports IsNested().
func (r Runner) PostNonNestable(fn Func) {
	r.q.post(fn, false)
}

// RunsTasksOnCurrentThread reports whether the calling goroutine is the
// manager's main thread.
func (r Runner) RunsTasksOnCurrentThread() bool {
	return r.q.manager.isMainThread()
}

// IsEmpty is a thread-safe snapshot of whether this queue has no incoming,
// delayed, or work-buffer tasks.
func (r Runner) IsEmpty() bool {
	return r.q.isEmpty()
}

// QueueState classifies this queue's readiness.
func (r Runner) QueueState() QueueState {
	return r.q.state(r.q.manager.clock.Now())
}

// Index returns the queue's stable index.
func (r Runner) Index() int { return r.q.index }

// Name returns the queue's diagnostic name.
func (r Runner) Name() string { return r.q.name }
