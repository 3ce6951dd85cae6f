package taskqueue

import "sync"

// TaskObserver is notified around every task execution on the main thread.
// Implementations must not block; the manager invokes them synchronously
// between popping a task and running it, and immediately after it returns.
type TaskObserver interface {
	// WillProcessTask is called just before t runs, with the index of the
	// queue it was popped from.
	WillProcessTask(queueIndex int, t Task)
	// DidProcessTask is called just after t returns.
	DidProcessTask(queueIndex int, t Task)
}

// observerList holds registered TaskObservers and dispatches to a snapshot
// taken at the start of each notification round, so an observer may add or
// remove observers (including itself) from inside a callback without
// corrupting iteration or triggering on itself.
type observerList struct {
	mu        sync.Mutex
	observers []TaskObserver
}

func (l *observerList) add(obs TaskObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, obs)
}

func (l *observerList) remove(obs TaskObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, o := range l.observers {
		if o == obs {
			l.observers = append(l.observers[:i:i], l.observers[i+1:]...)
			return
		}
	}
}

func (l *observerList) snapshot() []TaskObserver {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.observers) == 0 {
		return nil
	}
	out := make([]TaskObserver, len(l.observers))
	copy(out, l.observers)
	return out
}

func (l *observerList) willProcess(queueIndex int, t Task) {
	for _, o := range l.snapshot() {
		o.WillProcessTask(queueIndex, t)
	}
}

func (l *observerList) didProcess(queueIndex int, t Task) {
	for _, o := range l.snapshot() {
		o.DidProcessTask(queueIndex, t)
	}
}
