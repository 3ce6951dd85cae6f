package taskqueue

import (
	"runtime"
)

// Tick is a monotonic time value expressed in microseconds, matching the
// resolution TickClock is expected to provide. It never moves backward.
type Tick int64

// Func is the unit of work a Task wraps.
type Func func()

// Task is an immutable record describing one unit of posted work.
//
// Tasks are ordered for the selector's convenience by
// (DelayedRunTime ascending, Sequence ascending); a Task with no delay
// compares as "immediate" using Sequence alone. See less.
type Task struct {
	fn       Func
	sequence uint32
	when     Tick
	delayed  bool
	nestable bool
	location string
}

// newTask captures the source location of the code that called the Runner
// method (Post/PostDelayed/...): three frames up, past newTask, the queue's
// post/postDelayedAt, and the Runner method itself.
func newTask(fn Func, sequence uint32, when Tick, delayed, nestable bool) Task {
	_, file, line, ok := runtime.Caller(3)
	loc := "unknown"
	if ok {
		loc = callerLocation(file, line)
	}
	return Task{
		fn:       fn,
		sequence: sequence,
		when:     when,
		delayed:  delayed,
		nestable: nestable,
		location: loc,
	}
}

func callerLocation(file string, line int) string {
	// Keep only the final path component; full paths are noise in logs.
	start := len(file)
	for i := len(file) - 1; i >= 0; i-- {
		if file[i] == '/' {
			start = i + 1
			break
		}
	}
	buf := make([]byte, 0, len(file)-start+12)
	buf = append(buf, file[start:]...)
	buf = append(buf, ':')
	buf = appendInt(buf, line)
	return string(buf)
}

func appendInt(buf []byte, n int) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	start := len(buf)
	for n > 0 {
		buf = append(buf, byte('0'+n%10))
		n /= 10
	}
	// reverse the digits just appended
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}

// Sequence returns the task's global post-order sequence number.
func (t Task) Sequence() uint32 { return t.sequence }

// Delayed reports whether the task has a delayed run time.
func (t Task) Delayed() bool { return t.delayed }

// When returns the task's delayed run time. Only meaningful if Delayed().
func (t Task) When() Tick { return t.when }

// Nestable reports whether the task may run inside a nested host-loop
// invocation.
func (t Task) Nestable() bool { return t.nestable }

// Location returns a "file:line" source location for diagnostics.
func (t Task) Location() string { return t.location }

// run invokes the wrapped closure.
func (t Task) run() { t.fn() }

// asExpired returns a copy of t with its delayed flag cleared, used when an
// expired delayed task is promoted into the incoming buffer. The sequence
// number (and therefore its position in FIFO/selector ordering) is retained.
func (t Task) asExpired() Task {
	t.delayed = false
	return t
}

// less orders two tasks for the selector's work buffer and the delayed
// heap:
//   - both delayed: compare When, tie-break on Sequence.
//   - exactly one delayed: the delayed one sorts greater (runs later),
//     regardless of its sequence number relative to the immediate one.
//   - neither delayed: compare Sequence.
func less(a, b Task) bool {
	switch {
	case a.delayed && b.delayed:
		if a.when != b.when {
			return a.when < b.when
		}
		return a.sequence < b.sequence
	case a.delayed != b.delayed:
		return !a.delayed
	default:
		return a.sequence < b.sequence
	}
}
