package taskqueue

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// Manager orchestrates N task queues against a single HostLoop: a state
// machine driving batched work against a host collaborator, with a shared
// post-order sequence counter, a self-deletion check run after every task,
// and a goroutine-id-based thread-affinity check.
type Manager struct {
	// Makes Manager non-comparable; every Manager method has a pointer receiver.
	_ [0]func()

	queues   []*queue
	selector Selector
	clock    TickClock
	hostLoop HostLoop

	sequence atomic.Uint32

	workBatchSize atomic.Int32

	state     *runState
	observers observerList

	taskRanBitmap atomic.Uint64

	logger *Logger

	metricsEnabled bool
	metrics        *metricsRegistry

	mainGoroutineID atomic.Uint64

	// alive is the self-deletion sentinel: a heap-allocated flag, true
	// until Shutdown is called. doWork captures a local copy of the
	// pointer before running a task and checks *alive afterward; since a
	// task may call Shutdown on the very Manager it is running under, this
	// gives a synchronous answer to "was the manager shut down inside this
	// task" without depending on GC timing.
	alive *atomic.Bool

	// pendingDelayedWakeSet/At coalesce every queue's own pending-wake
	// notification (queue.pendingWakeSet/At) into at most one outstanding
	// HostLoop.PostDelayed registration, so a burst of delayed posts across
	// many queues produces one host-loop timer rather than one per queue.
	pendingDelayedWakeSet bool
	pendingDelayedWakeAt  Tick
}

// New constructs a Manager with n queues (named "queue-0".."queue-(n-1)";
// the names cannot be changed after construction), driven by hostLoop,
// configured by opts.
func New(n int, hostLoop HostLoop, opts ...ManagerOption) (*Manager, error) {
	if n < 1 {
		return nil, &InvalidUseError{Op: "New", Message: "n must be >= 1"}
	}
	cfg, err := resolveManagerOptions(opts)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		clock:    cfg.clock,
		hostLoop: hostLoop,
		state:    newRunState(),
		logger:   cfg.logger,
	}
	m.workBatchSize.Store(int32(cfg.workBatchSize))

	m.alive = new(atomic.Bool)
	m.alive.Store(true)

	if cfg.selector != nil {
		m.selector = cfg.selector
	} else {
		m.selector = &fifoSelector{}
	}

	m.queues = make([]*queue, n)
	views := make([]WorkQueueView, n)
	for i := range m.queues {
		q := newQueue(m, i, queueDefaultName(i))
		m.queues[i] = q
		views[i] = q
	}
	m.selector.RegisterWorkQueues(views)
	m.selector.SetObserver(m)

	if cfg.metrics {
		m.metricsEnabled = true
		m.metrics = newMetricsRegistry(n)
	}
	for _, obs := range cfg.observers {
		m.observers.add(obs)
	}

	hostLoop.AddDestructionObserver(m.onHostLoopTeardown)

	m.logger.Info().Log("manager constructed")
	return m, nil
}

func queueDefaultName(i int) string {
	buf := make([]byte, 0, 8)
	buf = append(buf, "queue-"...)
	buf = appendInt(buf, i)
	return string(buf)
}

// Runner returns the handle producers use to post work to queue i.
func (m *Manager) Runner(i int) Runner {
	m.checkIndex("Runner", i)
	return Runner{q: m.queues[i]}
}

// checkIndex panics with *InvalidUseError on an out-of-range queue index.
func (m *Manager) checkIndex(op string, i int) {
	if i < 0 || i >= len(m.queues) {
		invalidUseSentinel(op, ErrQueueIndexOutOfRange, "queue index %d out of range [0, %d)", i, len(m.queues))
	}
}

// checkMainThread panics with *InvalidUseError if called from a goroutine
// other than the one currently running do_work, for operations documented
// as main-thread-only. Before the manager has ever run a do_work (e.g.
// immediately after New, before the host loop starts), no thread is yet
// "the" main thread and this check is skipped.
func (m *Manager) checkMainThread(op string) {
	id := m.mainGoroutineID.Load()
	if id == 0 {
		return
	}
	if getGoroutineID() != id {
		invalidUseSentinel(op, ErrInvalidThread, "called from a goroutine other than the main thread")
	}
}

func (m *Manager) isMainThread() bool {
	id := m.mainGoroutineID.Load()
	return id != 0 && getGoroutineID() == id
}

// getGoroutineID returns the current goroutine's numeric id, parsed from
// runtime.Stack's leading "goroutine N [...]" line, since Go exposes no
// public goroutine-identity API.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

func (m *Manager) nextSequence() uint32 {
	return m.sequence.Add(1)
}

// SetPumpPolicy sets queue i's pump policy. Transitioning away from
// PumpAuto never pumps; transitioning from PumpManual or PumpAfterWakeup to
// PumpAuto additionally pumps the queue immediately, so tasks queued while
// non-AUTO can run.
func (m *Manager) SetPumpPolicy(i int, policy PumpPolicy) {
	m.checkIndex("SetPumpPolicy", i)
	m.checkMainThread("SetPumpPolicy")
	q := m.queues[i]
	prev := q.pumpPolicy
	q.pumpPolicy = policy
	if prev == policy {
		return
	}
	m.logger.Info().Str("queue", q.name).Str("from", prev.String()).Str("to", policy.String()).Log("pump policy changed")
	if prev != PumpAuto && policy == PumpAuto {
		m.Pump(i)
	}
}

// SetWakeupPolicy sets queue i's wakeup policy.
func (m *Manager) SetWakeupPolicy(i int, policy WakeupPolicy) {
	m.checkIndex("SetWakeupPolicy", i)
	m.checkMainThread("SetWakeupPolicy")
	m.queues[i].wakeupPolicy = policy
}

// Pump unconditionally moves all currently-runnable tasks on queue i into
// its work buffer, and schedules a do-work if the work buffer became
// non-empty.
func (m *Manager) Pump(i int) {
	m.checkIndex("Pump", i)
	m.checkMainThread("Pump")
	q := m.queues[i]
	moved := q.pumpAll(m.clock.Now())
	if moved > 0 {
		m.maybePostDoWork()
	}
}

// IsEmpty reports whether queue i has no incoming, delayed, or work-buffer
// tasks. Safe to call from any thread.
func (m *Manager) IsEmpty(i int) bool {
	m.checkIndex("IsEmpty", i)
	return m.queues[i].isEmpty()
}

// QueueState classifies queue i's readiness. Safe to call from any thread.
func (m *Manager) QueueState(i int) QueueState {
	m.checkIndex("QueueState", i)
	return m.queues[i].state(m.clock.Now())
}

// NextPendingDelayedTime returns the smallest delayed run time, strictly
// after now, across all queues. Safe to call from any thread.
func (m *Manager) NextPendingDelayedTime() (Tick, bool) {
	now := m.clock.Now()
	var (
		best    Tick
		haveAny bool
	)
	for _, q := range m.queues {
		t, ok := q.nextPendingDelayedTime(now)
		if !ok {
			continue
		}
		if !haveAny || t < best {
			best, haveAny = t, true
		}
	}
	return best, haveAny
}

// SetWorkBatchSize sets the number of do_work iterations attempted per
// host-loop invocation. k must be >= 1. Affects the next do-work only.
func (m *Manager) SetWorkBatchSize(k int) {
	if k < 1 {
		invalidUseSentinel("SetWorkBatchSize", ErrWorkBatchSizeInvalid, "work batch size must be >= 1, got %d", k)
	}
	m.workBatchSize.Store(int32(k))
}

// AddObserver registers obs to be notified around every task execution.
func (m *Manager) AddObserver(obs TaskObserver) {
	m.checkMainThread("AddObserver")
	m.observers.add(obs)
}

// RemoveObserver unregisters obs. Safe to call from within an observer
// callback.
func (m *Manager) RemoveObserver(obs TaskObserver) {
	m.checkMainThread("RemoveObserver")
	m.observers.remove(obs)
}

// GetAndClearTaskRanBitmap returns a mask where bit i is set iff a task ran
// on queue i since the previous call, then clears the mask. Supports up to
// 64 queues.
func (m *Manager) GetAndClearTaskRanBitmap() uint64 {
	return m.taskRanBitmap.Swap(0)
}

// SetClock overrides the clock used for delayed-post resolution and expiry
// checks, for tests.
func (m *Manager) SetClock(clock TickClock) {
	m.clock = clock
}

// Metrics returns a snapshot of per-queue task counts and latency
// accounting (sum, mean, max, percentiles), or a zero Metrics and false if
// WithMetrics(true) was not supplied at construction. Queue depth is not
// tracked.
func (m *Manager) Metrics() (Metrics, bool) {
	if !m.metricsEnabled {
		return Metrics{}, false
	}
	snap := m.metrics.snapshot()
	for i := range snap.Queues {
		snap.Queues[i].Name = m.queues[i].name
	}
	return snap, true
}

// OnTaskQueueEnabled implements SelectorObserver: a dynamic-priority
// selector believes a previously-ineligible queue is now eligible, so the
// manager re-arms a do-work.
func (m *Manager) OnTaskQueueEnabled() {
	m.maybePostDoWork()
}

// --- notifications from queue.go (post-time, any thread) ---

func (m *Manager) notifyIncomingNonEmpty(q *queue) {
	m.maybePostDoWork()
}

func (m *Manager) notifyEarliestDelayedChanged(q *queue, when Tick) {
	m.scheduleDelayedWakeAt(when)
}

// maybePostDoWork is the re-entrancy-guarded do-work scheduler. It is a
// no-op while a task is currently executing (the run loop re-evaluates
// after the task returns) and posts at most one pending do-work otherwise.
func (m *Manager) maybePostDoWork() {
	if m.state.isExecuting() {
		return
	}
	if !m.state.tryClaimDoWork() {
		return
	}
	m.hostLoop.Post(m.doWork)
}

// scheduleDelayedWakeAt ensures a delayed do-work is posted to fire at or
// before `at`, deduplicating against any already-scheduled wake so that N
// posts sharing an absolute time produce exactly one host-loop timer
// registration.
func (m *Manager) scheduleDelayedWakeAt(at Tick) {
	if m.pendingDelayedWakeSet && m.pendingDelayedWakeAt <= at {
		return
	}
	m.pendingDelayedWakeSet = true
	m.pendingDelayedWakeAt = at
	m.logger.Debug().Int("at", int(at)).Log("scheduling delayed wake")
	m.hostLoop.PostDelayed(m.doWork, at)
}

// scheduleNextDelayedWakeIfAny recomputes and (re)arms the pending delayed
// wake from the current earliest future delayed task across all queues,
// called when a do-work iteration ends with nothing immediately runnable.
func (m *Manager) scheduleNextDelayedWakeIfAny() {
	m.pendingDelayedWakeSet = false
	if at, ok := m.NextPendingDelayedTime(); ok {
		m.scheduleDelayedWakeAt(at)
	}
}

func (m *Manager) onHostLoopTeardown() {
	m.checkMainThread("host loop teardown")
	for _, q := range m.queues {
		q.mu.Lock()
		q.incoming = incomingBuffer{}
		q.delayed = nil
		q.mu.Unlock()
		q.work = nil
	}
}

// doWork is the batched run-loop algorithm, posted to the HostLoop by
// maybePostDoWork/scheduleDelayedWakeAt. It must only ever be invoked by
// the HostLoop, on what becomes (for the duration of this and all future
// calls) "the main thread".
func (m *Manager) doWork() {
	m.mainGoroutineID.CompareAndSwap(0, getGoroutineID())

	alive := m.alive
	m.state.consumeDoWork()

	var (
		previousIdx = -1
		shouldWake  bool
		batch       = int(m.workBatchSize.Load())
	)

	for step := 0; step < batch; step++ {
		if !m.updateWorkQueues(shouldWake, previousIdx) {
			break
		}

		idx, ok := m.selector.Select()
		if !ok {
			m.logger.Debug().Log("selector declined to select a queue")
			break
		}
		q := m.queues[idx]
		task := q.popWork()

		if !task.Nestable() && m.hostLoop.IsNested() {
			m.hostLoop.PostNonNestable(func() { m.runSingleReposted(idx, task) })
			continue
		}

		if m.runTaskAndCheckAlive(alive, idx, task) {
			return
		}

		previousIdx = idx
		shouldWake = q.wakeupPolicy == WakeCanWakeOtherQueues
	}

	if m.anyQueueHasWorkOrReadyDelayed() {
		m.maybePostDoWork()
	} else {
		m.scheduleNextDelayedWakeIfAny()
	}
}

// runSingleReposted runs one non-nestable task that was reposted to the
// outermost host loop, with the same alive-check discipline as the main
// do_work loop, but outside of any batch bookkeeping.
func (m *Manager) runSingleReposted(idx int, task Task) {
	m.runTaskAndCheckAlive(m.alive, idx, task)
}

// runTaskAndCheckAlive runs task (with observer notification), then checks
// alive for self-deletion. Returns true if the manager was shut down inside
// the task, in which case the caller must return immediately without
// touching any further manager state. alive is passed explicitly (rather
// than read from m) so the check still works if the task's closure already
// nilled out its own reference to m.
func (m *Manager) runTaskAndCheckAlive(alive *atomic.Bool, idx int, task Task) (deleted bool) {
	m.observers.willProcess(idx, task)

	exit := m.state.enterTask()
	startedAt := m.clock.Now()
	func() {
		defer exit()
		// A task panic must not take down the main thread running doWork.
		defer func() {
			if r := recover(); r != nil {
				m.logger.Err().Err(fmt.Errorf("%v", r)).Log("task panicked")
			}
		}()
		task.run()
	}()

	if !alive.Load() {
		return true
	}

	if m.metricsEnabled {
		m.metrics.record(idx, m.clock.Now()-startedAt)
	}
	m.observers.didProcess(idx, task)
	m.taskRanBitmap.Or(1 << uint(idx))
	return false
}

// updateWorkQueues performs the per-iteration refresh: expire ready delayed
// tasks into incoming, then apply each queue's pump policy. Returns true
// iff at least one queue's work buffer is non-empty afterward.
func (m *Manager) updateWorkQueues(shouldTriggerWakeup bool, previousIdx int) bool {
	now := m.clock.Now()
	anyWork := false
	for i, q := range m.queues {
		q.expireDelayed(now)
		q.applyPumpPolicy(shouldTriggerWakeup, previousIdx == i)
		if !q.Empty() {
			anyWork = true
		}
	}
	return anyWork
}

// anyQueueHasWorkOrReadyDelayed reports whether posting another do-work
// immediately could make progress. A queue whose pump policy is
// PumpAfterWakeup or PumpManual and which only needs pumping (not already
// has work) is excluded: nothing but an explicit wake or Pump call will
// ever move its incoming tasks, so reposting for it would busy-loop
// forever without running anything.
func (m *Manager) anyQueueHasWorkOrReadyDelayed() bool {
	now := m.clock.Now()
	for _, q := range m.queues {
		switch q.state(now) {
		case QueueHasWork:
			return true
		case QueueNeedsPumping:
			if q.pumpPolicy == PumpAuto {
				return true
			}
		}
	}
	return false
}

// Shutdown marks the Manager as no longer alive and discards all queued
// work. Safe to call from within a running task — doWork checks the same
// alive flag synchronously after the task returns and exits without any
// further observer dispatch, bitmap update, or rescheduling. Safe to call
// more than once.
func (m *Manager) Shutdown() {
	if !m.alive.CompareAndSwap(true, false) {
		return
	}
	for _, q := range m.queues {
		q.mu.Lock()
		q.incoming = incomingBuffer{}
		q.delayed = nil
		q.mu.Unlock()
		q.work = nil
	}
}
