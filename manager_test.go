package taskqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drivenLoop is a HostLoop test double that runs every posted closure
// synchronously, on the calling goroutine.
type drivenLoop struct {
	destructors []func()
}

func (l *drivenLoop) Post(fn func()) { fn() }

// PostDelayed records the request without invoking fn: tests that rely on
// delayed wakeups drive the clock and call Pump/doWork explicitly instead,
// since a real delayed timer is outside what this double needs to model.
func (l *drivenLoop) PostDelayed(fn func(), _ Tick) {}

func (l *drivenLoop) PostNonNestable(fn func()) { fn() }

func (l *drivenLoop) IsNested() bool { return false }

func (l *drivenLoop) AddDestructionObserver(fn func()) {
	l.destructors = append(l.destructors, fn)
}

func TestSingleQueueOrdering(t *testing.T) {
	loop := &drivenLoop{}
	mgr, err := New(1, loop)
	require.NoError(t, err)

	var order []int
	r := mgr.Runner(0)
	for i := 0; i < 5; i++ {
		i := i
		r.Post(func() { order = append(order, i) })
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestThreeQueuesWithExplicitSelector(t *testing.T) {
	loop := &drivenLoop{}
	sched := newTestScript(0, 1, 2)
	mgr, err := New(3, loop, WithSelector(sched), WithWorkBatchSize(1))
	require.NoError(t, err)

	var order []int
	mgr.Runner(0).Post(func() { order = append(order, 0) })
	mgr.Runner(1).Post(func() { order = append(order, 1) })
	mgr.Runner(2).Post(func() { order = append(order, 2) })

	// Drain the remaining scripted batch steps.
	for i := 0; i < 5 && len(order) < 3; i++ {
		mgr.doWork()
	}

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestDelayedOrdering(t *testing.T) {
	loop := &drivenLoop{}
	clock := NewManualClock()
	mgr, err := New(1, loop, WithClock(clock), WithWorkBatchSize(4))
	require.NoError(t, err)

	var order []string
	r := mgr.Runner(0)
	r.PostDelayedAt(func() { order = append(order, "late") }, 200)
	r.PostDelayedAt(func() { order = append(order, "early") }, 100)
	r.Post(func() { order = append(order, "immediate") })

	clock.Set(300)
	mgr.Pump(0)

	assert.Equal(t, []string{"immediate", "early", "late"}, order)
}

func TestAfterWakeupQuiescence(t *testing.T) {
	loop := &drivenLoop{}
	mgr, err := New(2, loop, WithWorkBatchSize(8))
	require.NoError(t, err)

	mgr.SetPumpPolicy(1, PumpAfterWakeup)

	var ran []int
	mgr.Runner(1).Post(func() { ran = append(ran, 1) })
	// Queue 1's task must not run yet: nothing has woken it.
	assert.Equal(t, QueueNeedsPumping, mgr.QueueState(1))

	mgr.Runner(0).Post(func() { ran = append(ran, 0) })

	assert.Equal(t, []int{0, 1}, ran)
}

func TestDontWakeSuppression(t *testing.T) {
	loop := &drivenLoop{}
	mgr, err := New(2, loop, WithWorkBatchSize(8))
	require.NoError(t, err)

	mgr.SetPumpPolicy(1, PumpAfterWakeup)
	mgr.SetWakeupPolicy(0, WakeDontWakeOtherQueues)

	var ran []int
	mgr.Runner(1).Post(func() { ran = append(ran, 1) })
	mgr.Runner(0).Post(func() { ran = append(ran, 0) })

	// Queue 0 is marked DONT_WAKE_OTHER_QUEUES, so queue 1 must remain
	// unpumped after queue 0's task runs.
	assert.Equal(t, []int{0}, ran)
	assert.Equal(t, QueueNeedsPumping, mgr.QueueState(1))
}

func TestSelfDeletionInsideTask(t *testing.T) {
	loop := &drivenLoop{}
	mgr, err := New(1, loop)
	require.NoError(t, err)

	ranAfter := false
	r := mgr.Runner(0)
	r.Post(func() { mgr.Shutdown() })
	r.Post(func() { ranAfter = true })

	assert.NotPanics(t, func() {
		mgr.doWork()
	})
	assert.False(t, ranAfter)
}

func TestSetWorkBatchSizeRejectsInvalid(t *testing.T) {
	loop := &drivenLoop{}
	mgr, err := New(1, loop)
	require.NoError(t, err)

	assert.Panics(t, func() {
		mgr.SetWorkBatchSize(0)
	})
}

func TestIndexOutOfRangePanics(t *testing.T) {
	loop := &drivenLoop{}
	mgr, err := New(1, loop)
	require.NoError(t, err)

	assert.Panics(t, func() {
		mgr.Runner(5)
	})
}

func TestMetricsSnapshot(t *testing.T) {
	loop := &drivenLoop{}
	mgr, err := New(1, loop, WithMetrics(true))
	require.NoError(t, err)

	done := make(chan struct{})
	mgr.Runner(0).Post(func() { close(done) })
	<-done

	m, ok := mgr.Metrics()
	require.True(t, ok)
	require.Len(t, m.Queues, 1)
	assert.Equal(t, int64(1), m.Queues[0].Count)
}

func TestConcurrentPostsAllRunOnOneMainThread(t *testing.T) {
	loop := NewChanHostLoop(64)
	mgr, err := New(1, loop)
	require.NoError(t, err)
	// Stop runs destruction observers on the calling goroutine, and the
	// Manager's teardown is main-thread-only, so stop from the loop itself.
	defer loop.Post(loop.Stop)

	go loop.Run()

	var wg sync.WaitGroup
	results := make(chan int, 10)
	r := mgr.Runner(0)
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Post(func() { results <- i })
		}()
	}
	wg.Wait()

	seen := map[int]bool{}
	for len(seen) < 10 {
		select {
		case v := <-results:
			seen[v] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for posted tasks to run")
		}
	}
	assert.Len(t, seen, 10)
}

func TestWithWorkBatchSizeRejectsInvalid(t *testing.T) {
	_, err := New(1, &drivenLoop{}, WithWorkBatchSize(0))
	assert.Error(t, err)
}

func TestNewRejectsZeroQueues(t *testing.T) {
	_, err := New(0, &drivenLoop{})
	assert.Error(t, err)
}

func TestTaskRanBitmap(t *testing.T) {
	loop := &drivenLoop{}
	mgr, err := New(2, loop)
	require.NoError(t, err)

	done := make(chan struct{})
	mgr.Runner(1).Post(func() { close(done) })
	<-done

	bitmap := mgr.GetAndClearTaskRanBitmap()
	assert.Equal(t, uint64(1<<1), bitmap)
	assert.Equal(t, uint64(0), mgr.GetAndClearTaskRanBitmap())
}

func TestObserverNotifiedAroundTask(t *testing.T) {
	loop := &drivenLoop{}
	mgr, err := New(1, loop)
	require.NoError(t, err)

	var events []string
	obs := &recordingObserver{events: &events}
	mgr.AddObserver(obs)

	done := make(chan struct{})
	mgr.Runner(0).Post(func() {
		events = append(events, "run")
		close(done)
	})
	<-done

	assert.Equal(t, []string{"will", "run", "did"}, events)
}

type recordingObserver struct {
	events *[]string
}

func (o *recordingObserver) WillProcessTask(int, Task) { *o.events = append(*o.events, "will") }
func (o *recordingObserver) DidProcessTask(int, Task)  { *o.events = append(*o.events, "did") }

// testScript is a minimal Selector used to force a specific queue order in
// a single test without depending on the selector subpackage.
type testScript struct {
	mu     sync.Mutex
	queues []WorkQueueView
	script []int
	pos    int
}

func newTestScript(order ...int) *testScript {
	return &testScript{script: order}
}

func (s *testScript) RegisterWorkQueues(queues []WorkQueueView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = queues
}

func (s *testScript) Select() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pos < len(s.script) {
		idx := s.script[s.pos]
		for _, q := range s.queues {
			if q.Index() == idx && !q.Empty() {
				s.pos++
				return idx, true
			}
		}
		return 0, false
	}
	for _, q := range s.queues {
		if !q.Empty() {
			return q.Index(), true
		}
	}
	return 0, false
}

func (s *testScript) SetObserver(SelectorObserver) {}
