// Package taskqueue provides a multi-queue cooperative task scheduler for
// a single execution thread, modeled on a classic browser-engine task
// queue manager: producers on any goroutine post work against one of N
// independent queues, and a [Manager] delivers that work to one main
// thread in an order chosen by a pluggable [Selector], honoring per-queue
// pump and wakeup policies and delayed run times.
//
// # Architecture
//
// A [Manager] owns N [Runner]-addressable queues and drives them against a
// [HostLoop] collaborator, which is the only thing that actually invokes
// code on the main thread. The manager never runs its own goroutine: it
// posts a single batched "do-work" closure to the HostLoop whenever a
// queue has runnable work, and that closure performs up to WorkBatchSize
// iterations of "ask the [Selector] which queue to service, pop one task,
// run it, notify [TaskObserver]s".
//
// Each queue buffers incoming tasks (FIFO plus a delayed min-heap) and a
// work buffer the selector reads from; tasks move from incoming to work
// according to the queue's [PumpPolicy] (AUTO, AFTER_WAKEUP, or MANUAL),
// and a [WakeupPolicy] controls whether a queue's executing tasks make
// AFTER_WAKEUP queues eligible to pump.
//
// # Thread Safety
//
//   - [Runner.Post], [Runner.PostDelayed], [Runner.PostDelayedAt],
//     [Runner.PostNonNestable], [Runner.IsEmpty], and [Runner.QueueState]
//     are safe to call from any goroutine.
//   - [Manager.SetPumpPolicy], [Manager.SetWakeupPolicy], [Manager.Pump],
//     [Manager.AddObserver], and [Manager.RemoveObserver] are main-thread
//     only; calling them from elsewhere panics with [InvalidUseError] once
//     a main thread has been established by the first do-work invocation.
//   - [Manager.IsEmpty], [Manager.QueueState], and
//     [Manager.NextPendingDelayedTime] are safe to call from any goroutine.
//
// # Usage
//
//	loop := taskqueue.NewChanHostLoop(64)
//	mgr, err := taskqueue.New(2, loop, taskqueue.WithWorkBatchSize(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mgr.SetWakeupPolicy(1, taskqueue.WakeDontWakeOtherQueues)
//
//	mgr.Runner(0).Post(func() {
//	    fmt.Println("hello from queue 0")
//	    loop.Stop()
//	})
//
//	loop.Run()
//
// # Error Types
//
// The package provides sentinel errors ([ErrManagerTerminated],
// [ErrNoSelection]) checked with errors.Is, and a typed
// [InvalidUseError] for fatal programmer-error preconditions (out-of-range
// queue indices, main-thread-only operations invoked elsewhere), which are
// reported by panicking rather than returning an error, since they
// indicate a bug in the caller rather than a recoverable runtime
// condition.
package taskqueue
