// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package taskqueue

// managerOptions holds configuration resolved from ManagerOption values
// before a Manager is constructed.
type managerOptions struct {
	clock         TickClock
	selector      Selector
	workBatchSize int
	logger        *Logger
	metrics       bool
	observers     []TaskObserver
}

// ManagerOption configures a Manager at construction time.
type ManagerOption interface {
	applyManager(*managerOptions) error
}

type managerOptionFunc struct {
	fn func(*managerOptions) error
}

func (o *managerOptionFunc) applyManager(opts *managerOptions) error {
	return o.fn(opts)
}

// WithClock overrides the TickClock used to resolve delayed posts and
// expiry checks. Defaults to NewSystemClock().
func WithClock(clock TickClock) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		opts.clock = clock
		return nil
	}}
}

// WithSelector overrides the Selector used to choose which queue to
// service next. Defaults to an internal FIFO selector that picks the queue
// whose front task has the lowest sequence number (the oldest post).
func WithSelector(s Selector) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		opts.selector = s
		return nil
	}}
}

// WithWorkBatchSize sets the initial work-batch size: the maximum number
// of tasks a single do-work invocation will run before yielding back to
// the host loop. Must be >= 1; defaults to 1.
func WithWorkBatchSize(k int) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		if k < 1 {
			return &InvalidUseError{Op: "WithWorkBatchSize", Message: "work batch size must be >= 1", Err: ErrWorkBatchSizeInvalid}
		}
		opts.workBatchSize = k
		return nil
	}}
}

// WithLogger overrides the structured logger. Defaults to a stderr JSON
// logger (defaultLogger()); pass NopLogger() to disable logging entirely.
func WithLogger(logger *Logger) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables per-queue task-count and latency accounting,
// retrievable via Manager.Metrics(). Queue depth is not tracked. Disabled
// by default.
func WithMetrics(enabled bool) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// WithObservers registers one or more TaskObservers at construction time,
// equivalent to calling Manager.AddObserver after construction.
func WithObservers(observers ...TaskObserver) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		opts.observers = append(opts.observers, observers...)
		return nil
	}}
}

func resolveManagerOptions(opts []ManagerOption) (*managerOptions, error) {
	cfg := &managerOptions{
		workBatchSize: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyManager(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.clock == nil {
		cfg.clock = NewSystemClock()
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	return cfg, nil
}
