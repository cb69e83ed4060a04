package pool

import "go.uber.org/zap"

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithName labels the pool in logs, errors and status snapshots.
func WithName[T any](name string) Option[T] {
	return func(p *Pool[T]) {
		if name != "" {
			p.name = name
		}
	}
}

// WithInit runs fn once on every instance the pool constructs.
func WithInit[T any](fn func(*T)) Option[T] {
	return func(p *Pool[T]) {
		p.init = fn
	}
}

// WithReset runs fn on an instance each time its lease is released. Without
// it instances keep whatever state the previous holder left behind.
func WithReset[T any](fn func(*T)) Option[T] {
	return func(p *Pool[T]) {
		p.reset = fn
	}
}

// WithLogger attaches a logger; the pool names it after itself.
func WithLogger[T any](log *zap.Logger) Option[T] {
	return func(p *Pool[T]) {
		if log != nil {
			p.log = log
		}
	}
}

// WithObserver registers a lifecycle observer such as a metrics recorder.
func WithObserver[T any](obs Observer) Option[T] {
	return func(p *Pool[T]) {
		if obs != nil {
			p.observer = obs
		}
	}
}
