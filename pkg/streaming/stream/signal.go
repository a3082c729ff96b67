package stream

import "context"

// signal is the Go rendering of the source's per-writer promise: a gate
// that settles exactly once, either cleanly (err == nil) or with an error,
// and can be waited on by any number of goroutines. Once settled it never
// changes; "resetting" a writer's ready/closed to a fresh rejected state
// means rebinding the field to a brand new *signal, not mutating this one.
type signal struct {
	done chan struct{}
	err  error
}

// newSignal returns an unsettled signal.
func newSignal() *signal {
	return &signal{done: make(chan struct{})}
}

// settledSignal returns a signal that is already settled with err (nil
// for a clean resolution).
func settledSignal(err error) *signal {
	s := &signal{done: make(chan struct{}, 0)}
	close(s.done)
	s.err = err
	return s
}

// resolve settles the signal cleanly. No-op if already settled.
func (s *signal) resolve() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
}

// reject settles the signal with err. No-op if already settled.
func (s *signal) reject(err error) {
	select {
	case <-s.done:
		return
	default:
	}
	s.err = err
	close(s.done)
}

// pending reports whether the signal has not yet settled.
func (s *signal) pending() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// wait blocks until the signal settles or ctx is done, whichever comes
// first. A ctx cancellation does not settle the signal itself.
func (s *signal) wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
