package stream

import (
	"context"
	"sync"

	"github.com/mukulmishra18/wstream/pkg/metrics"
)

type streamState int

const (
	stateWritable streamState = iota
	stateClosed
	stateErrored
)

// Stream is the central state machine coordinating a single producer, a
// size-aware queue (via its Controller), and an opaque Sink. All state
// below is owned exclusively by mu; every method that touches it either
// holds mu for its whole synchronous body or holds it only around the
// parts that must run atomically, releasing it around a blocking Sink
// call and re-validating state on the way back in.
type Stream struct {
	mu sync.Mutex

	state     streamState
	storedErr error

	writer *Writer
	ctrl   *Controller

	writeRequests []*request
	inflightWrite *request

	closeRequest  *request
	inflightClose *request

	pendingAbort *abortRequest

	backpressure bool
}

// Option configures a Stream at construction time.
type Option func(*options)

type options struct {
	metrics *metrics.Registry
	name    string
}

// WithMetrics attaches a Prometheus registry that Controller operations
// report into. A nil registry (the default) disables instrumentation.
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *options) { o.metrics = reg }
}

// WithName sets the stream_name label used on every metric this Stream
// reports. Defaults to "default".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// New constructs a Stream over sink, applying strategy, and kicks off
// the sink's Start (if any) in the background. ctx bounds only the
// Start call, not the stream's lifetime.
func New(ctx context.Context, sink Sink, strategy Strategy, opts ...Option) (*Stream, error) {
	if typed, ok := sink.(Typed); ok {
		if typed.Type() != "" {
			return nil, ErrReservedSinkType
		}
	}
	if err := strategy.validate(); err != nil {
		return nil, err
	}

	o := &options{name: "default"}
	for _, opt := range opts {
		opt(o)
	}

	s := &Stream{}
	s.ctrl = newController(s, sink, strategy, o.metrics, o.name)
	s.backpressure = strategy.HighWaterMark <= 0

	s.ctrl.start(ctx)
	return s, nil
}

// Controller returns the Stream's Controller, primarily so callers can
// toggle instrumentation at runtime via its metrics.Instrumentable methods.
func (s *Stream) Controller() *Controller {
	return s.ctrl
}

// Locked reports whether a Writer is currently attached.
func (s *Stream) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer != nil
}

// GetWriter creates and attaches a new Writer, failing if one is already
// attached.
func (s *Stream) GetWriter() (*Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return nil, ErrLocked
	}

	w := newWriterLocked(s)
	s.writer = w
	return w, nil
}

// Abort aborts the stream from outside the writer lock: it fails with
// ErrLocked while a Writer is attached, since only the lock holder may
// abort through Writer.Abort.
func (s *Stream) Abort(ctx context.Context, reason error) error {
	s.mu.Lock()
	if s.writer != nil {
		s.mu.Unlock()
		return ErrLocked
	}
	return s.abortLocked(ctx, reason)
}

// abortLocked implements the shared abort algorithm used by both
// Stream.Abort and Writer.Abort. Must be called with mu held; it always
// unlocks before returning (possibly after relocking internally).
func (s *Stream) abortLocked(ctx context.Context, reason error) error {
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return nil
	case stateErrored:
		err := s.storedErr
		s.mu.Unlock()
		return err
	}

	if s.pendingAbort != nil {
		s.mu.Unlock()
		return ErrAbortPending
	}

	abortErr := &AbortError{Reason: reason}

	if s.writer != nil {
		if s.writer.ready.pending() {
			s.writer.ready.reject(abortErr)
		} else {
			s.writer.ready = settledSignal(abortErr)
		}
	}

	if !s.opInFlightLocked() {
		s.transitionToErroredLocked(abortErr)
		ctrl := s.ctrl
		s.mu.Unlock()
		return ctrl.abort(ctx, reason)
	}

	req := newRequest()
	s.pendingAbort = &abortRequest{reason: reason, req: req}
	s.mu.Unlock()
	return req.wait(ctx)
}

func (s *Stream) opInFlightLocked() bool {
	return s.inflightWrite != nil || s.inflightClose != nil
}

// addWriteRequestLocked appends a new pending write completion. Caller
// must hold mu and have already checked state == writable and locked.
func (s *Stream) addWriteRequestLocked() *request {
	r := newRequest()
	s.writeRequests = append(s.writeRequests, r)
	return r
}

// updateBackpressureLocked applies a freshly computed backpressure value,
// replacing or settling the writer's ready signal as needed. Caller must
// hold mu and have checked state == writable and no close requested.
func (s *Stream) updateBackpressureLocked(bp bool) {
	if s.writer == nil || bp == s.backpressure {
		s.backpressure = bp
		return
	}
	if bp {
		s.writer.ready = newSignal()
	} else {
		s.writer.ready.resolve()
	}
	s.backpressure = bp
}

// errorIfNeededLocked errors the stream unless it already left writable.
func (s *Stream) errorIfNeededLocked(err error) {
	if s.state != stateWritable {
		return
	}
	s.transitionToErroredLocked(err)
}

// transitionToErroredLocked performs the one full writable -> errored
// transition: stores the error, settles both writer promises, rejects
// any pending abort, and rejects every still-queued write/close request.
func (s *Stream) transitionToErroredLocked(err error) {
	s.state = stateErrored
	s.storedErr = err

	if s.writer != nil {
		if s.writer.ready.pending() {
			s.writer.ready.reject(err)
		} else {
			s.writer.ready = settledSignal(err)
		}
		if s.writer.closed.pending() {
			s.writer.closed.reject(err)
		} else {
			s.writer.closed = settledSignal(err)
		}
	}

	if s.pendingAbort != nil {
		s.pendingAbort.req.reject(err)
		s.pendingAbort = nil
	}

	s.rejectAllPendingLocked(err)
}

func (s *Stream) rejectAllPendingLocked(err error) {
	for _, r := range s.writeRequests {
		r.reject(err)
	}
	s.writeRequests = nil
	if s.closeRequest != nil {
		s.closeRequest.reject(err)
		s.closeRequest = nil
	}
}

// finishInflightWriteLocked resolves the in-flight write, then either
// dispatches a pending abort (if the stream is still writable) or, if a
// concurrent error already moved it to errored, leaves the fan-out to
// whatever caused that transition.
func (s *Stream) finishInflightWriteLocked(ctx context.Context) {
	req := s.inflightWrite
	assertf(req != nil, "finishInflightWrite with no inflight write")
	s.inflightWrite = nil
	req.resolve()

	if s.state == stateErrored {
		return
	}
	if s.pendingAbort != nil {
		s.dispatchPendingAbortLocked(ctx)
	}
}

// finishInflightWriteWithErrorLocked rejects the in-flight write and, if
// the stream was not already errored, performs the full error transition.
func (s *Stream) finishInflightWriteWithErrorLocked(reason error) {
	req := s.inflightWrite
	assertf(req != nil, "finishInflightWriteWithError with no inflight write")
	s.inflightWrite = nil
	req.reject(reason)

	if s.state != stateErrored {
		s.transitionToErroredLocked(reason)
	}
}

// finishInflightCloseLocked resolves the in-flight close. If an abort was
// pending, the close still "wins" for its own caller (it resolves), but
// the stream ends up errored with AbortAfterCloseError and the writer's
// closed signal reflects that instead.
func (s *Stream) finishInflightCloseLocked() {
	req := s.inflightClose
	assertf(req != nil, "finishInflightClose with no inflight close")
	s.inflightClose = nil
	req.resolve()

	if s.pendingAbort != nil {
		pending := s.pendingAbort
		s.pendingAbort = nil

		abortErr := &AbortAfterCloseError{Reason: pending.reason}
		s.state = stateErrored
		s.storedErr = abortErr
		if s.writer != nil {
			if s.writer.closed.pending() {
				s.writer.closed.reject(abortErr)
			} else {
				s.writer.closed = settledSignal(abortErr)
			}
		}
		pending.req.resolve()
		return
	}

	s.state = stateClosed
	if s.writer != nil {
		s.writer.closed.resolve()
	}
}

// finishInflightCloseWithErrorLocked mirrors the write-error path, but
// rejects closed instead of ready.
func (s *Stream) finishInflightCloseWithErrorLocked(reason error) {
	req := s.inflightClose
	assertf(req != nil, "finishInflightCloseWithError with no inflight close")
	s.inflightClose = nil
	req.reject(reason)

	if s.state != stateErrored {
		s.transitionToErroredLocked(reason)
	}
}

// dispatchPendingAbortLocked transitions the stream to errored for the
// recorded pending abort and kicks off sink.Abort, wiring its settlement
// to the pending abort's promise. Must be called with mu held; the sink
// call runs on its own goroutine, so mu is never held across it.
func (s *Stream) dispatchPendingAbortLocked(ctx context.Context) {
	pending := s.pendingAbort
	s.pendingAbort = nil

	abortErr := &AbortError{Reason: pending.reason}
	s.transitionToErroredLocked(abortErr)

	ctrl := s.ctrl
	reason := pending.reason
	go func() {
		err := ctrl.abort(ctx, reason)
		if err != nil {
			pending.req.reject(err)
			return
		}
		pending.req.resolve()
	}()
}
