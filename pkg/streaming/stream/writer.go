package stream

import (
	"context"
	"sync"
)

// Writer is the exclusive handle a producer uses to write to, close, or
// abort a Stream. Obtained via Stream.GetWriter, and released (detaching
// from the Stream without affecting its in-flight operations) via
// ReleaseLock.
type Writer struct {
	// detachMu guards released/stream only; everything else that needs
	// mutual exclusion goes through stream.mu.
	detachMu sync.Mutex
	released bool
	stream   *Stream

	ready  *signal
	closed *signal
}

// newWriterLocked builds a Writer for stream, choosing ready/closed per
// the table in the Writer construction rules. Caller must hold stream.mu.
func newWriterLocked(s *Stream) *Writer {
	w := &Writer{stream: s}

	switch s.state {
	case stateClosed:
		w.ready = settledSignal(nil)
		w.closed = settledSignal(nil)
	case stateErrored:
		w.ready = settledSignal(s.storedErr)
		w.closed = settledSignal(s.storedErr)
	default: // writable
		w.closed = newSignal()
		switch {
		case s.pendingAbort != nil:
			w.ready = settledSignal(&AbortError{Reason: s.pendingAbort.reason})
		case s.backpressure:
			w.ready = newSignal()
		default:
			w.ready = settledSignal(nil)
		}
	}

	return w
}

func (w *Writer) attached() (*Stream, error) {
	w.detachMu.Lock()
	defer w.detachMu.Unlock()
	if w.released {
		return nil, ErrReleased
	}
	return w.stream, nil
}

// Ready blocks until the stream stops signalling backpressure, the
// stream errors, or ctx is done, whichever happens first.
func (w *Writer) Ready(ctx context.Context) error {
	s, err := w.attached()
	if err != nil {
		return err
	}
	s.mu.Lock()
	sig := w.ready
	s.mu.Unlock()
	return sig.wait(ctx)
}

// Closed blocks until the stream closes cleanly under this writer, the
// stream errors, this writer is released, or ctx is done.
func (w *Writer) Closed(ctx context.Context) error {
	s, err := w.attached()
	if err != nil {
		return err
	}
	s.mu.Lock()
	sig := w.closed
	s.mu.Unlock()
	return sig.wait(ctx)
}

// DesiredSize reports the strategy's remaining headroom, mirroring
// Controller.DesiredSize from the writer's point of view. The bool is
// false exactly where the source returns null: errored, a pending
// abort, or a released writer.
func (w *Writer) DesiredSize() (float64, bool) {
	s, err := w.attached()
	if err != nil {
		return 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateErrored:
		return 0, false
	case stateClosed:
		return 0, true
	}
	if s.pendingAbort != nil {
		return 0, false
	}
	return s.ctrl.strategy.HighWaterMark - s.ctrl.queue.totalSize(), true
}

// Write submits chunk and returns a channel that receives the sink's
// eventual settlement for it (nil on success), buffered so it never
// blocks the controller's dispatch goroutine.
func (w *Writer) Write(chunk any) <-chan error {
	out := make(chan error, 1)

	s, err := w.attached()
	if err != nil {
		out <- err
		return out
	}

	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		out <- ErrNotWritable
		return out
	}
	if s.state == stateErrored {
		err := s.storedErr
		s.mu.Unlock()
		out <- err
		return out
	}
	if s.closeRequest != nil || s.inflightClose != nil {
		s.mu.Unlock()
		out <- ErrAlreadyClosing
		return out
	}

	req := s.addWriteRequestLocked()
	s.ctrl.write(context.Background(), chunk)
	s.mu.Unlock()

	go func() {
		out <- req.wait(context.Background())
	}()
	return out
}

// Close requests a clean close and returns a channel that receives the
// eventual settlement.
func (w *Writer) Close() <-chan error {
	out := make(chan error, 1)

	s, err := w.attached()
	if err != nil {
		out <- err
		return out
	}

	s.mu.Lock()
	if s.state != stateWritable {
		err := s.storedErr
		s.mu.Unlock()
		if err == nil {
			err = ErrNotWritable
		}
		out <- err
		return out
	}
	if s.closeRequest != nil || s.inflightClose != nil {
		s.mu.Unlock()
		out <- ErrAlreadyClosing
		return out
	}

	req := newRequest()
	s.closeRequest = req

	// A closing stream is trivially "ready": no further chunks will be
	// accepted anyway, so there is nothing left to signal backpressure for.
	if w.ready.pending() {
		w.ready.resolve()
	} else {
		w.ready = settledSignal(nil)
	}

	s.ctrl.close(context.Background())
	s.mu.Unlock()

	go func() {
		out <- req.wait(context.Background())
	}()
	return out
}

// CloseWithErrorPropagation is the pipe-consumer variant of Close: it
// resolves immediately if already closed/closing, rejects with the
// stored error if already errored, and otherwise performs a normal
// close.
func (w *Writer) CloseWithErrorPropagation() <-chan error {
	s, err := w.attached()
	if err != nil {
		out := make(chan error, 1)
		out <- err
		return out
	}

	s.mu.Lock()
	switch {
	case s.state == stateClosed:
		s.mu.Unlock()
		out := make(chan error, 1)
		out <- nil
		return out
	case s.state == stateWritable && (s.closeRequest != nil || s.inflightClose != nil):
		s.mu.Unlock()
		out := make(chan error, 1)
		out <- nil
		return out
	case s.state == stateErrored:
		err := s.storedErr
		s.mu.Unlock()
		out := make(chan error, 1)
		out <- err
		return out
	}
	s.mu.Unlock()
	return w.Close()
}

// Abort forwards to the stream's abort algorithm, bypassing the
// stream-level locked check: the writer holding the lock is authorized.
func (w *Writer) Abort(ctx context.Context, reason error) error {
	s, err := w.attached()
	if err != nil {
		return err
	}
	s.mu.Lock()
	return s.abortLocked(ctx, reason)
}

// ReleaseLock detaches the writer from its stream. The stream, its
// queue, and any in-flight operation continue to completion; their
// results simply no longer reach this writer. A no-op if already
// released.
func (w *Writer) ReleaseLock() {
	w.detachMu.Lock()
	if w.released {
		w.detachMu.Unlock()
		return
	}
	w.released = true
	s := w.stream
	w.stream = nil
	w.detachMu.Unlock()

	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ready.pending() {
		w.ready.reject(ErrReleased)
	} else {
		w.ready = settledSignal(ErrReleased)
	}

	if w.closed.pending() {
		w.closed.reject(ErrReleased)
	} else {
		w.closed = settledSignal(ErrReleased)
	}

	if s.writer == w {
		s.writer = nil
	}
}
