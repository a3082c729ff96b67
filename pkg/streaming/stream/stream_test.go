package stream

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestBasicWriteAndClose(t *testing.T) {
	sink := &minimalSink{}
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, err := s.GetWriter()
	if err != nil {
		t.Fatalf("GetWriter: %v", err)
	}
	defer w.ReleaseLock()

	if err := <-w.Write("a"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := <-w.Write("b"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := <-w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := w.Closed(testCtx(t)); err != nil {
		t.Fatalf("Closed: %v", err)
	}

	sink.mu.Lock()
	got := len(sink.writes)
	sink.mu.Unlock()
	if got != 2 {
		t.Fatalf("sink received %d writes, want 2", got)
	}
}

func TestWriteAfterCloseRejected(t *testing.T) {
	sink := &minimalSink{}
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	if err := <-w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-w.Write("too late"); err != ErrNotWritable {
		t.Fatalf("Write after close = %v, want ErrNotWritable", err)
	}
}

func TestCloseAlreadyRequestedRejected(t *testing.T) {
	sink := &recordingSink{}
	sink.setCloseDelay(50 * time.Millisecond)
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	first := w.Close()
	time.Sleep(5 * time.Millisecond)
	if err := <-w.Close(); err != ErrAlreadyClosing {
		t.Fatalf("second Close = %v, want ErrAlreadyClosing", err)
	}
	if err := <-first; err != nil {
		t.Fatalf("first Close: %v", err)
	}
}

func TestGetWriterFailsWhileLocked(t *testing.T) {
	sink := &minimalSink{}
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, err := s.GetWriter()
	if err != nil {
		t.Fatalf("GetWriter: %v", err)
	}
	if !s.Locked() {
		t.Fatal("Locked() = false, want true")
	}

	if _, err := s.GetWriter(); err != ErrLocked {
		t.Fatalf("second GetWriter = %v, want ErrLocked", err)
	}

	w.ReleaseLock()
	if s.Locked() {
		t.Fatal("Locked() = true after ReleaseLock, want false")
	}
}

func TestGetWriterAfterRelease(t *testing.T) {
	sink := &minimalSink{}
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w1, _ := s.GetWriter()
	w1.ReleaseLock()

	// The old writer is permanently detached; its own gates now read
	// ErrReleased, independent of what the stream does afterward.
	if err := w1.Ready(testCtx(t)); err != ErrReleased {
		t.Fatalf("released writer Ready() = %v, want ErrReleased", err)
	}

	w2, err := s.GetWriter()
	if err != nil {
		t.Fatalf("GetWriter after release: %v", err)
	}
	defer w2.ReleaseLock()

	if err := <-w2.Write("still works"); err != nil {
		t.Fatalf("Write via new writer: %v", err)
	}
}

func TestReleaseLockDoesNotAffectInFlightWrite(t *testing.T) {
	sink := &recordingSink{}
	sink.setWriteDelay(40 * time.Millisecond)
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()

	pending := w.Write("in flight")
	w.ReleaseLock()

	select {
	case err := <-pending:
		if err != nil {
			t.Fatalf("in-flight write settlement = %v, want nil", err)
		}
	case <-testCtx(t).Done():
		t.Fatal("in-flight write promise never settled after release")
	}
}

func TestBackpressureBlocksReady(t *testing.T) {
	sink := &recordingSink{}
	sink.setWriteDelay(40 * time.Millisecond)
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	if err := w.Ready(testCtx(t)); err != nil {
		t.Fatalf("initial Ready: %v", err)
	}

	first := w.Write("a")
	second := w.Write("b")

	time.Sleep(10 * time.Millisecond)
	if desired, ok := w.DesiredSize(); !ok || desired > 0 {
		t.Fatalf("DesiredSize = %v, %v, want <= 0, true", desired, ok)
	}

	if err := w.Ready(testCtx(t)); err != nil {
		t.Fatalf("Ready after backpressure cleared: %v", err)
	}

	if err := <-first; err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second write: %v", err)
	}
}

func TestInfiniteSizeForcesBackpressure(t *testing.T) {
	sink := &minimalSink{}
	s, err := New(testCtx(t), sink, Strategy{
		HighWaterMark: 4,
		Size:          func(any) (float64, error) { return math.Inf(1), nil },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	if err := <-w.Write("huge"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	desired, ok := w.DesiredSize()
	if !ok {
		t.Fatal("DesiredSize ok = false, want true")
	}
	if !math.IsInf(desired, -1) {
		t.Fatalf("DesiredSize = %v, want -Inf", desired)
	}
}

func TestZeroChunkClose(t *testing.T) {
	sink := &recordingSink{}
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	if err := <-w.Close(); err != nil {
		t.Fatalf("Close with empty queue: %v", err)
	}
	if sink.wasClosed() != true {
		t.Fatal("sink.Close was never called")
	}
	if len(sink.writeCalls()) != 0 {
		t.Fatal("expected no writes before an empty-queue close")
	}
}

func TestSinkWriteErrorPropagatesAndRejectsQueued(t *testing.T) {
	sink := &recordingSink{}
	sink.setWriteDelay(20 * time.Millisecond)
	sink.setErrorOnNth(1)
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	first := w.Write("boom")
	second := w.Write("never written")

	if err := <-first; err == nil {
		t.Fatal("expected first write to fail")
	}
	if err := <-second; err == nil {
		t.Fatal("expected queued write to be rejected once the stream errors")
	}

	if err := w.Ready(testCtx(t)); err == nil {
		t.Fatal("expected Ready to reject on an errored stream")
	}
}

func TestAbortRejectsPendingWrites(t *testing.T) {
	sink := &recordingSink{}
	sink.setWriteDelay(200 * time.Millisecond)
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	pending := w.Write("in flight")
	time.Sleep(10 * time.Millisecond) // let Start settle so the write is dispatched
	queued := w.Write("never dispatched")

	reason := errors.New("caller gave up")
	if err := w.Abort(testCtx(t), reason); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if err := <-queued; err == nil {
		t.Fatal("queued write should be rejected by abort")
	}

	select {
	case <-pending:
		// settles once the in-flight sink.Write call returns; either
		// outcome is acceptable, we only care that it does not hang.
	case <-testCtx(t).Done():
		t.Fatal("in-flight write never settled after abort")
	}

	aborted, gotReason := sink.wasAborted()
	if !aborted {
		t.Fatal("sink.Abort was never called")
	}
	if gotReason != reason {
		t.Fatalf("abort reason = %v, want %v", gotReason, reason)
	}
}

func TestAbortOnAlreadyAbortingStream(t *testing.T) {
	sink := &recordingSink{}
	sink.setWriteDelay(200 * time.Millisecond)
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	w.Write("in flight")
	time.Sleep(10 * time.Millisecond) // let Start settle so the write is dispatched

	done := make(chan error, 1)
	go func() { done <- w.Abort(testCtx(t), errors.New("first")) }()
	time.Sleep(10 * time.Millisecond)

	if err := w.Abort(testCtx(t), errors.New("second")); err != ErrAbortPending {
		t.Fatalf("second Abort = %v, want ErrAbortPending", err)
	}

	<-done
}

func TestCloseRacingWithAbortClosePriorityOverInFlight(t *testing.T) {
	sink := &recordingSink{}
	sink.setCloseDelay(80 * time.Millisecond)
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	closeDone := w.Close()
	time.Sleep(10 * time.Millisecond) // ensure close is in flight

	abortDone := make(chan error, 1)
	go func() { abortDone <- w.Abort(testCtx(t), errors.New("too late")) }()

	if err := <-closeDone; err != nil {
		t.Fatalf("close that was already in flight should still resolve, got %v", err)
	}

	// The abort call adopts the close's fate: since the close won the
	// race, Abort itself resolves successfully.
	if err := <-abortDone; err != nil {
		t.Fatalf("abort racing a winning close = %v, want nil", err)
	}

	var afterClose *AbortAfterCloseError
	if err := w.Closed(testCtx(t)); !errors.As(err, &afterClose) {
		t.Fatalf("Closed() error = %v, want *AbortAfterCloseError", err)
	}
}

func TestStreamAbortFailsWhileLocked(t *testing.T) {
	sink := &minimalSink{}
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	if err := s.Abort(testCtx(t), errors.New("x")); err != ErrLocked {
		t.Fatalf("Stream.Abort while locked = %v, want ErrLocked", err)
	}
}

func TestWriterConstructedOverPendingAbort(t *testing.T) {
	sink := &recordingSink{}
	sink.setWriteDelay(100 * time.Millisecond)
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()

	w.Write("in flight")
	time.Sleep(10 * time.Millisecond) // let Start settle so the write is dispatched
	abortDone := make(chan error, 1)
	go func() { abortDone <- w.Abort(testCtx(t), errors.New("shutting down")) }()
	time.Sleep(10 * time.Millisecond)

	// Release mid-abort and attach a fresh writer while the abort is
	// still pending dispatch of sink.Abort.
	w.ReleaseLock()
	w2, err := s.GetWriter()
	if err != nil {
		t.Fatalf("GetWriter over pending abort: %v", err)
	}
	defer w2.ReleaseLock()

	if err := w2.Ready(testCtx(t)); err == nil {
		t.Fatal("a writer constructed over a pending abort should see a rejected ready")
	}

	<-abortDone
}

func TestAdvanceAfterDelayedStart(t *testing.T) {
	sink := &recordingSink{}
	started := make(chan struct{})
	startSink := &delayedStartSink{recordingSink: sink, ready: started}

	s, err := New(testCtx(t), startSink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	// Write before Start has resolved: it must queue rather than dispatch.
	pending := w.Write("queued before start")
	time.Sleep(10 * time.Millisecond)
	if got := len(sink.writeCalls()); got != 0 {
		t.Fatalf("sink received %d writes before start resolved, want 0", got)
	}

	close(started)

	if err := <-pending; err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := len(sink.writeCalls()); got != 1 {
		t.Fatalf("sink received %d writes, want 1", got)
	}
}

// delayedStartSink blocks Start until ready is closed, to exercise the
// "queued before the sink finished starting" path.
type delayedStartSink struct {
	*recordingSink
	ready chan struct{}
}

func (d *delayedStartSink) Start(ctx context.Context, c *Controller) error {
	<-d.ready
	return d.recordingSink.Start(ctx, c)
}
