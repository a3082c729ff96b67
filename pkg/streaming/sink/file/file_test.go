package file

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mukulmishra18/wstream/internal/testutil"
	gferrors "github.com/mukulmishra18/wstream/pkg/common/errors"
)

func TestNewRequiresWriter(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing Writer")
	}
}

func TestWriteSucceeds(t *testing.T) {
	mw := testutil.NewMockWriter()
	sink, err := New(Config{Writer: mw})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := sink.Write(context.Background(), []byte("hello"), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := mw.String(); got != "hello" {
		t.Fatalf("buffer = %q, want %q", got, "hello")
	}
}

func TestWriteRetriesThenSucceeds(t *testing.T) {
	mw := testutil.NewMockWriter()
	mw.SetErrorOnNth(1)
	sink, err := New(Config{Writer: mw, MaxRetries: 2, RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The mock errors exactly once, on the first call; the retry loop's
	// second attempt goes through the unmodified mock and succeeds.
	if err := sink.Write(context.Background(), []byte("retry me"), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestWriteFailsAfterExhaustingRetries(t *testing.T) {
	mw := testutil.NewMockWriter()
	boom := errors.New("disk full")
	mw.SetAlwaysError(boom)
	sink, err := New(Config{Writer: mw, MaxRetries: 2, RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := sink.Write(context.Background(), []byte("x"), nil); !errors.Is(err, boom) {
		t.Fatalf("Write error = %v, want wrapping %v", err, boom)
	}
	if got, want := mw.WriteCount(), 3; got != want {
		t.Fatalf("write attempts = %d, want %d", got, want)
	}
}

func TestWriteDeadlineExceededDuringRetryIsTimeout(t *testing.T) {
	mw := testutil.NewMockWriter()
	mw.SetAlwaysError(errors.New("still failing"))
	sink, err := New(Config{Writer: mw, MaxRetries: 5, RetryDelay: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = sink.Write(ctx, []byte("x"), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Write error = %v, want wrapping context.DeadlineExceeded", err)
	}
	if !errors.Is(err, gferrors.ErrTimeout) {
		t.Fatalf("Write error = %v, want wrapping gferrors.ErrTimeout", err)
	}
	if !gferrors.IsRetryable(err) {
		t.Fatal("expected deadline-exceeded write error to be classified as retryable")
	}
	if !gferrors.IsTemporary(err) {
		t.Fatal("expected deadline-exceeded write error to be classified as temporary")
	}
}

func TestWriteCanceledDuringRetry(t *testing.T) {
	mw := testutil.NewMockWriter()
	mw.SetAlwaysError(errors.New("still failing"))
	sink, err := New(Config{Writer: mw, MaxRetries: 5, RetryDelay: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err = sink.Write(ctx, []byte("x"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Write error = %v, want wrapping context.Canceled", err)
	}
	if errors.Is(err, gferrors.ErrTimeout) {
		t.Fatal("plain cancellation should not be classified as a timeout")
	}
}

func TestWriteRejectsUnsupportedChunk(t *testing.T) {
	mw := testutil.NewMockWriter()
	sink, err := New(Config{Writer: mw})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sink.Write(context.Background(), 123, nil); !errors.Is(err, ErrUnsupportedChunk) {
		t.Fatalf("Write error = %v, want ErrUnsupportedChunk", err)
	}
}

type flusher struct{ flushed bool }

func (f *flusher) Flush() error {
	f.flushed = true
	return nil
}

func TestCloseFlushes(t *testing.T) {
	mw := testutil.NewMockWriter()
	fl := &flusher{}
	sink, err := New(Config{Writer: mw, Flusher: fl})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sink.Close(context.Background(), nil); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fl.flushed {
		t.Fatal("expected Flush to be called")
	}
}
