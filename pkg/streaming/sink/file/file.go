// Package file provides a stream.Sink that writes chunks to an io.Writer,
// retrying transient write failures with a fixed delay between attempts.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gfcontext "github.com/mukulmishra18/wstream/pkg/common/context"
	gferrors "github.com/mukulmishra18/wstream/pkg/common/errors"
	"github.com/mukulmishra18/wstream/pkg/metrics"
	"github.com/mukulmishra18/wstream/pkg/streaming/stream"
)

// ErrUnsupportedChunk is returned when a chunk is neither []byte nor string.
var ErrUnsupportedChunk = errors.New("file sink: chunk must be []byte or string")

// Config configures a Sink.
type Config struct {
	// Writer is the destination. Required.
	Writer io.Writer

	// MaxRetries is the number of retry attempts after an initial failed
	// write. Zero disables retries; a negative value is replaced by 3.
	MaxRetries int

	// RetryDelay is the delay between retry attempts. Default: 100ms.
	RetryDelay time.Duration

	// Flusher, if set, is called once during Close (e.g. a *bufio.Writer
	// wrapping the destination). It is independent of Writer.
	Flusher interface{ Flush() error }

	// Metrics, if set, receives WriterFlushes/WriterBytesWritten counts.
	Metrics *metrics.Registry

	// WriterName labels metrics reported through Metrics. Defaults to "file".
	WriterName string
}

// Sink writes chunks to an io.Writer, retrying failed writes a bounded
// number of times before giving up and erroring the stream.
type Sink struct {
	cfg Config
}

// New constructs a Sink. Writer is required.
func New(cfg Config) (*Sink, error) {
	if cfg.Writer == nil {
		return nil, errors.New("file sink: Writer is required")
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.WriterName == "" {
		cfg.WriterName = "file"
	}
	return &Sink{cfg: cfg}, nil
}

// Write implements stream.Sink, retrying a failed write up to MaxRetries
// times with RetryDelay between attempts.
func (s *Sink) Write(ctx context.Context, chunk any, c *stream.Controller) error {
	data, err := toBytes(chunk)
	if err != nil {
		return err
	}

	var lastErr error
	written := 0
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				if gfcontext.IsTimedOut(ctx) {
					return fmt.Errorf("file sink: write canceled after %d attempts (deadline exceeded): %w: %w", attempt, gferrors.ErrTimeout, ctx.Err())
				}
				if gfcontext.IsCanceled(ctx) {
					return fmt.Errorf("file sink: write canceled after %d attempts: %w", attempt, ctx.Err())
				}
				return ctx.Err()
			}
		}

		n, err := s.cfg.Writer.Write(data[written:])
		written += n
		if err != nil {
			lastErr = err
			continue
		}
		if written >= len(data) {
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.WriterBytesWritten.WithLabelValues(s.cfg.WriterName).Add(float64(len(data)))
			}
			return nil
		}
	}

	return fmt.Errorf("file sink: write failed after %d attempts: %w", s.cfg.MaxRetries+1, lastErr)
}

// Close implements stream.Closer, flushing the underlying writer if it
// supports Flush.
func (s *Sink) Close(ctx context.Context, c *stream.Controller) error {
	if s.cfg.Flusher == nil {
		return nil
	}
	err := s.cfg.Flusher.Flush()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.WriterFlushes.WithLabelValues(s.cfg.WriterName).Inc()
	}
	return err
}

func toBytes(chunk any) ([]byte, error) {
	switch v := chunk.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, ErrUnsupportedChunk
	}
}
