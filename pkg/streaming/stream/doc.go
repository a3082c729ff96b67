/*
Package stream implements a writable chunk-stream: a state machine that
coordinates a single producer (the Writer), a size-aware queue (the
Controller), and an opaque destination (the Sink).

# Quick start

	s, err := stream.New(ctx, mySink, stream.Strategy{HighWaterMark: 16})
	if err != nil {
		return err
	}
	w, err := s.GetWriter()
	if err != nil {
		return err
	}
	defer w.ReleaseLock()

	if err := w.Ready(ctx); err != nil {
		return err
	}
	if err := <-w.Write(chunk); err != nil {
		return err
	}
	if err := <-w.Close(); err != nil {
		return err
	}

# Backpressure

Strategy.HighWaterMark bounds the queue's total size, as computed by
Strategy.Size (defaulting to 1 per chunk, turning HighWaterMark into a
chunk count). Once the total reaches the mark, the Writer's Ready gate
blocks until the Controller has drained enough of the queue to bring
the total back under it. A producer that ignores Ready and keeps
writing anyway is not blocked; backpressure is advisory, exactly as
it is in the queue's source contract; but the queue can grow without
bound.

# Monitoring

Passing WithMetrics attaches a *metrics.Registry; every write, close,
and abort, along with queue depth and backpressure transitions, is
reported through it under the stream_name label set by WithName.
*/
package stream
