/*
Package wstream provides a Go library implementing a writable chunk-stream
core: single-writer locking, a configurable queuing strategy driving
backpressure, and deterministic write/close/abort semantics against an
opaque sink.

Core (pkg/streaming/stream):
  - Stream: the state machine (writable/closed/errored), queue, and
    pending-request bookkeeping.
  - Controller: owns the size queue and strategy, dispatches sink
    operations one at a time.
  - Writer: the exclusive handle a producer writes/closes/aborts through.

Reference sinks (pkg/streaming/sink):
  - file: retrying io.Writer sink with an optional flush on close.
  - redisstream: Redis Streams (XADD) sink.

Example usage:

	import "github.com/mukulmishra18/wstream/pkg/streaming/stream"

	s, _ := stream.New(ctx, mySink, stream.Strategy{HighWaterMark: 4})
	w, _ := s.GetWriter()
	defer w.ReleaseLock()

	if err := <-w.Write(chunk); err != nil {
		// handle rejection
	}
	<-w.Close()
*/
package wstream
