/*
Package streaming offers a writable chunk-stream abstraction for
producer/sink pipelines, plus reference sinks for driving it.

This package groups two components:

  - stream: the writable-stream core -- a single-writer locked Stream,
    a Controller that applies a queuing strategy to derive backpressure,
    and the Writer handle a producer uses to write/close/abort.
  - sink: reference Sink implementations (a retrying file/io.Writer sink
    and a Redis Streams sink) that plug into stream.Stream.

Basic usage:

	s, err := stream.New(ctx, mySink, stream.Strategy{HighWaterMark: 4})
	if err != nil {
		// handle construction error
	}

	w, err := s.GetWriter()
	if err != nil {
		// stream already locked
	}
	defer w.ReleaseLock()

	if err := <-w.Write(chunk); err != nil {
		// sink rejected the write, or stream errored
	}
	<-w.Close()

stream never touches bytes, files, or sockets itself: the sink is any
type implementing stream.Sink (plus the optional Starter/Closer/Aborter
extension interfaces). Backpressure is observed through Writer.Ready,
never by polling a buffer.
*/
package streaming
