/*
Package file adapts any io.Writer into a stream.Sink, with bounded retry
on transient write failures.

Example usage:

	f, _ := os.Create("out.log")
	sink, _ := file.New(file.Config{Writer: f, Flusher: someFlusher})
	s, _ := stream.New(ctx, sink, stream.Strategy{HighWaterMark: 32})
*/
package file
