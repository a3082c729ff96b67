// Package metrics provides Prometheus instrumentation for wstream components.
//
// # Overview
//
// The metrics package instruments a stream.Stream: operation counts,
// items processed, errors, queue depth, backpressure transitions, and
// the bytes/flushes reported by the reference sinks.
//
// # Quick Start
//
// Attach a registry at construction:
//
//	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
//	s, err := stream.New(ctx, sink, strategy, stream.WithMetrics(reg), stream.WithName("uploads"))
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation in tests:
//
//	registry := prometheus.NewRegistry()
//	reg := metrics.NewRegistry(registry)
//
// # Available Metrics
//
//   - wstream_stream_operations_total: Total number of stream operations dispatched to a sink
//   - wstream_stream_items_processed_total: Total number of chunks accepted by a stream
//   - wstream_stream_errors_total: Total number of sink operation failures
//   - wstream_stream_buffer_size: Number of records currently queued
//   - wstream_stream_buffer_usage: Current total queued size
//   - wstream_backpressure_events_total: Total number of backpressure transitions and aborts
//   - wstream_writer_flushes_total: Total number of buffered-sink flushes
//   - wstream_writer_bytes_written_total: Total bytes written by a sink
//
// # Labels
//
//   - stream_name: the name set via stream.WithName
//   - operation: "write" or "close" (aborts are counted under kind)
//   - kind: the BackpressureEvents subtype ("backpressure_applied",
//     "backpressure_relieved", or "abort")
//   - writer_name: the sink's Config.WriterName
//
// # Runtime Control
//
// *stream.Controller implements Instrumentable, so instrumentation can be
// toggled after construction:
//
//	ctrl := s.Controller()
//	ctrl.DisableMetrics()
//	ctrl.EnableMetrics(metrics.Config{Enabled: true, Registry: registry})
//	enabled := ctrl.MetricsEnabled()
package metrics
