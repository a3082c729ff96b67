// Package metrics provides Prometheus instrumentation for wstream components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the metric instances a Stream reports through.
type Registry struct {
	StreamOperations   *prometheus.CounterVec
	StreamItems        *prometheus.CounterVec
	StreamErrors       *prometheus.CounterVec
	StreamBufferSize   *prometheus.GaugeVec
	StreamBufferUsage  *prometheus.GaugeVec
	BackpressureEvents *prometheus.CounterVec
	WriterFlushes      *prometheus.CounterVec
	WriterBytesWritten *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by wstream components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		StreamOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wstream",
				Subsystem: "stream",
				Name:      "operations_total",
				Help:      "Total number of stream operations dispatched to a sink",
			},
			[]string{"operation", "stream_name"},
		),

		StreamItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wstream",
				Subsystem: "stream",
				Name:      "items_processed_total",
				Help:      "Total number of chunks accepted by a stream",
			},
			[]string{"operation", "stream_name"},
		),

		StreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wstream",
				Subsystem: "stream",
				Name:      "errors_total",
				Help:      "Total number of sink operation failures",
			},
			[]string{"operation", "stream_name"},
		),

		StreamBufferSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "wstream",
				Subsystem: "stream",
				Name:      "buffer_size",
				Help:      "Number of records currently queued",
			},
			[]string{"stream_name"},
		),

		StreamBufferUsage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "wstream",
				Subsystem: "stream",
				Name:      "buffer_usage",
				Help:      "Current total queued size, per the strategy's Size function",
			},
			[]string{"stream_name"},
		),

		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wstream",
				Subsystem: "backpressure",
				Name:      "events_total",
				Help:      "Total number of backpressure state transitions and aborts",
			},
			[]string{"kind", "stream_name"},
		),

		WriterFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wstream",
				Subsystem: "writer",
				Name:      "flushes_total",
				Help:      "Total number of buffered-sink flushes",
			},
			[]string{"writer_name"},
		),

		WriterBytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wstream",
				Subsystem: "writer",
				Name:      "bytes_written_total",
				Help:      "Total bytes written by a sink",
			},
			[]string{"writer_name"},
		),
	}
}
