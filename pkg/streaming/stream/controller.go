package stream

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mukulmishra18/wstream/pkg/metrics"
)

// Controller owns the size queue and queuing strategy for a single
// Stream, and is the only thing that ever calls into the Sink. It is
// constructed once per Stream and never replaced.
type Controller struct {
	stream   *Stream
	sink     Sink
	strategy Strategy

	queue      sizeQueue
	started    bool
	opInFlight bool

	metrics        *metrics.Registry
	metricsEnabled bool
	streamName     string
}

func newController(stream *Stream, sink Sink, strategy Strategy, reg *metrics.Registry, name string) *Controller {
	return &Controller{
		stream:         stream,
		sink:           sink,
		strategy:       strategy,
		metrics:        reg,
		metricsEnabled: reg != nil,
		streamName:     name,
	}
}

// EnableMetrics implements metrics.Instrumentable, letting a running
// stream's instrumentation be turned on (or pointed at a different
// registry) after construction. cfg.Enabled gates whether this call
// actually takes effect: with Enabled false it changes nothing.
func (c *Controller) EnableMetrics(cfg metrics.Config) error {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	if !cfg.Enabled {
		return nil
	}
	c.metricsEnabled = true
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c.metrics = metrics.NewRegistry(reg)
	return nil
}

// DisableMetrics implements metrics.Instrumentable.
func (c *Controller) DisableMetrics() {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	c.metricsEnabled = false
	c.metrics = nil
}

// MetricsEnabled implements metrics.Instrumentable.
func (c *Controller) MetricsEnabled() bool {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	return c.metricsEnabled
}

// Error is the controller-facing surface given to the sink: it errors
// the stream, but only while the stream is still writable.
func (c *Controller) Error(e error) {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	if c.stream.state != stateWritable {
		return
	}
	c.stream.transitionToErroredLocked(e)
}

// DesiredSize reports how much room remains under the high water mark.
// A zero or negative value means the stream is signalling backpressure.
func (c *Controller) DesiredSize() float64 {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	return c.strategy.HighWaterMark - c.queue.totalSize()
}

// start invokes sink.Start, if present, on its own goroutine. Until it
// settles, advance is a no-op. Must be called without the stream's lock
// held (it acquires it itself once the sink call returns).
//
// ctx bounds only the Start call itself: every chunk dispatched once
// Start resolves, here or later, goes to the sink with a fresh
// stream-lifetime context, never one that can already be expired by
// the time a write is actually due.
func (c *Controller) start(ctx context.Context) {
	starter, ok := c.sink.(Starter)
	if !ok {
		c.stream.mu.Lock()
		c.started = true
		c.advanceLocked(context.Background())
		c.stream.mu.Unlock()
		return
	}

	go func() {
		err := starter.Start(ctx, c)

		c.stream.mu.Lock()
		defer c.stream.mu.Unlock()
		if err != nil {
			c.stream.errorIfNeededLocked(err)
			return
		}
		c.started = true
		c.advanceLocked(context.Background())
	}()
}

// write computes the chunk's size, enqueues it, recomputes backpressure,
// and attempts to advance the queue. Must be called with the lock held.
func (c *Controller) write(ctx context.Context, chunk any) {
	size, err := c.strategy.sizeOf(chunk)
	if err != nil {
		c.stream.errorIfNeededLocked(err)
		return
	}

	if err := c.queue.enqueue(chunk, size); err != nil {
		c.stream.errorIfNeededLocked(err)
		return
	}

	if c.metrics != nil {
		c.metrics.StreamItems.WithLabelValues("write", c.streamName).Inc()
		c.metrics.StreamBufferSize.WithLabelValues(c.streamName).Set(float64(c.queue.len()))
		c.metrics.StreamBufferUsage.WithLabelValues(c.streamName).Set(c.queue.totalSize())
	}

	if c.stream.state == stateWritable && c.stream.closeRequest == nil {
		c.updateBackpressureLocked(c.desiredSizeIsNegativeLocked())
	}

	c.advanceLocked(ctx)
}

// updateBackpressureLocked applies bp via Stream.updateBackpressureLocked
// and, if it actually flips the stream's backpressure state, records the
// transition. Must be called with the lock held.
func (c *Controller) updateBackpressureLocked(bp bool) {
	before := c.stream.backpressure
	c.stream.updateBackpressureLocked(bp)
	if c.metrics == nil || bp == before {
		return
	}
	kind := "backpressure_relieved"
	if bp {
		kind = "backpressure_applied"
	}
	c.metrics.BackpressureEvents.WithLabelValues(kind, c.streamName).Inc()
}

// close enqueues the close sentinel and attempts to advance.
func (c *Controller) close(ctx context.Context) {
	c.queue.enqueueClose()
	c.advanceLocked(ctx)
}

func (c *Controller) desiredSizeIsNegativeLocked() bool {
	return c.strategy.HighWaterMark-c.queue.totalSize() <= 0
}

// advanceLocked dispatches the next sink operation, if any is due. Must
// be called with the stream's lock held; the sink call itself runs on its
// own goroutine, which reacquires the lock once the call returns.
func (c *Controller) advanceLocked(ctx context.Context) {
	if c.stream.state != stateWritable || !c.started || c.opInFlight || c.queue.len() == 0 {
		return
	}

	head := c.queue.peek()
	if head.isClose {
		c.processCloseLocked(ctx)
		return
	}
	c.processWriteLocked(ctx, head.chunk)
}

// processWriteLocked moves the head write request to in-flight and
// dispatches sink.Write on its own goroutine.
func (c *Controller) processWriteLocked(ctx context.Context, chunk any) {
	assertf(c.stream.inflightWrite == nil, "two write operations in flight")
	assertf(len(c.stream.writeRequests) > 0, "dispatching write with no pending request")

	c.opInFlight = true
	c.stream.inflightWrite = c.stream.writeRequests[0]
	c.stream.writeRequests = c.stream.writeRequests[1:]

	if c.metrics != nil {
		c.metrics.StreamOperations.WithLabelValues("write", c.streamName).Inc()
	}

	go func() {
		err := c.sink.Write(ctx, chunk, c)

		c.stream.mu.Lock()
		defer c.stream.mu.Unlock()
		c.opInFlight = false

		if err != nil {
			wasErrored := c.stream.state == stateErrored
			if c.metrics != nil {
				c.metrics.StreamErrors.WithLabelValues("write", c.streamName).Inc()
			}
			c.stream.finishInflightWriteWithErrorLocked(err)
			if !wasErrored {
				c.queue.clear()
			}
			return
		}

		c.stream.finishInflightWriteLocked(ctx)
		if c.stream.state != stateWritable {
			return
		}
		c.queue.dequeue()
		if c.stream.closeRequest == nil {
			c.updateBackpressureLocked(c.desiredSizeIsNegativeLocked())
		}
		c.advanceLocked(ctx)
	}()
}

// processCloseLocked moves the close request to in-flight and dispatches
// sink.Close, if the sink declares one, on its own goroutine.
func (c *Controller) processCloseLocked(ctx context.Context) {
	assertf(c.stream.inflightClose == nil, "two close operations in flight")
	assertf(c.stream.closeRequest != nil, "dispatching close with no pending request")

	c.opInFlight = true
	c.stream.inflightClose = c.stream.closeRequest
	c.stream.closeRequest = nil
	c.queue.dequeue()
	assertf(c.queue.len() == 0, "queue non-empty after close sentinel dequeued")

	if c.metrics != nil {
		c.metrics.StreamOperations.WithLabelValues("close", c.streamName).Inc()
	}

	closer, ok := c.sink.(Closer)
	if !ok {
		c.opInFlight = false
		c.stream.finishInflightCloseLocked()
		return
	}

	go func() {
		err := closer.Close(ctx, c)

		c.stream.mu.Lock()
		defer c.stream.mu.Unlock()
		c.opInFlight = false

		if err != nil {
			if c.metrics != nil {
				c.metrics.StreamErrors.WithLabelValues("close", c.streamName).Inc()
			}
			c.stream.finishInflightCloseWithErrorLocked(err)
			return
		}
		c.stream.finishInflightCloseLocked()
	}()
}

// abort clears the queue and forwards to sink.Abort, if present. Must be
// called without the lock held; it does not touch stream state itself,
// that is the caller's (Stream.abortLocked's) job.
func (c *Controller) abort(ctx context.Context, reason error) error {
	c.stream.mu.Lock()
	c.queue.clear()
	c.stream.mu.Unlock()

	if c.metrics != nil {
		c.metrics.BackpressureEvents.WithLabelValues("abort", c.streamName).Inc()
	}

	aborter, ok := c.sink.(Aborter)
	if !ok {
		return nil
	}
	return aborter.Abort(ctx, reason)
}
