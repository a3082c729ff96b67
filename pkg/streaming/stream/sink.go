package stream

import "context"

// Sink is the only method a writable-stream destination must provide.
// Write is called at most once at a time and receives chunks in
// submission order; its return drives queue advancement.
type Sink interface {
	Write(ctx context.Context, chunk any, c *Controller) error
}

// Starter is an optional Sink extension. If a Sink implements it, Start
// is invoked once, in the background, when the Stream is constructed, and
// no write is dispatched until it returns. A non-nil return errors the
// stream; writes queued by then are rejected with that error.
type Starter interface {
	Start(ctx context.Context, c *Controller) error
}

// Closer is an optional Sink extension, invoked once after the last
// queued chunk has been written.
type Closer interface {
	Close(ctx context.Context, c *Controller) error
}

// Aborter is an optional Sink extension, invoked at most once when the
// stream is aborted.
type Aborter interface {
	Abort(ctx context.Context, reason error) error
}

// Typed is an optional Sink extension reserved for future wire framing.
// A Sink that implements it with a non-empty Type() fails construction.
type Typed interface {
	Type() string
}
