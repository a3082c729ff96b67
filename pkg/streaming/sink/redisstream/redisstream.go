// Package redisstream provides a stream.Sink that publishes chunks onto a
// Redis Stream via XADD (approximately trimmed to MaxLen when set), and
// empties the stream with XTRIM on Abort.
package redisstream

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	gfcontext "github.com/mukulmishra18/wstream/pkg/common/context"
	"github.com/mukulmishra18/wstream/pkg/streaming/stream"
)

// Field is the Redis Stream field name chunks are written under. Chunks
// must be string, []byte, or fmt.Stringer; anything else fails the write.
const Field = "chunk"

// Config configures a Sink.
type Config struct {
	// Redis is the client used for XADD/XTRIM. Required.
	Redis redis.Cmdable

	// Key is the Redis Stream key to publish to. Required.
	Key string

	// MaxLen, if positive, is passed to XADD's approximate trim so the
	// stream never grows past roughly this many entries.
	MaxLen int64

	// OpTimeout bounds each individual Redis call. Defaults to 5s.
	OpTimeout time.Duration
}

// Sink publishes each chunk written to it as one entry on a Redis Stream.
type Sink struct {
	cfg Config
}

// New constructs a Sink. Redis and Key are required.
func New(cfg Config) (*Sink, error) {
	if cfg.Redis == nil {
		return nil, &ConfigError{Reason: "Redis client is required"}
	}
	if cfg.Key == "" {
		return nil, &ConfigError{Reason: "Key is required"}
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	return &Sink{cfg: cfg}, nil
}

// Write implements stream.Sink.
func (s *Sink) Write(ctx context.Context, chunk any, c *stream.Controller) error {
	payload, err := toPayload(chunk)
	if err != nil {
		return err
	}

	ctx, cancel := gfcontext.WithTimeoutOrCancel(ctx, s.cfg.OpTimeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.cfg.Key,
		Values: map[string]interface{}{Field: payload},
	}
	if s.cfg.MaxLen > 0 {
		args.MaxLen = s.cfg.MaxLen
		args.Approx = true
	}

	if err := s.cfg.Redis.XAdd(ctx, args).Err(); err != nil {
		return &RedisError{Op: "XADD", Err: err}
	}
	return nil
}

// Close implements stream.Closer. Nothing in Redis Streams needs an
// explicit close; this exists only so callers relying on the Closer
// extension see a clean terminal call.
func (s *Sink) Close(ctx context.Context, c *stream.Controller) error {
	return nil
}

// Abort implements stream.Aborter by trimming the stream to zero
// entries, discarding whatever was written so far.
func (s *Sink) Abort(ctx context.Context, reason error) error {
	ctx, cancel := gfcontext.WithTimeoutOrCancel(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := s.cfg.Redis.XTrimMaxLen(ctx, s.cfg.Key, 0).Err(); err != nil {
		return &RedisError{Op: "XTRIM", Err: err}
	}
	return nil
}

func toPayload(chunk any) (any, error) {
	switch v := chunk.(type) {
	case string:
		return v, nil
	case []byte:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("chunk of type %T is not string/[]byte/fmt.Stringer", chunk)}
	}
}

// RedisError wraps a failed Redis call with the operation that failed.
type RedisError struct {
	Op  string
	Err error
}

func (e *RedisError) Error() string { return fmt.Sprintf("redisstream: %s: %v", e.Op, e.Err) }
func (e *RedisError) Unwrap() error { return e.Err }

// ConfigError reports an invalid Config, or a chunk of an unsupported type.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "redisstream: " + e.Reason }
