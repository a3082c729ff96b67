/*
Package redisstream adapts github.com/redis/go-redis/v9 into a stream.Sink
that publishes each written chunk as one entry on a Redis Stream key.

Example usage:

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	sink, err := redisstream.New(redisstream.Config{
		Redis:  rdb,
		Key:    "uploads",
		MaxLen: 10000,
	})
	if err != nil {
		log.Fatal(err)
	}

	s, _ := stream.New(ctx, sink, stream.Strategy{HighWaterMark: 64})

Aborting the stream issues XTRIM <key> MAXLEN 0, discarding whatever
was already written -- mirroring the core's "abort clears the queue"
semantics one layer down.
*/
package redisstream
