// Package mirror copies the persisted windows into Redis and announces new
// simple lines on a pub/sub channel.
package mirror

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/zonefeed/internal/ingest"
)

// Default key layout.
const (
	DefaultPrefix  = "zonefeed"
	DefaultChannel = "zonefeed:lines"
)

// Redis mirrors both windows as Redis lists and publishes each new simple
// line. It implements ingest.Sink.
type Redis struct {
	client  *redis.Client
	prefix  string
	channel string
	logger  *slog.Logger
}

// NewRedis creates a Redis mirror. Empty prefix and channel select the defaults.
func NewRedis(client *redis.Client, prefix, channel string, logger *slog.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:  client,
		prefix:  prefix,
		channel: channel,
		logger:  logger,
	}
}

// Name implements ingest.Sink.
func (r *Redis) Name() string {
	return "redis"
}

// Key returns the list key holding the named window.
func (r *Redis) Key(window string) string {
	return r.prefix + ":" + window
}

// Channel returns the pub/sub channel new lines are published on.
func (r *Redis) Channel() string {
	return r.channel
}

// Publish replaces both mirrored lists with the committed windows and
// publishes the batch's simple lines, all in one transaction.
func (r *Redis) Publish(ctx context.Context, u ingest.Update) error {
	pipe := r.client.TxPipeline()
	replaceList(ctx, pipe, r.Key(ingest.DetailedStore), u.Detailed)
	replaceList(ctx, pipe, r.Key(ingest.SimpleStore), u.Simple)
	for _, res := range u.Resolved {
		pipe.Publish(ctx, r.channel, res.Line)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mirror: %w", err)
	}

	r.logger.Debug("mirrored windows to redis",
		slog.String("batch_id", u.BatchID),
		slog.Int("published", len(u.Resolved)))
	return nil
}

func replaceList(ctx context.Context, pipe redis.Pipeliner, key string, rows []string) {
	pipe.Del(ctx, key)
	if len(rows) == 0 {
		return
	}
	values := make([]interface{}, len(rows))
	for i, row := range rows {
		values[i] = row
	}
	pipe.RPush(ctx, key, values...)
}
