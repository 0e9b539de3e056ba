package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/zonefeed/internal/archive"
	"github.com/onnwee/zonefeed/internal/config"
	"github.com/onnwee/zonefeed/internal/db"
	"github.com/onnwee/zonefeed/internal/health"
	"github.com/onnwee/zonefeed/internal/history"
	"github.com/onnwee/zonefeed/internal/ingest"
	"github.com/onnwee/zonefeed/internal/mirror"
)

// buildSinks connects every configured sink and registers its readiness
// check. The returned func releases the connections.
func buildSinks(ctx context.Context, cfg *config.Config, probes *health.Handlers, logger *slog.Logger) ([]ingest.Sink, func(), error) {
	var (
		sinks   []ingest.Sink
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		closers = append(closers, func() { _ = client.Close() })
		sinks = append(sinks, mirror.NewRedis(client, "", "", logger))
		probes.Register("redis", health.NewRedisChecker(client))
		logger.Info("redis mirror enabled", "addr", opts.Addr)
	}

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("history database: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		if err := history.EnsureSchema(ctx, conn); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("history schema: %w", err)
		}
		sinks = append(sinks, history.NewPostgres(conn, logger))
		probes.Register("database", health.NewDBChecker(conn))
		logger.Info("postgres history enabled")
	}

	if cfg.ArchiveEnabled() {
		client, err := archive.NewClient(archive.Config{
			Bucket:          cfg.ArchiveBucket,
			AccessKeyID:     cfg.ArchiveAccessKeyID,
			SecretAccessKey: cfg.ArchiveSecretAccessKey,
			Endpoint:        cfg.ArchiveEndpoint,
			Prefix:          cfg.ArchivePrefix,
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("archive: %w", err)
		}
		sinks = append(sinks, archive.New(client, cfg.ArchiveBucket, cfg.ArchivePrefix, logger))
		logger.Info("snapshot archive enabled", "bucket", cfg.ArchiveBucket)
	}

	return sinks, closeAll, nil
}
