package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/cleared-dev/payoffcheck/internal/config"
)

// Open builds the backend named by cfg.Backend. Relative paths resolve
// against root. The returned closer releases connections and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig, root string, logger *slog.Logger) (Store, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	switch cfg.Backend {
	case "csv", "":
		return NewCSVStore(resolve(cfg.Dir), logger), nopCloser{}, nil
	case "xlsx":
		return NewXLSXStore(resolve(cfg.Dir), logger), nopCloser{}, nil
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "sqlite":
		s, err := OpenSQLite(resolve(cfg.SQLite.Path), logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "s3":
		s, err := NewS3Store(ctx, S3Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			UsePathStyle: cfg.S3.UsePathStyle,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case "redis":
		s := NewRedisStore(cfg.Redis.Addr, cfg.Redis.Prefix, logger)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
