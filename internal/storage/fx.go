package storage

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/covercheck/internal/config"
)

var Module = fx.Module("storage",
	fx.Provide(NewDocumentStore),
)

// NewDocumentStore uses MinIO when credentials are configured and falls
// back to the in-memory store otherwise.
func NewDocumentStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (DocumentStore, error) {
	log = log.Named("storage")
	sc := cfg.Storage
	if strings.TrimSpace(sc.Endpoint) == "" || sc.AccessKey == "" || sc.SecretKey == "" {
		if cfg.IsProduction() {
			log.Warn("object storage not configured, documents are kept in memory")
		} else {
			log.Info("using in-memory document store")
		}
		return NewMemoryStore(), nil
	}

	store, err := NewMinioStore(sc)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := store.EnsureBucket(ctx); err != nil {
				return err
			}
			log.Info("document bucket ready", zap.String("endpoint", sc.Endpoint), zap.String("bucket", sc.Bucket))
			return nil
		},
	})
	return store, nil
}
