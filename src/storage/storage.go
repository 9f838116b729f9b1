package storage

import (
	"context"
	"fmt"

	"github.com/username/finlog/backend/src/config"
)

// Store is the object archive that keeps every accepted statement file so
// the whole transaction history can be rebuilt from it.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// New builds the store selected by OBJECT_STORE_BACKEND.
func New(ctx context.Context, cfg *config.AppConfig) (Store, error) {
	switch cfg.ObjectStoreBackend {
	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket)
	case "local":
		return NewLocalStore(cfg.LocalStoreDir)
	default:
		return nil, fmt.Errorf("unknown object store backend: %q", cfg.ObjectStoreBackend)
	}
}
