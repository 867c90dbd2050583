package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("blobstore",
	fx.Provide(New),
)

var (
	ErrUnavailable = errors.New("blob_store_unavailable")
	ErrNotFound    = errors.New("blob_not_found")
)

// Store is the object storage the recording flow writes audio into.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	MakePublic(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the configured store once at startup.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Blob.Driver)) {
	case "memory":
		log.Warn("using in-memory blob store; uploads are not persisted")
		return NewMemoryStore(cfg.Blob.PublicBaseURL), nil
	case "minio", "s3", "":
		store, err := NewMinioStore(cfg.Blob, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return store.EnsureBucket(ctx)
			},
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", cfg.Blob.Driver)
	}
}
