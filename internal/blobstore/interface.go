package blobstore

import (
	"context"
	"time"
)

// BlobStore is the storage abstraction served over HTTP and swept by the
// retention guardian.
type BlobStore interface {
	Put(ctx context.Context, content []byte) (PutResult, error)
	Open(ctx context.Context, key string) (*Blob, error)
	Delete(ctx context.Context, key string) error
	Info(ctx context.Context, key string) (string, error)
	Stat(ctx context.Context, key string) (Stat, error)
	Keys(ctx context.Context) ([]string, error)
}

// Stat is what the store knows about a blob without reading its payload.
type Stat struct {
	Key       string
	Name      string
	SizeBytes int64
	CreatedAt time.Time
}
