package ports

import (
	"context"
	"io"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key       string
	SizeBytes int64
}

// ObjectStore reads objects from bucket storage. Open returns the object
// body as a stream; callers own closing it.
type ObjectStore interface {
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
