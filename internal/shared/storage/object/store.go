package object

import (
	"context"
	"errors"
	"io"
)

// ErrStorage is the generic storage failure kind. Backend-specific errors
// are wrapped so callers never need to understand backend internals.
var ErrStorage = errors.New("object storage failure")

// BlobStore defines the contract for streaming binary objects to and from
// the backing store. Put must not buffer the full payload; it reports the
// number of bytes written via a running counter.
type BlobStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
