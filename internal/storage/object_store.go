package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

type ListResult struct {
	Keys []string

	// Truncated is set when the store had more keys than a single listing
	// returned.
	Truncated bool
}

// ObjectStore is a single bucket of objects addressed by key.
type ObjectStore interface {
	CreateBucket(ctx context.Context) error

	// GetObject returns ErrObjectNotFound if the key does not exist.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	ListObjects(ctx context.Context) (ListResult, error)

	PutObject(ctx context.Context, key string, data io.Reader, contentType string) error
}
