package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for raw scan payload archival.
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error
}

// Noop is an ObjectStorage that discards uploads. Used when payload archival
// is disabled in configuration.
type Noop struct{}

// Upload discards the payload.
func (Noop) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return nil
}

// Download always reports the object as missing.
func (Noop) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, ErrObjectNotFound
}

// Exists always returns false.
func (Noop) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

// Delete is a no-op.
func (Noop) Delete(ctx context.Context, key string) error {
	return nil
}
