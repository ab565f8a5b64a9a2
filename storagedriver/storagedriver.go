// Package storagedriver defines the key/value object-store interface the
// registry's stores are built on. Keys are opaque slash-separated strings;
// drivers provide byte-oriented primitives only and know nothing about
// registry entities.
package storagedriver

import (
	"context"
	"fmt"
	"io"
	"time"
)

// FileInfo describes a stored object.
type FileInfo struct {
	// Path is the object's key.
	Path string

	// Size of the object in bytes.
	Size int64

	// ContentType recorded with the object, if any.
	ContentType string

	// ModTime is the object's last modification time.
	ModTime time.Time
}

// StorageDriver is the set of primitives the registry consumes from a
// backend. Implementations must be safe for concurrent use; the only
// consistency assumed by callers is read-after-write on a single key.
type StorageDriver interface {
	// Name returns the driver's registered name.
	Name() string

	// GetContent returns the full content at path. Intended for small
	// objects such as manifests and index documents.
	GetContent(ctx context.Context, path string) ([]byte, error)

	// PutContent stores content at path with the given content type.
	PutContent(ctx context.Context, path string, content []byte, contentType string) error

	// Reader returns a stream over the content at path.
	Reader(ctx context.Context, path string) (io.ReadCloser, error)

	// ReadRange returns a stream over length bytes starting at offset.
	// The caller validates the range against the object size beforehand.
	ReadRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error)

	// PutReader streams content to path. Size is advisory; a negative
	// size means unknown.
	PutReader(ctx context.Context, path string, content io.Reader, size int64, contentType string) error

	// Stat returns metadata for the object at path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// Exists reports whether an object is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns all keys beginning with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// ListPage returns up to n keys beginning with prefix that sort
	// strictly after last, in lexical order, and reports whether more
	// keys remain.
	ListPage(ctx context.Context, prefix string, n int, last string) ([]string, bool, error)

	// Delete removes the object at path.
	Delete(ctx context.Context, path string) error
}

// PathNotFoundError is returned when operating on a nonexistent key.
type PathNotFoundError struct {
	Path       string
	DriverName string
}

func (err PathNotFoundError) Error() string {
	return fmt.Sprintf("%s: path not found: %s", err.DriverName, err.Path)
}

// IsPathNotFound reports whether err is a PathNotFoundError from any
// driver.
func IsPathNotFound(err error) bool {
	_, ok := err.(PathNotFoundError)
	return ok
}
