package registry

import (
	"context"
	"io"
	"time"
)

// UploadStatus is a point-in-time snapshot of a chunked upload session.
type UploadStatus struct {
	// ID is the opaque session token.
	ID string

	// Name is the repository the upload targets.
	Name string

	// Offset is the last uploaded byte, or -1 when no chunk has been
	// accepted yet.
	Offset int64

	// Size is the total number of bytes accepted so far.
	Size int64

	// StartedAt is the session creation time.
	StartedAt time.Time

	// LastActive is the time of the last accepted chunk or status change.
	LastActive time.Time
}

// UploadService drives chunked blob uploads. Sessions accept strictly
// sequential byte ranges and are discarded after completion, cancellation
// or idle expiry; a terminated session is indistinguishable from one that
// never existed.
type UploadService interface {
	// Start opens a new session against the repository.
	Start(ctx context.Context, name string) (UploadStatus, error)

	// Status returns the session's progress. A session idle beyond the
	// manager's timeout is expired on access and reported unknown.
	Status(ctx context.Context, id string) (UploadStatus, error)

	// PutChunk accepts the inclusive byte range [start, end]. The first
	// chunk must start at zero; each subsequent chunk must start exactly
	// one past the last accepted byte. A rejected chunk leaves the
	// session unchanged.
	PutChunk(ctx context.Context, id string, content io.Reader, start, end int64) (UploadStatus, error)

	// Complete assembles the accepted ranges into one contiguous stream,
	// removes the session and its chunk objects, and returns the stream
	// together with the target repository. The caller passes the stream
	// to the blob store.
	Complete(ctx context.Context, id string) (io.ReadCloser, string, error)

	// Cancel discards the session and its chunk objects.
	Cancel(ctx context.Context, id string) error

	// SweepExpired expires every session idle beyond the timeout and
	// returns the number removed. Intended to run periodically so that
	// abandoned uploads do not accumulate chunk storage.
	SweepExpired(ctx context.Context) int
}
