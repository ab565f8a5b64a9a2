package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anchorage/registry"
	ctxu "github.com/anchorage/registry/context"
	"github.com/anchorage/registry/reference"
	"github.com/anchorage/registry/storagedriver"
)

// defaultUploadTimeout is how long a session may sit idle before it is
// treated as abandoned.
const defaultUploadTimeout = 24 * time.Hour

// uploadSession is the mutable state of one in-progress chunked upload.
// All mutation happens under mu so that concurrent chunk calls on the same
// session serialize instead of racing the sequentiality check.
type uploadSession struct {
	mu sync.Mutex

	id         string
	name       string
	ranges     []registry.ByteRange
	startedAt  time.Time
	lastActive time.Time
	terminated bool
}

// lastByte returns the end of the last accepted range, or -1 when no chunk
// has been accepted.
func (s *uploadSession) lastByte() int64 {
	if len(s.ranges) == 0 {
		return -1
	}
	return s.ranges[len(s.ranges)-1].End
}

func (s *uploadSession) totalBytes() int64 {
	var total int64
	for _, br := range s.ranges {
		total += br.Size()
	}
	return total
}

func (s *uploadSession) status() registry.UploadStatus {
	return registry.UploadStatus{
		ID:         s.id,
		Name:       s.name,
		Offset:     s.lastByte(),
		Size:       s.totalBytes(),
		StartedAt:  s.startedAt,
		LastActive: s.lastActive,
	}
}

// uploadManager implements registry.UploadService. Active sessions live in
// a process-wide concurrent map keyed by an opaque id; the id is a handle
// whose lifetime is explicit: inserted on Start, removed on completion,
// cancellation or expiry. Chunk payloads live in the backend under the
// session's upload prefix until the session terminates.
type uploadManager struct {
	driver   storagedriver.StorageDriver
	timeout  time.Duration
	sessions sync.Map // session id -> *uploadSession

	// now is replaceable for expiry tests.
	now func() time.Time
}

var _ registry.UploadService = &uploadManager{}

func newUploadManager(driver storagedriver.StorageDriver, timeout time.Duration) *uploadManager {
	if timeout <= 0 {
		timeout = defaultUploadTimeout
	}
	return &uploadManager{
		driver:  driver,
		timeout: timeout,
		now:     time.Now,
	}
}

func (um *uploadManager) Start(ctx context.Context, name string) (registry.UploadStatus, error) {
	if !reference.IsName(name) {
		return registry.UploadStatus{}, registry.ErrNameInvalid{Name: name}
	}

	now := um.now()
	session := &uploadSession{
		id:         uuid.NewString(),
		name:       name,
		startedAt:  now,
		lastActive: now,
	}
	um.sessions.Store(session.id, session)

	ctxu.GetLogger(ctx).WithFields(map[string]interface{}{
		"upload": session.id,
		"name":   name,
	}).Info("blob upload started")

	return session.status(), nil
}

func (um *uploadManager) Status(ctx context.Context, id string) (registry.UploadStatus, error) {
	session, err := um.active(ctx, id)
	if err != nil {
		return registry.UploadStatus{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.terminated {
		return registry.UploadStatus{}, registry.ErrUploadUnknown{ID: id}
	}
	return session.status(), nil
}

func (um *uploadManager) PutChunk(ctx context.Context, id string, content io.Reader, start, end int64) (registry.UploadStatus, error) {
	if start < 0 || end < start {
		return registry.UploadStatus{}, registry.ErrUploadInvalid{
			Reason: fmt.Sprintf("malformed range %d-%d", start, end),
		}
	}

	session, err := um.active(ctx, id)
	if err != nil {
		return registry.UploadStatus{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.terminated {
		return registry.UploadStatus{}, registry.ErrUploadUnknown{ID: id}
	}

	// Ranges must arrive contiguously from zero. A gap or overlap is
	// rejected with the session untouched, so the client can retry with
	// the correct range.
	if expected := session.lastByte() + 1; start != expected {
		return registry.UploadStatus{}, registry.ErrUploadInvalid{
			Reason: fmt.Sprintf("chunk starts at byte %d, expected %d", start, expected),
		}
	}

	chunkPath, err := pathFor(uploadChunkPathSpec{id: session.id, start: start, end: end})
	if err != nil {
		return registry.UploadStatus{}, err
	}

	if err := um.driver.PutReader(ctx, chunkPath, content, end-start+1, defaultMediaType); err != nil {
		return registry.UploadStatus{}, err
	}

	session.ranges = append(session.ranges, registry.ByteRange{Start: start, End: end})
	session.lastActive = um.now()

	return session.status(), nil
}

func (um *uploadManager) Complete(ctx context.Context, id string) (io.ReadCloser, string, error) {
	session, err := um.active(ctx, id)
	if err != nil {
		return nil, "", err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.terminated {
		return nil, "", registry.ErrUploadUnknown{ID: id}
	}

	// Assemble the accepted ranges in order. They are gap-free by
	// construction of PutChunk, but each chunk object is still checked
	// against its recorded range size.
	var assembled bytes.Buffer
	for _, br := range session.ranges {
		chunkPath, err := pathFor(uploadChunkPathSpec{id: session.id, start: br.Start, end: br.End})
		if err != nil {
			return nil, "", err
		}

		chunk, err := um.driver.GetContent(ctx, chunkPath)
		if err != nil {
			return nil, "", registry.ErrUploadInvalid{
				Reason: fmt.Sprintf("chunk %s missing: %v", br, err),
			}
		}
		if int64(len(chunk)) != br.Size() {
			return nil, "", registry.ErrUploadInvalid{
				Reason: fmt.Sprintf("chunk %s holds %d bytes", br, len(chunk)),
			}
		}

		assembled.Write(chunk)
	}

	name := session.name
	session.terminated = true
	um.sessions.Delete(session.id)
	um.reclaim(ctx, session.id)

	ctxu.GetLogger(ctx).WithFields(map[string]interface{}{
		"upload": session.id,
		"name":   name,
		"size":   assembled.Len(),
	}).Info("blob upload completed")

	return io.NopCloser(bytes.NewReader(assembled.Bytes())), name, nil
}

func (um *uploadManager) Cancel(ctx context.Context, id string) error {
	session, err := um.active(ctx, id)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.terminated {
		return registry.ErrUploadUnknown{ID: id}
	}

	session.terminated = true
	um.sessions.Delete(session.id)
	um.reclaim(ctx, session.id)

	ctxu.GetLogger(ctx).WithField("upload", session.id).Info("blob upload cancelled")
	return nil
}

func (um *uploadManager) SweepExpired(ctx context.Context) int {
	var swept int

	um.sessions.Range(func(key, value interface{}) bool {
		session := value.(*uploadSession)

		session.mu.Lock()
		expired := !session.terminated && um.now().Sub(session.lastActive) > um.timeout
		if expired {
			session.terminated = true
		}
		session.mu.Unlock()

		if expired {
			um.sessions.Delete(session.id)
			um.reclaim(ctx, session.id)
			swept++
		}
		return true
	})

	if swept > 0 {
		ctxu.GetLogger(ctx).WithField("count", swept).Info("expired blob uploads swept")
	}
	return swept
}

// active looks the session up, expiring it lazily if it has been idle
// beyond the timeout. Expired sessions are reported exactly like unknown
// ones.
func (um *uploadManager) active(ctx context.Context, id string) (*uploadSession, error) {
	value, ok := um.sessions.Load(id)
	if !ok {
		return nil, registry.ErrUploadUnknown{ID: id}
	}
	session := value.(*uploadSession)

	session.mu.Lock()
	expired := !session.terminated && um.now().Sub(session.lastActive) > um.timeout
	if expired {
		session.terminated = true
	}
	session.mu.Unlock()

	if expired {
		um.sessions.Delete(session.id)
		um.reclaim(ctx, session.id)
		return nil, registry.ErrUploadUnknown{ID: id}
	}

	return session, nil
}

// reclaim deletes every chunk object stored under the session's upload
// prefix. Failures are logged; orphaned chunks will be retried by the next
// sweep of a colliding id only, so each key is attempted independently.
func (um *uploadManager) reclaim(ctx context.Context, id string) {
	prefix, err := pathFor(uploadPathSpec{id: id})
	if err != nil {
		ctxu.GetLogger(ctx).WithError(err).Error("resolving upload prefix for cleanup")
		return
	}

	keys, err := um.driver.List(ctx, prefix)
	if err != nil {
		ctxu.GetLogger(ctx).WithError(err).WithField("upload", id).Error("listing upload chunks for cleanup")
		return
	}

	for _, key := range keys {
		if err := um.driver.Delete(ctx, key); err != nil && !storagedriver.IsPathNotFound(err) {
			ctxu.GetLogger(ctx).WithError(err).WithField("path", key).Error("deleting upload chunk")
		}
	}
}
