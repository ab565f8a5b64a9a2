// Package storage implements the registry's storage engine over a
// storagedriver.StorageDriver: content-addressable blob storage with
// deduplication and post-write verification, chunked upload sessions,
// byte-exact manifest storage with a derived referrers index, and mutable
// tag pointers.
package storage

import (
	"time"

	"github.com/anchorage/registry"
	"github.com/anchorage/registry/storagedriver"
)

// Registry bundles the storage-backed services sharing one driver.
type Registry struct {
	blobs     *blobStore
	manifests *manifestStore
	tags      *tagStore
	uploads   *uploadManager
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	uploadTimeout time.Duration
}

// WithUploadTimeout overrides the idle timeout after which upload sessions
// expire. The default is 24 hours.
func WithUploadTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.uploadTimeout = timeout
	}
}

// New constructs a Registry over the given driver.
func New(driver storagedriver.StorageDriver, opts ...Option) *Registry {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	tags := &tagStore{driver: driver}
	referrers := &referrersStore{driver: driver}

	return &Registry{
		blobs:     &blobStore{driver: driver},
		manifests: &manifestStore{driver: driver, tags: tags, referrers: referrers},
		tags:      tags,
		uploads:   newUploadManager(driver, o.uploadTimeout),
	}
}

// Blobs returns the content-addressable blob store.
func (r *Registry) Blobs() registry.BlobStore {
	return r.blobs
}

// Manifests returns the manifest service.
func (r *Registry) Manifests() registry.ManifestService {
	return r.manifests
}

// Tags returns the tag service.
func (r *Registry) Tags() registry.TagService {
	return r.tags
}

// Uploads returns the chunked upload manager.
func (r *Registry) Uploads() registry.UploadService {
	return r.uploads
}
