package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/anchorage/registry"
	ctxu "github.com/anchorage/registry/context"
	"github.com/anchorage/registry/reference"
	"github.com/anchorage/registry/storagedriver"
)

const defaultMediaType = "application/octet-stream"

// blobStore implements registry.BlobStore over a storage driver. Blobs are
// stored once under their global content-addressed key; the repository
// argument is validated but does not scope storage.
type blobStore struct {
	driver storagedriver.StorageDriver
}

var _ registry.BlobStore = &blobStore{}

func (bs *blobStore) Exists(ctx context.Context, name string, dgst digest.Digest) (bool, error) {
	blobPath, err := bs.path(name, dgst)
	if err != nil {
		return false, err
	}

	return bs.driver.Exists(ctx, blobPath)
}

func (bs *blobStore) Stat(ctx context.Context, name string, dgst digest.Digest) (registry.Descriptor, error) {
	blobPath, err := bs.path(name, dgst)
	if err != nil {
		return registry.Descriptor{}, err
	}

	fi, err := bs.driver.Stat(ctx, blobPath)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return registry.Descriptor{}, registry.ErrBlobUnknown{Digest: dgst}
		}
		return registry.Descriptor{}, err
	}

	mediaType := fi.ContentType
	if mediaType == "" {
		mediaType = defaultMediaType
	}

	return registry.Descriptor{
		MediaType: mediaType,
		Size:      fi.Size,
		Digest:    dgst,
	}, nil
}

func (bs *blobStore) Open(ctx context.Context, name string, dgst digest.Digest) (io.ReadCloser, error) {
	blobPath, err := bs.path(name, dgst)
	if err != nil {
		return nil, err
	}

	rc, err := bs.driver.Reader(ctx, blobPath)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return nil, registry.ErrBlobUnknown{Digest: dgst}
		}
		return nil, err
	}

	return rc, nil
}

func (bs *blobStore) OpenRange(ctx context.Context, name string, dgst digest.Digest, rangeSpec string) (io.ReadCloser, registry.ByteRange, int64, error) {
	desc, err := bs.Stat(ctx, name, dgst)
	if err != nil {
		return nil, registry.ByteRange{}, 0, err
	}

	// The range is resolved and validated against the blob size before
	// any content read is issued.
	br, err := registry.ParseByteRange(rangeSpec, desc.Size)
	if err != nil {
		return nil, registry.ByteRange{}, 0, err
	}

	blobPath, err := bs.path(name, dgst)
	if err != nil {
		return nil, registry.ByteRange{}, 0, err
	}

	rc, err := bs.driver.ReadRange(ctx, blobPath, br.Start, br.Size())
	if err != nil {
		return nil, registry.ByteRange{}, 0, err
	}

	return rc, br, desc.Size, nil
}

func (bs *blobStore) Put(ctx context.Context, name string, content io.Reader, dgst digest.Digest, mediaType string) (registry.Descriptor, error) {
	if !reference.IsName(name) {
		return registry.Descriptor{}, registry.ErrNameInvalid{Name: name}
	}

	dgst, err := registry.ParseDigest(dgst.String())
	if err != nil {
		return registry.Descriptor{}, err
	}

	blobPath, err := pathFor(blobDataPathSpec{digest: dgst})
	if err != nil {
		return registry.Descriptor{}, err
	}

	// Dedup: a blob stored under this digest is, by content addressing,
	// the same bytes. Skip the upload and report the existing object.
	if exists, err := bs.driver.Exists(ctx, blobPath); err != nil {
		return registry.Descriptor{}, err
	} else if exists {
		return bs.Stat(ctx, name, dgst)
	}

	if mediaType == "" {
		mediaType = defaultMediaType
	}

	if err := bs.driver.PutReader(ctx, blobPath, content, -1, mediaType); err != nil {
		return registry.Descriptor{}, err
	}

	// Verify what actually landed in the backend. On disagreement the
	// object is removed so that content is never addressable under a
	// digest that does not match it.
	verified, err := bs.verify(ctx, blobPath, dgst)
	if err != nil {
		return registry.Descriptor{}, err
	}
	if !verified {
		ctxu.GetLogger(ctx).WithField("digest", dgst).Warn("stored blob failed digest verification, removing")
		if err := bs.driver.Delete(ctx, blobPath); err != nil && !storagedriver.IsPathNotFound(err) {
			return registry.Descriptor{}, err
		}
		return registry.Descriptor{}, registry.ErrDigestInvalid{
			Digest: dgst.String(),
			Reason: "content does not match digest",
		}
	}

	return bs.Stat(ctx, name, dgst)
}

func (bs *blobStore) Create(ctx context.Context, name string, content io.Reader, mediaType string) (registry.Descriptor, error) {
	if !reference.IsName(name) {
		return registry.Descriptor{}, registry.ErrNameInvalid{Name: name}
	}

	// The digest determines the storage key, so the content is hashed and
	// buffered in one pass before the write.
	digester := digest.SHA256.Digester()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.TeeReader(content, digester.Hash())); err != nil {
		return registry.Descriptor{}, err
	}
	dgst := digester.Digest()

	blobPath, err := pathFor(blobDataPathSpec{digest: dgst})
	if err != nil {
		return registry.Descriptor{}, err
	}

	if exists, err := bs.driver.Exists(ctx, blobPath); err != nil {
		return registry.Descriptor{}, err
	} else if exists {
		return bs.Stat(ctx, name, dgst)
	}

	if mediaType == "" {
		mediaType = defaultMediaType
	}

	// No post-write verification here: the digest was computed from this
	// very content, so a mismatch is not constructible.
	if err := bs.driver.PutReader(ctx, blobPath, &buf, int64(buf.Len()), mediaType); err != nil {
		return registry.Descriptor{}, err
	}

	return bs.Stat(ctx, name, dgst)
}

func (bs *blobStore) Mount(ctx context.Context, from, to string, dgst digest.Digest) (bool, error) {
	if !reference.IsName(from) {
		return false, registry.ErrNameInvalid{Name: from}
	}
	if !reference.IsName(to) {
		return false, registry.ErrNameInvalid{Name: to}
	}

	// Content-addressed storage is shared between repositories, so a
	// mount succeeds exactly when the blob exists. No bytes move.
	return bs.Exists(ctx, to, dgst)
}

// Delete removes the blob at its global key. Storage is not reference
// counted per repository: the blob disappears for every repository that
// referenced it, including ones not named in the call.
func (bs *blobStore) Delete(ctx context.Context, name string, dgst digest.Digest) error {
	blobPath, err := bs.path(name, dgst)
	if err != nil {
		return err
	}

	if err := bs.driver.Delete(ctx, blobPath); err != nil {
		if storagedriver.IsPathNotFound(err) {
			return registry.ErrBlobUnknown{Digest: dgst}
		}
		return err
	}

	ctxu.GetLogger(ctx).WithField("digest", dgst).Info("blob deleted")
	return nil
}

// path validates name and dgst and returns the blob's storage key.
func (bs *blobStore) path(name string, dgst digest.Digest) (string, error) {
	if !reference.IsName(name) {
		return "", registry.ErrNameInvalid{Name: name}
	}

	dgst, err := registry.ParseDigest(dgst.String())
	if err != nil {
		return "", err
	}

	return pathFor(blobDataPathSpec{digest: dgst})
}

// verify re-reads the object at blobPath and reports whether its recomputed
// digest matches dgst.
func (bs *blobStore) verify(ctx context.Context, blobPath string, dgst digest.Digest) (bool, error) {
	rc, err := bs.driver.Reader(ctx, blobPath)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	actual, err := registry.DigestFromReader(dgst.Algorithm(), rc)
	if err != nil {
		return false, err
	}

	return actual == dgst, nil
}
