package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorage/registry"
	"github.com/anchorage/registry/storagedriver/inmemory"
)

func TestBlobPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := &blobStore{driver: inmemory.New()}

	content := []byte("hello world")
	dgst := registry.DigestFromBytes(content)

	desc, err := bs.Put(ctx, "library/alpine", strings.NewReader(string(content)), dgst, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, dgst, desc.Digest)
	assert.Equal(t, int64(len(content)), desc.Size)
	assert.Equal(t, "text/plain", desc.MediaType)

	exists, err := bs.Exists(ctx, "library/alpine", dgst)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := bs.Open(ctx, "library/alpine", dgst)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBlobPutDeduplicates(t *testing.T) {
	ctx := context.Background()
	bs := &blobStore{driver: inmemory.New()}

	content := "dedup me"
	dgst := registry.DigestFromBytes([]byte(content))

	first, err := bs.Put(ctx, "repo/one", strings.NewReader(content), dgst, "")
	require.NoError(t, err)

	// The second push of the same bytes is skipped. An empty reader proves
	// the content is never consumed.
	second, err := bs.Put(ctx, "repo/two", strings.NewReader(""), dgst, "")
	require.NoError(t, err)
	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, first.Size, second.Size)

	rc, err := bs.Open(ctx, "repo/two", dgst)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestBlobPutDigestMismatch(t *testing.T) {
	ctx := context.Background()
	bs := &blobStore{driver: inmemory.New()}

	dgst := registry.DigestFromBytes([]byte("expected content"))

	_, err := bs.Put(ctx, "library/alpine", strings.NewReader("different content"), dgst, "")
	require.Error(t, err)
	assert.IsType(t, registry.ErrDigestInvalid{}, err)

	// The mismatching object must not remain addressable.
	exists, err := bs.Exists(ctx, "library/alpine", dgst)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBlobPutValidation(t *testing.T) {
	ctx := context.Background()
	bs := &blobStore{driver: inmemory.New()}

	_, err := bs.Put(ctx, "Invalid Name", strings.NewReader("x"), registry.DigestFromBytes([]byte("x")), "")
	assert.IsType(t, registry.ErrNameInvalid{}, err)

	_, err = bs.Put(ctx, "repo", strings.NewReader("x"), "sha256:short", "")
	assert.IsType(t, registry.ErrDigestInvalid{}, err)
}

func TestBlobCreate(t *testing.T) {
	ctx := context.Background()
	bs := &blobStore{driver: inmemory.New()}

	content := "self addressed"
	desc, err := bs.Create(ctx, "library/alpine", strings.NewReader(content), "")
	require.NoError(t, err)
	assert.Equal(t, registry.DigestFromBytes([]byte(content)), desc.Digest)
	assert.Equal(t, int64(len(content)), desc.Size)
	assert.Equal(t, "application/octet-stream", desc.MediaType)
}

func TestBlobOpenRange(t *testing.T) {
	ctx := context.Background()
	bs := &blobStore{driver: inmemory.New()}

	content := "0123456789"
	dgst := registry.DigestFromBytes([]byte(content))
	_, err := bs.Put(ctx, "repo", strings.NewReader(content), dgst, "")
	require.NoError(t, err)

	rc, br, size, err := bs.OpenRange(ctx, "repo", dgst, "bytes=2-5")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, registry.ByteRange{Start: 2, End: 5}, br)
	assert.Equal(t, int64(10), size)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(got))

	// The range is rejected before any read happens.
	_, _, _, err = bs.OpenRange(ctx, "repo", dgst, "bytes=5-100")
	assert.IsType(t, registry.ErrRangeInvalid{}, err)
}

func TestBlobMount(t *testing.T) {
	ctx := context.Background()
	bs := &blobStore{driver: inmemory.New()}

	content := "shared bytes"
	dgst := registry.DigestFromBytes([]byte(content))
	_, err := bs.Put(ctx, "source/repo", strings.NewReader(content), dgst, "")
	require.NoError(t, err)

	mounted, err := bs.Mount(ctx, "source/repo", "target/repo", dgst)
	require.NoError(t, err)
	assert.True(t, mounted)

	mounted, err = bs.Mount(ctx, "source/repo", "target/repo", registry.DigestFromBytes([]byte("absent")))
	require.NoError(t, err)
	assert.False(t, mounted)
}

func TestBlobDeleteIsGlobal(t *testing.T) {
	ctx := context.Background()
	bs := &blobStore{driver: inmemory.New()}

	content := "going away"
	dgst := registry.DigestFromBytes([]byte(content))
	_, err := bs.Put(ctx, "repo/one", strings.NewReader(content), dgst, "")
	require.NoError(t, err)

	// Deleting through another repository name removes the shared object.
	require.NoError(t, bs.Delete(ctx, "repo/two", dgst))

	exists, err := bs.Exists(ctx, "repo/one", dgst)
	require.NoError(t, err)
	assert.False(t, exists)

	err = bs.Delete(ctx, "repo/one", dgst)
	assert.IsType(t, registry.ErrBlobUnknown{}, err)
}

func TestBlobStatUnknown(t *testing.T) {
	ctx := context.Background()
	bs := &blobStore{driver: inmemory.New()}

	_, err := bs.Stat(ctx, "repo", registry.DigestFromBytes([]byte("nothing here")))
	assert.IsType(t, registry.ErrBlobUnknown{}, err)
}
