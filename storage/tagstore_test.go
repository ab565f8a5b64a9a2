package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorage/registry"
	"github.com/anchorage/registry/storagedriver/inmemory"
)

func TestTagRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := &tagStore{driver: inmemory.New()}

	dgst := registry.DigestFromBytes([]byte("manifest bytes"))
	require.NoError(t, ts.Tag(ctx, "library/alpine", "latest", dgst))

	resolved, err := ts.Resolve(ctx, "library/alpine", "latest")
	require.NoError(t, err)
	assert.Equal(t, dgst, resolved)

	exists, err := ts.Exists(ctx, "library/alpine", "latest")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTagOverwrite(t *testing.T) {
	ctx := context.Background()
	ts := &tagStore{driver: inmemory.New()}

	first := registry.DigestFromBytes([]byte("first"))
	second := registry.DigestFromBytes([]byte("second"))

	require.NoError(t, ts.Tag(ctx, "repo", "latest", first))
	require.NoError(t, ts.Tag(ctx, "repo", "latest", second))

	resolved, err := ts.Resolve(ctx, "repo", "latest")
	require.NoError(t, err)
	assert.Equal(t, second, resolved)
}

func TestTagAllSorted(t *testing.T) {
	ctx := context.Background()
	ts := &tagStore{driver: inmemory.New()}

	dgst := registry.DigestFromBytes([]byte("x"))
	for _, tag := range []string{"v2", "latest", "v10", "v1"} {
		require.NoError(t, ts.Tag(ctx, "repo", tag, dgst))
	}
	// Another repository's tags must not leak in.
	require.NoError(t, ts.Tag(ctx, "other", "stray", dgst))

	tags, err := ts.All(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"latest", "v1", "v10", "v2"}, tags)

	tags, err = ts.All(ctx, "empty/repo")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestUntag(t *testing.T) {
	ctx := context.Background()
	ts := &tagStore{driver: inmemory.New()}

	dgst := registry.DigestFromBytes([]byte("x"))
	require.NoError(t, ts.Tag(ctx, "repo", "latest", dgst))
	require.NoError(t, ts.Untag(ctx, "repo", "latest"))

	_, err := ts.Resolve(ctx, "repo", "latest")
	assert.IsType(t, registry.ErrManifestUnknown{}, err)

	err = ts.Untag(ctx, "repo", "latest")
	assert.IsType(t, registry.ErrManifestUnknown{}, err)
}

func TestTagValidation(t *testing.T) {
	ctx := context.Background()
	ts := &tagStore{driver: inmemory.New()}

	dgst := registry.DigestFromBytes([]byte("x"))

	err := ts.Tag(ctx, "Bad Name", "latest", dgst)
	assert.IsType(t, registry.ErrNameInvalid{}, err)

	err = ts.Tag(ctx, "repo", ".bad", dgst)
	assert.IsType(t, registry.ErrManifestUnknown{}, err)

	err = ts.Tag(ctx, "repo", "latest", "sha256:nope")
	assert.IsType(t, registry.ErrDigestInvalid{}, err)
}
