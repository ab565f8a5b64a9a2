package inmemory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorage/registry/storagedriver"
)

func TestContentRoundTrip(t *testing.T) {
	ctx := context.Background()
	driver := New()

	require.NoError(t, driver.PutContent(ctx, "a/b", []byte("payload"), "text/plain"))

	content, err := driver.GetContent(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), content)

	fi, err := driver.Stat(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", fi.Path)
	assert.Equal(t, int64(7), fi.Size)
	assert.Equal(t, "text/plain", fi.ContentType)
	assert.False(t, fi.ModTime.IsZero())

	exists, err := driver.Exists(ctx, "a/b")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	driver := New()

	_, err := driver.GetContent(ctx, "missing")
	assert.True(t, storagedriver.IsPathNotFound(err))

	_, err = driver.Reader(ctx, "missing")
	assert.True(t, storagedriver.IsPathNotFound(err))

	_, err = driver.Stat(ctx, "missing")
	assert.True(t, storagedriver.IsPathNotFound(err))

	err = driver.Delete(ctx, "missing")
	assert.True(t, storagedriver.IsPathNotFound(err))

	exists, err := driver.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPutReader(t *testing.T) {
	ctx := context.Background()
	driver := New()

	require.NoError(t, driver.PutReader(ctx, "a", strings.NewReader("0123456789"), 10, "application/octet-stream"))

	rc, err := driver.Reader(ctx, "a")
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(content))
}

func TestReadRange(t *testing.T) {
	ctx := context.Background()
	driver := New()
	require.NoError(t, driver.PutContent(ctx, "a", []byte("0123456789"), ""))

	rc, err := driver.ReadRange(ctx, "a", 2, 3)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "234", string(content))

	// Length past the end truncates to the content.
	rc, err = driver.ReadRange(ctx, "a", 8, 100)
	require.NoError(t, err)
	content, err = io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "89", string(content))

	_, err = driver.ReadRange(ctx, "a", 100, 1)
	assert.True(t, storagedriver.IsPathNotFound(err))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	driver := New()

	for _, key := range []string{"tags/repo/v2", "tags/repo/latest", "tags/repo/v1", "tags/other/latest"} {
		require.NoError(t, driver.PutContent(ctx, key, []byte("x"), ""))
	}

	keys, err := driver.List(ctx, "tags/repo/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tags/repo/latest", "tags/repo/v1", "tags/repo/v2"}, keys)

	keys, err = driver.List(ctx, "tags/none/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestListPage(t *testing.T) {
	ctx := context.Background()
	driver := New()

	for _, key := range []string{"k/a", "k/b", "k/c", "k/d"} {
		require.NoError(t, driver.PutContent(ctx, key, []byte("x"), ""))
	}

	keys, more, err := driver.ListPage(ctx, "k/", 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k/a", "k/b"}, keys)
	assert.True(t, more)

	keys, more, err = driver.ListPage(ctx, "k/", 2, "k/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"k/c", "k/d"}, keys)
	assert.False(t, more)

	keys, more, err = driver.ListPage(ctx, "k/", -1, "")
	require.NoError(t, err)
	assert.Len(t, keys, 4)
	assert.False(t, more)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	driver := New()

	require.NoError(t, driver.PutContent(ctx, "a", []byte("x"), ""))
	require.NoError(t, driver.Delete(ctx, "a"))

	exists, err := driver.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}
