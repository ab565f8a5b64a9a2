package storage

import (
	"context"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/anchorage/registry"
	ctxu "github.com/anchorage/registry/context"
	"github.com/anchorage/registry/reference"
	"github.com/anchorage/registry/storagedriver"
)

// tagStore manages the mutable name to digest pointers of a repository.
// A tag is a single backend object whose content is the digest string.
type tagStore struct {
	driver storagedriver.StorageDriver
}

var _ registry.TagService = &tagStore{}

func (ts *tagStore) Tag(ctx context.Context, name, tag string, dgst digest.Digest) error {
	tagPath, err := ts.path(name, tag)
	if err != nil {
		return err
	}

	dgst, err = registry.ParseDigest(dgst.String())
	if err != nil {
		return err
	}

	// Overwrites are the point: re-tagging moves the pointer.
	if err := ts.driver.PutContent(ctx, tagPath, []byte(dgst.String()), "text/plain"); err != nil {
		return err
	}

	ctxu.GetLogger(ctx).WithFields(map[string]interface{}{
		"name":   name,
		"tag":    tag,
		"digest": dgst,
	}).Info("manifest tagged")
	return nil
}

func (ts *tagStore) Resolve(ctx context.Context, name, tag string) (digest.Digest, error) {
	tagPath, err := ts.path(name, tag)
	if err != nil {
		return "", err
	}

	content, err := ts.driver.GetContent(ctx, tagPath)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return "", registry.ErrManifestUnknown{Name: name, Reference: tag}
		}
		return "", err
	}

	return registry.ParseDigest(strings.TrimSpace(string(content)))
}

func (ts *tagStore) Exists(ctx context.Context, name, tag string) (bool, error) {
	tagPath, err := ts.path(name, tag)
	if err != nil {
		return false, err
	}
	return ts.driver.Exists(ctx, tagPath)
}

// All returns the repository's tags in lexical order. Sorting happens here
// rather than relying on backend enumeration order, so that n/last
// pagination cursors applied by callers are well-defined.
func (ts *tagStore) All(ctx context.Context, name string) ([]string, error) {
	if !reference.IsName(name) {
		return nil, registry.ErrNameInvalid{Name: name}
	}

	prefix, err := pathFor(tagsPathSpec{name: name})
	if err != nil {
		return nil, err
	}

	keys, err := ts.driver.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(keys))
	for _, key := range keys {
		tags = append(tags, strings.TrimPrefix(key, prefix))
	}

	sort.Strings(tags)
	return tags, nil
}

func (ts *tagStore) Untag(ctx context.Context, name, tag string) error {
	tagPath, err := ts.path(name, tag)
	if err != nil {
		return err
	}

	if err := ts.driver.Delete(ctx, tagPath); err != nil {
		if storagedriver.IsPathNotFound(err) {
			return registry.ErrManifestUnknown{Name: name, Reference: tag}
		}
		return err
	}

	ctxu.GetLogger(ctx).WithFields(map[string]interface{}{
		"name": name,
		"tag":  tag,
	}).Info("tag deleted")
	return nil
}

func (ts *tagStore) path(name, tag string) (string, error) {
	if !reference.IsName(name) {
		return "", registry.ErrNameInvalid{Name: name}
	}
	if !reference.IsTag(tag) {
		return "", registry.ErrManifestUnknown{Name: name, Reference: tag}
	}
	return pathFor(tagDataPathSpec{name: name, tag: tag})
}
