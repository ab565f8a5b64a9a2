package storage

import (
	"context"
	"encoding/json"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	ctxu "github.com/anchorage/registry/context"
	"github.com/anchorage/registry/storagedriver"
)

// referrersStore maintains the per-subject referrers index: a derived,
// best-effort view over manifest pushes and deletes. The index document is
// an OCI image index holding one descriptor per manifest that names the
// subject. It is updated with plain read-modify-write; concurrent updates
// to the same subject may lose an entry, which is acceptable for a
// secondary index that can be rebuilt from the manifests themselves.
type referrersStore struct {
	driver storagedriver.StorageDriver
}

func emptyIndex() v1.Index {
	return v1.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: v1.MediaTypeImageIndex,
		Manifests: []v1.Descriptor{},
	}
}

// get returns the stored index for the subject, or a well-formed empty
// index when none exists. If artifactType is non-empty the returned
// manifests are filtered to descriptors with that artifact type.
func (rs *referrersStore) get(ctx context.Context, name string, subject digest.Digest, artifactType string) (v1.Index, error) {
	index, _, err := rs.load(ctx, name, subject)
	if err != nil {
		return v1.Index{}, err
	}

	if artifactType != "" {
		filtered := make([]v1.Descriptor, 0, len(index.Manifests))
		for _, desc := range index.Manifests {
			if desc.ArtifactType == artifactType {
				filtered = append(filtered, desc)
			}
		}
		index.Manifests = filtered
	}

	return index, nil
}

// register inserts desc into the subject's index. Inserting a referrer
// digest already present is a no-op.
func (rs *referrersStore) register(ctx context.Context, name string, subject digest.Digest, desc v1.Descriptor) error {
	index, indexPath, err := rs.load(ctx, name, subject)
	if err != nil {
		return err
	}

	for _, existing := range index.Manifests {
		if existing.Digest == desc.Digest {
			return nil
		}
	}

	index.Manifests = append(index.Manifests, desc)
	return rs.save(ctx, indexPath, index)
}

// remove drops the referrer with the given digest from the subject's
// index. The index document itself is kept, possibly emptied.
func (rs *referrersStore) remove(ctx context.Context, name string, subject, referrer digest.Digest) error {
	index, indexPath, err := rs.load(ctx, name, subject)
	if err != nil {
		return err
	}

	kept := index.Manifests[:0]
	for _, desc := range index.Manifests {
		if desc.Digest != referrer {
			kept = append(kept, desc)
		}
	}
	if len(kept) == len(index.Manifests) {
		return nil
	}

	index.Manifests = kept
	return rs.save(ctx, indexPath, index)
}

func (rs *referrersStore) load(ctx context.Context, name string, subject digest.Digest) (v1.Index, string, error) {
	indexPath, err := pathFor(referrersPathSpec{name: name, digest: subject})
	if err != nil {
		return v1.Index{}, "", err
	}

	content, err := rs.driver.GetContent(ctx, indexPath)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return emptyIndex(), indexPath, nil
		}
		return v1.Index{}, "", err
	}

	var index v1.Index
	if err := json.Unmarshal(content, &index); err != nil {
		// A corrupt index is replaced rather than failing reads; it is
		// derived state.
		ctxu.GetLogger(ctx).WithError(err).WithField("path", indexPath).Warn("referrers index corrupt, treating as empty")
		return emptyIndex(), indexPath, nil
	}
	if index.Manifests == nil {
		index.Manifests = []v1.Descriptor{}
	}

	return index, indexPath, nil
}

func (rs *referrersStore) save(ctx context.Context, indexPath string, index v1.Index) error {
	content, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return rs.driver.PutContent(ctx, indexPath, content, v1.MediaTypeImageIndex)
}
