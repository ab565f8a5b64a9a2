package storage

import (
	"context"
	"encoding/json"

	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/anchorage/registry"
	ctxu "github.com/anchorage/registry/context"
	"github.com/anchorage/registry/reference"
	"github.com/anchorage/registry/storagedriver"
)

// manifestStore implements registry.ManifestService. Manifest payloads are
// stored byte for byte under repository-scoped, digest-addressed keys; the
// digest is always computed from the raw bytes at write time, never taken
// from the client.
type manifestStore struct {
	driver    storagedriver.StorageDriver
	tags      *tagStore
	referrers *referrersStore
}

var _ registry.ManifestService = &manifestStore{}

func (ms *manifestStore) Exists(ctx context.Context, name string, dgst digest.Digest) (bool, error) {
	manifestPath, err := ms.path(name, dgst)
	if err != nil {
		return false, err
	}
	return ms.driver.Exists(ctx, manifestPath)
}

func (ms *manifestStore) Get(ctx context.Context, name string, dgst digest.Digest) (registry.Manifest, error) {
	manifestPath, err := ms.path(name, dgst)
	if err != nil {
		return registry.Manifest{}, err
	}

	payload, err := ms.driver.GetContent(ctx, manifestPath)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return registry.Manifest{}, registry.ErrManifestUnknown{Name: name, Reference: dgst.String()}
		}
		return registry.Manifest{}, err
	}

	var mediaType string
	if fi, err := ms.driver.Stat(ctx, manifestPath); err == nil {
		mediaType = fi.ContentType
	}

	return buildManifest(name, dgst, payload, mediaType), nil
}

func (ms *manifestStore) GetByTag(ctx context.Context, name, tag string) (registry.Manifest, error) {
	dgst, err := ms.tags.Resolve(ctx, name, tag)
	if err != nil {
		return registry.Manifest{}, err
	}
	return ms.Get(ctx, name, dgst)
}

func (ms *manifestStore) Put(ctx context.Context, name string, payload []byte, mediaType string) (registry.Manifest, error) {
	if !reference.IsName(name) {
		return registry.Manifest{}, registry.ErrNameInvalid{Name: name}
	}

	doc, mediaType, err := verifyManifest(payload, stripMediaTypeParams(mediaType))
	if err != nil {
		return registry.Manifest{}, err
	}

	// The digest is the hash of the payload exactly as supplied. The
	// bytes are stored unmodified so future pulls return content that
	// matches this digest.
	dgst := registry.DigestFromBytes(payload)

	manifestPath, err := pathFor(manifestDataPathSpec{name: name, digest: dgst})
	if err != nil {
		return registry.Manifest{}, err
	}

	if err := ms.driver.PutContent(ctx, manifestPath, payload, mediaType); err != nil {
		return registry.Manifest{}, err
	}

	manifest := buildManifest(name, dgst, payload, mediaType)

	ctxu.GetLogger(ctx).WithFields(map[string]interface{}{
		"name":      name,
		"digest":    dgst,
		"mediaType": mediaType,
	}).Info("manifest stored")

	// Referrers maintenance is best-effort: the index is a derived view,
	// so a failure to update it never fails the push.
	if manifest.Subject != "" {
		desc := v1.Descriptor{
			MediaType:    mediaType,
			Digest:       dgst,
			Size:         int64(len(payload)),
			ArtifactType: artifactTypeOf(doc),
		}
		if err := ms.referrers.register(ctx, name, manifest.Subject, desc); err != nil {
			ctxu.GetLogger(ctx).WithError(err).WithFields(map[string]interface{}{
				"name":    name,
				"digest":  dgst,
				"subject": manifest.Subject,
			}).Error("registering manifest in referrers index")
		}
	}

	return manifest, nil
}

func (ms *manifestStore) Delete(ctx context.Context, name string, dgst digest.Digest) error {
	manifestPath, err := ms.path(name, dgst)
	if err != nil {
		return err
	}

	payload, err := ms.driver.GetContent(ctx, manifestPath)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return registry.ErrManifestUnknown{Name: name, Reference: dgst.String()}
		}
		return err
	}

	// Drop the manifest's referrers entry before removing the primary
	// object, best effort.
	if subject := subjectOf(payload); subject != "" {
		if err := ms.referrers.remove(ctx, name, subject, dgst); err != nil {
			ctxu.GetLogger(ctx).WithError(err).WithFields(map[string]interface{}{
				"name":    name,
				"digest":  dgst,
				"subject": subject,
			}).Error("removing manifest from referrers index")
		}
	}

	if err := ms.driver.Delete(ctx, manifestPath); err != nil {
		if storagedriver.IsPathNotFound(err) {
			return registry.ErrManifestUnknown{Name: name, Reference: dgst.String()}
		}
		return err
	}

	// Tags pointing at the manifest are left in place and become
	// dangling; deleting a manifest never touches the tag namespace.
	ctxu.GetLogger(ctx).WithFields(map[string]interface{}{
		"name":   name,
		"digest": dgst,
	}).Info("manifest deleted")
	return nil
}

func (ms *manifestStore) Referrers(ctx context.Context, name string, dgst digest.Digest, artifactType string) (v1.Index, error) {
	if !reference.IsName(name) {
		return v1.Index{}, registry.ErrNameInvalid{Name: name}
	}

	dgst, err := registry.ParseDigest(dgst.String())
	if err != nil {
		return v1.Index{}, err
	}

	return ms.referrers.get(ctx, name, dgst, artifactType)
}

func (ms *manifestStore) path(name string, dgst digest.Digest) (string, error) {
	if !reference.IsName(name) {
		return "", registry.ErrNameInvalid{Name: name}
	}

	dgst, err := registry.ParseDigest(dgst.String())
	if err != nil {
		return "", err
	}

	return pathFor(manifestDataPathSpec{name: name, digest: dgst})
}

// buildManifest assembles the stored-manifest value, recovering the
// document fields that matter after storage (schema version, subject,
// artifact type) from the payload. Stored payloads were validated on push,
// so a parse failure here leaves those fields zero rather than failing the
// read.
func buildManifest(name string, dgst digest.Digest, payload []byte, mediaType string) registry.Manifest {
	manifest := registry.Manifest{
		Name:      name,
		Digest:    dgst,
		MediaType: mediaType,
		Payload:   payload,
	}

	var doc manifestDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return manifest
	}

	if doc.SchemaVersion != nil {
		manifest.SchemaVersion = *doc.SchemaVersion
	}
	if manifest.MediaType == "" {
		manifest.MediaType = doc.MediaType
	}
	if doc.Subject != nil {
		if subject, err := registry.ParseDigest(doc.Subject.Digest); err == nil {
			manifest.Subject = subject
		}
	}
	manifest.ArtifactType = artifactTypeOf(&doc)

	return manifest
}

func subjectOf(payload []byte) digest.Digest {
	var doc manifestDocument
	if err := json.Unmarshal(payload, &doc); err != nil || doc.Subject == nil {
		return ""
	}
	subject, err := registry.ParseDigest(doc.Subject.Digest)
	if err != nil {
		return ""
	}
	return subject
}
