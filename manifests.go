package registry

import (
	"context"

	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// Manifest is a stored manifest document. Payload holds the exact bytes as
// pushed; the digest is computed over those bytes and future pulls return
// them unmodified.
type Manifest struct {
	// Name is the repository the manifest was pushed to. Manifests are
	// stored per repository, unlike blobs.
	Name string

	// Digest of Payload.
	Digest digest.Digest

	// MediaType as declared on push, with any parameter suffix stripped.
	MediaType string

	// SchemaVersion from the manifest document.
	SchemaVersion int

	// Payload is the raw manifest JSON, byte for byte.
	Payload []byte

	// Subject is the digest of the manifest this one annotates, or empty.
	Subject digest.Digest

	// ArtifactType is the declared artifact type, or the config media type
	// for image manifests that carry one. Used in referrers descriptors.
	ArtifactType string
}

// Descriptor returns the manifest's descriptor.
func (m Manifest) Descriptor() Descriptor {
	return Descriptor{
		MediaType: m.MediaType,
		Size:      int64(len(m.Payload)),
		Digest:    m.Digest,
	}
}

// ManifestService stores and retrieves manifests for any repository and
// maintains the derived referrers index.
type ManifestService interface {
	// Exists reports whether the repository holds a manifest with the
	// given digest.
	Exists(ctx context.Context, name string, dgst digest.Digest) (bool, error)

	// Get retrieves a manifest by digest.
	Get(ctx context.Context, name string, dgst digest.Digest) (Manifest, error)

	// GetByTag resolves tag through the tag store, then retrieves the
	// manifest the tag points at.
	GetByTag(ctx context.Context, name, tag string) (Manifest, error)

	// Put validates and stores the manifest payload exactly as supplied,
	// computing its digest from the raw bytes. If the document names a
	// subject, the manifest is registered in the subject's referrers
	// index on a best-effort basis.
	Put(ctx context.Context, name string, payload []byte, mediaType string) (Manifest, error)

	// Delete removes the manifest by digest. If the manifest named a
	// subject its referrers entry is removed, best effort. Tags pointing
	// at the manifest are left dangling.
	Delete(ctx context.Context, name string, dgst digest.Digest) error

	// Referrers returns the index of manifests whose subject is dgst,
	// optionally filtered to descriptors with the given artifact type. A
	// missing index yields a well-formed empty one.
	//
	// The index is a derived view maintained best-effort alongside
	// manifest writes and deletes; it is not a source of truth and may
	// briefly lag the primary data under concurrent pushes.
	Referrers(ctx context.Context, name string, dgst digest.Digest, artifactType string) (v1.Index, error)
}

// TagService manages the mutable tag namespace of a repository.
type TagService interface {
	// Tag points name:tag at the given digest, overwriting any previous
	// pointer.
	Tag(ctx context.Context, name, tag string, dgst digest.Digest) error

	// Resolve returns the digest the tag points at.
	Resolve(ctx context.Context, name, tag string) (digest.Digest, error)

	// Exists reports whether the tag is present.
	Exists(ctx context.Context, name, tag string) (bool, error)

	// All returns the repository's tag names in lexical order.
	All(ctx context.Context, name string) ([]string, error)

	// Untag removes the tag pointer. The manifest it pointed at is
	// untouched.
	Untag(ctx context.Context, name, tag string) error
}
