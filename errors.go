package registry

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// ErrUnsupported is returned when an operation is not implemented for the
// given reference type, such as deleting a manifest by tag.
var ErrUnsupported = errors.New("operation unsupported")

// ErrNameInvalid is returned when a repository name fails the name grammar.
type ErrNameInvalid struct {
	Name string
}

func (err ErrNameInvalid) Error() string {
	return fmt.Sprintf("invalid repository name %q", err.Name)
}

// ErrDigestInvalid is returned for malformed digest strings and for content
// whose computed digest disagrees with an expected digest.
type ErrDigestInvalid struct {
	Digest string
	Reason string
}

func (err ErrDigestInvalid) Error() string {
	if err.Reason != "" {
		return fmt.Sprintf("invalid digest %q: %s", err.Digest, err.Reason)
	}
	return fmt.Sprintf("invalid digest %q", err.Digest)
}

// ErrBlobUnknown is returned when a blob lookup by digest misses.
type ErrBlobUnknown struct {
	Digest digest.Digest
}

func (err ErrBlobUnknown) Error() string {
	return fmt.Sprintf("unknown blob %s", err.Digest)
}

// ErrManifestUnknown is returned when a manifest lookup misses, whether the
// reference was a tag or a digest.
type ErrManifestUnknown struct {
	Name      string
	Reference string
}

func (err ErrManifestUnknown) Error() string {
	return fmt.Sprintf("unknown manifest %s:%s", err.Name, err.Reference)
}

// ErrManifestInvalid is returned when a manifest payload fails structural
// validation. Field names the offending field path, e.g. "layers[2]".
type ErrManifestInvalid struct {
	Field  string
	Reason string
}

func (err ErrManifestInvalid) Error() string {
	if err.Field != "" {
		return fmt.Sprintf("invalid manifest: %s: %s", err.Field, err.Reason)
	}
	return fmt.Sprintf("invalid manifest: %s", err.Reason)
}

// ErrUploadUnknown is returned when an upload session id is not registered
// or has expired. Expired sessions are indistinguishable from sessions that
// never existed.
type ErrUploadUnknown struct {
	ID string
}

func (err ErrUploadUnknown) Error() string {
	return fmt.Sprintf("unknown blob upload %s", err.ID)
}

// ErrUploadInvalid is returned when a chunk violates the sequential-range
// protocol or when assembly of the accepted ranges fails.
type ErrUploadInvalid struct {
	Reason string
}

func (err ErrUploadInvalid) Error() string {
	return fmt.Sprintf("invalid blob upload: %s", err.Reason)
}
