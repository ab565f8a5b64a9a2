package registry

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Descriptor describes stored content. It is the metadata returned for a
// blob or a manifest without transferring the content itself.
type Descriptor struct {
	// MediaType describes the type of the content. It is advisory and not
	// part of the content's identity.
	MediaType string `json:"mediaType,omitempty"`

	// Size in bytes of the content.
	Size int64 `json:"size,omitempty"`

	// Digest uniquely identifies the content.
	Digest digest.Digest `json:"digest,omitempty"`
}

// ByteRange is an inclusive byte range within a blob or upload.
type ByteRange struct {
	Start int64
	End   int64
}

// Size returns the number of bytes covered by the range.
func (br ByteRange) Size() int64 {
	return br.End - br.Start + 1
}

func (br ByteRange) String() string {
	return fmt.Sprintf("%d-%d", br.Start, br.End)
}

// ErrRangeInvalid is returned when an HTTP range specifier is malformed or
// falls outside the target content.
type ErrRangeInvalid struct {
	Spec   string
	Reason string
}

func (err ErrRangeInvalid) Error() string {
	return fmt.Sprintf("invalid range %q: %s", err.Spec, err.Reason)
}

// ParseByteRange resolves an HTTP range specifier of the form "bytes=a-b",
// "bytes=a-" or "bytes=-n" against content of the given size. The range is
// validated before any storage access: a start past the end or an explicit
// end at or beyond size is rejected rather than truncated. A suffix length
// larger than the content is clamped to the whole content.
func ParseByteRange(spec string, size int64) (ByteRange, error) {
	const prefix = "bytes="

	if !strings.HasPrefix(spec, prefix) {
		return ByteRange{}, ErrRangeInvalid{Spec: spec, Reason: "missing bytes= prefix"}
	}

	value := strings.TrimPrefix(spec, prefix)
	dash := strings.Index(value, "-")
	if dash < 0 {
		return ByteRange{}, ErrRangeInvalid{Spec: spec, Reason: "missing range separator"}
	}

	first, last := value[:dash], value[dash+1:]

	if first == "" {
		// Suffix form: the last n bytes, clamped to the content.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, ErrRangeInvalid{Spec: spec, Reason: "invalid suffix length"}
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		return ByteRange{Start: start, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}, ErrRangeInvalid{Spec: spec, Reason: "invalid range start"}
	}

	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil {
			return ByteRange{}, ErrRangeInvalid{Spec: spec, Reason: "invalid range end"}
		}
	}

	if start > end {
		return ByteRange{}, ErrRangeInvalid{Spec: spec, Reason: "start exceeds end"}
	}
	if end >= size {
		return ByteRange{}, ErrRangeInvalid{Spec: spec, Reason: "end exceeds content size"}
	}

	return ByteRange{Start: start, End: end}, nil
}

// BlobStore provides access to the content-addressable blob storage shared
// by all repositories. Blob storage is global: the same digest names the
// same stored object regardless of the repository argument, which exists
// for validation and API symmetry.
type BlobStore interface {
	// Exists reports whether a blob with the given digest is stored.
	Exists(ctx context.Context, name string, dgst digest.Digest) (bool, error)

	// Stat returns the blob's descriptor without transferring content.
	Stat(ctx context.Context, name string, dgst digest.Digest) (Descriptor, error)

	// Open returns a reader over the blob's content.
	Open(ctx context.Context, name string, dgst digest.Digest) (io.ReadCloser, error)

	// OpenRange returns a reader over the part of the blob's content named
	// by the HTTP range specifier rangeSpec, along with the resolved range
	// and the blob's total size. The range is validated against the blob
	// size before storage is touched.
	OpenRange(ctx context.Context, name string, dgst digest.Digest, rangeSpec string) (io.ReadCloser, ByteRange, int64, error)

	// Put stores content under the expected digest. If a blob with that
	// digest already exists the write is skipped and the existing
	// descriptor returned. After a write, the stored object is re-read and
	// its digest recomputed; on disagreement the object is removed and
	// ErrDigestInvalid returned.
	Put(ctx context.Context, name string, content io.Reader, dgst digest.Digest, mediaType string) (Descriptor, error)

	// Create stores content under its own computed digest.
	Create(ctx context.Context, name string, content io.Reader, mediaType string) (Descriptor, error)

	// Mount reports whether the blob exists so that a cross-repository
	// mount can succeed. No bytes are copied; content-addressed storage is
	// inherently shared.
	Mount(ctx context.Context, from, to string, dgst digest.Digest) (bool, error)

	// Delete removes the blob at its global key. The blob disappears for
	// every repository that referenced it.
	Delete(ctx context.Context, name string, dgst digest.Digest) error
}
