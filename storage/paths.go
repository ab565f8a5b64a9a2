package storage

import (
	"fmt"

	"github.com/opencontainers/go-digest"
)

// The path layout in the storage backend is as follows:
//
//	blobs/<algorithm>/<first two hex characters>/<hex digest>
//	manifests/<repository>/<algorithm>/<hex digest>
//	tags/<repository>/<tag>
//	uploads/<session id>/chunks/<start>-<end>
//	referrers/<repository>/<algorithm>/<hex digest>.json
//
// Blobs are stored once, globally, under their content digest; the
// two-character fan-out directory bounds per-prefix key counts in large
// stores. Manifests and tags are repository scoped, so the repository
// prefixes "manifests/<repository>/" and "tags/<repository>/" enumerate a
// single repository's contents. Upload chunks are transient and keyed by
// session; the whole "uploads/<id>/" prefix is reclaimed when the session
// terminates. Referrers indexes are derived documents stored next to, but
// apart from, the manifests they describe.
//
// All paths are generated through pathFor, keeping the layout in one place
// and collision-free across entity kinds.

// pathSpec names a storage entity to be mapped onto a backend key.
type pathSpec interface {
	pathSpec()
}

// blobDataPathSpec is the path of a blob's content.
type blobDataPathSpec struct {
	digest digest.Digest
}

func (blobDataPathSpec) pathSpec() {}

// manifestDataPathSpec is the path of a manifest revision's content within
// a repository.
type manifestDataPathSpec struct {
	name   string
	digest digest.Digest
}

func (manifestDataPathSpec) pathSpec() {}

// manifestsPathSpec is the prefix under which a repository's manifest
// revisions are stored.
type manifestsPathSpec struct {
	name string
}

func (manifestsPathSpec) pathSpec() {}

// tagDataPathSpec is the path of a tag's digest pointer.
type tagDataPathSpec struct {
	name string
	tag  string
}

func (tagDataPathSpec) pathSpec() {}

// tagsPathSpec is the prefix under which a repository's tags are stored.
type tagsPathSpec struct {
	name string
}

func (tagsPathSpec) pathSpec() {}

// uploadChunkPathSpec is the path of one accepted chunk of an upload
// session.
type uploadChunkPathSpec struct {
	id    string
	start int64
	end   int64
}

func (uploadChunkPathSpec) pathSpec() {}

// uploadPathSpec is the prefix holding all of a session's chunks.
type uploadPathSpec struct {
	id string
}

func (uploadPathSpec) pathSpec() {}

// referrersPathSpec is the path of a subject's referrers index document.
type referrersPathSpec struct {
	name   string
	digest digest.Digest
}

func (referrersPathSpec) pathSpec() {}

// pathFor maps spec to its backend key.
func pathFor(spec pathSpec) (string, error) {
	switch v := spec.(type) {
	case blobDataPathSpec:
		algorithm := v.digest.Algorithm().String()
		hex := v.digest.Hex()
		if len(hex) < 2 {
			return "", fmt.Errorf("digest %q too short for blob path", v.digest)
		}
		return fmt.Sprintf("blobs/%s/%s/%s", algorithm, hex[:2], hex), nil
	case manifestDataPathSpec:
		return fmt.Sprintf("manifests/%s/%s/%s", v.name, v.digest.Algorithm(), v.digest.Hex()), nil
	case manifestsPathSpec:
		return fmt.Sprintf("manifests/%s/", v.name), nil
	case tagDataPathSpec:
		return fmt.Sprintf("tags/%s/%s", v.name, v.tag), nil
	case tagsPathSpec:
		return fmt.Sprintf("tags/%s/", v.name), nil
	case uploadChunkPathSpec:
		return fmt.Sprintf("uploads/%s/chunks/%d-%d", v.id, v.start, v.end), nil
	case uploadPathSpec:
		return fmt.Sprintf("uploads/%s/", v.id), nil
	case referrersPathSpec:
		return fmt.Sprintf("referrers/%s/%s/%s.json", v.name, v.digest.Algorithm(), v.digest.Hex()), nil
	default:
		return "", fmt.Errorf("unknown path spec: %#v", v)
	}
}
