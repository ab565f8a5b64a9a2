package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorage/registry"
	"github.com/anchorage/registry/storagedriver/inmemory"
)

// imageManifest builds a minimal valid image manifest payload. Options
// mutate the document before serialization.
func imageManifest(t *testing.T, opts ...func(map[string]interface{})) []byte {
	t.Helper()

	doc := map[string]interface{}{
		"schemaVersion": 2,
		"mediaType":     v1.MediaTypeImageManifest,
		"config": map[string]interface{}{
			"mediaType": v1.MediaTypeImageConfig,
			"digest":    registry.DigestFromBytes([]byte("config")).String(),
			"size":      6,
		},
		"layers": []interface{}{
			map[string]interface{}{
				"mediaType": v1.MediaTypeImageLayerGzip,
				"digest":    registry.DigestFromBytes([]byte("layer")).String(),
				"size":      5,
			},
		},
	}
	for _, opt := range opts {
		opt(doc)
	}

	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	return payload
}

func withSubject(subject digest.Digest) func(map[string]interface{}) {
	return func(doc map[string]interface{}) {
		doc["subject"] = map[string]interface{}{
			"mediaType": v1.MediaTypeImageManifest,
			"digest":    subject.String(),
			"size":      100,
		}
	}
}

func withArtifactType(artifactType string) func(map[string]interface{}) {
	return func(doc map[string]interface{}) {
		doc["artifactType"] = artifactType
	}
}

func newTestRegistry() *Registry {
	return New(inmemory.New())
}

func TestManifestPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	payload := imageManifest(t)
	manifest, err := reg.manifests.Put(ctx, "library/alpine", payload, v1.MediaTypeImageManifest)
	require.NoError(t, err)
	assert.Equal(t, registry.DigestFromBytes(payload), manifest.Digest)
	assert.Equal(t, v1.MediaTypeImageManifest, manifest.MediaType)
	assert.Equal(t, 2, manifest.SchemaVersion)

	got, err := reg.manifests.Get(ctx, "library/alpine", manifest.Digest)
	require.NoError(t, err)
	assert.Equal(t, payload, got.Payload)
	assert.Equal(t, v1.MediaTypeImageManifest, got.MediaType)

	exists, err := reg.manifests.Exists(ctx, "library/alpine", manifest.Digest)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestManifestIsRepositoryScoped(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	payload := imageManifest(t)
	manifest, err := reg.manifests.Put(ctx, "repo/one", payload, v1.MediaTypeImageManifest)
	require.NoError(t, err)

	_, err = reg.manifests.Get(ctx, "repo/two", manifest.Digest)
	assert.IsType(t, registry.ErrManifestUnknown{}, err)
}

func TestManifestMediaTypeFromPayload(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	// No declared media type: the document's own is used. A parameter
	// suffix on a declared type is stripped before comparison.
	payload := imageManifest(t)
	manifest, err := reg.manifests.Put(ctx, "repo", payload, "")
	require.NoError(t, err)
	assert.Equal(t, v1.MediaTypeImageManifest, manifest.MediaType)

	_, err = reg.manifests.Put(ctx, "repo", payload, v1.MediaTypeImageManifest+"; charset=utf-8")
	require.NoError(t, err)

	_, err = reg.manifests.Put(ctx, "repo", payload, v1.MediaTypeImageIndex)
	assert.Equal(t, registry.ErrManifestInvalid{Field: "mediaType", Reason: "does not match declared media type"}, err)
}

func TestManifestValidation(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	for _, tc := range []struct {
		payload   []byte
		mediaType string
		field     string
	}{
		{[]byte("not json"), v1.MediaTypeImageManifest, ""},
		{[]byte(`{"mediaType":"` + v1.MediaTypeImageManifest + `"}`), "", "schemaVersion"},
		{[]byte(`{"schemaVersion":2}`), "", "mediaType"},
		{[]byte(`{"schemaVersion":2,"mediaType":"application/x-unknown"}`), "", "mediaType"},
		{[]byte(`{"schemaVersion":2,"mediaType":"` + v1.MediaTypeImageManifest + `"}`), "", "config"},
		{imageManifest(t, func(doc map[string]interface{}) {
			doc["layers"] = []interface{}{}
		}), "", "layers"},
		{imageManifest(t, func(doc map[string]interface{}) {
			doc["layers"] = []interface{}{
				map[string]interface{}{"mediaType": v1.MediaTypeImageLayerGzip, "digest": "garbage", "size": 1},
			}
		}), "", "layers[0]"},
		{[]byte(`{"schemaVersion":2,"mediaType":"` + v1.MediaTypeImageIndex + `","manifests":[]}`), "", "manifests"},
	} {
		_, err := reg.manifests.Put(ctx, "repo", tc.payload, tc.mediaType)
		require.Error(t, err, string(tc.payload))
		require.IsType(t, registry.ErrManifestInvalid{}, err, string(tc.payload))
		assert.Equal(t, tc.field, err.(registry.ErrManifestInvalid).Field, string(tc.payload))
	}
}

func TestManifestDeleteLeavesTagsDangling(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	payload := imageManifest(t)
	manifest, err := reg.manifests.Put(ctx, "repo", payload, v1.MediaTypeImageManifest)
	require.NoError(t, err)
	require.NoError(t, reg.tags.Tag(ctx, "repo", "latest", manifest.Digest))

	require.NoError(t, reg.manifests.Delete(ctx, "repo", manifest.Digest))

	// The tag pointer survives and now dangles.
	dgst, err := reg.tags.Resolve(ctx, "repo", "latest")
	require.NoError(t, err)
	assert.Equal(t, manifest.Digest, dgst)

	_, err = reg.manifests.GetByTag(ctx, "repo", "latest")
	assert.IsType(t, registry.ErrManifestUnknown{}, err)

	err = reg.manifests.Delete(ctx, "repo", manifest.Digest)
	assert.IsType(t, registry.ErrManifestUnknown{}, err)
}

func TestManifestGetByTag(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	payload := imageManifest(t)
	manifest, err := reg.manifests.Put(ctx, "repo", payload, v1.MediaTypeImageManifest)
	require.NoError(t, err)
	require.NoError(t, reg.tags.Tag(ctx, "repo", "v1", manifest.Digest))

	got, err := reg.manifests.GetByTag(ctx, "repo", "v1")
	require.NoError(t, err)
	assert.Equal(t, payload, got.Payload)

	_, err = reg.manifests.GetByTag(ctx, "repo", "v2")
	assert.IsType(t, registry.ErrManifestUnknown{}, err)
}

func TestReferrers(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	subjectPayload := imageManifest(t)
	subject, err := reg.manifests.Put(ctx, "repo", subjectPayload, v1.MediaTypeImageManifest)
	require.NoError(t, err)

	// An unknown subject still yields a well-formed empty index.
	index, err := reg.manifests.Referrers(ctx, "repo", subject.Digest, "")
	require.NoError(t, err)
	assert.Equal(t, 2, index.SchemaVersion)
	assert.Equal(t, v1.MediaTypeImageIndex, index.MediaType)
	assert.Empty(t, index.Manifests)

	sigPayload := imageManifest(t, withSubject(subject.Digest), withArtifactType("application/vnd.example.signature"))
	sig, err := reg.manifests.Put(ctx, "repo", sigPayload, v1.MediaTypeImageManifest)
	require.NoError(t, err)

	sbomPayload := imageManifest(t, withSubject(subject.Digest), withArtifactType("application/vnd.example.sbom"))
	_, err = reg.manifests.Put(ctx, "repo", sbomPayload, v1.MediaTypeImageManifest)
	require.NoError(t, err)

	index, err = reg.manifests.Referrers(ctx, "repo", subject.Digest, "")
	require.NoError(t, err)
	require.Len(t, index.Manifests, 2)
	assert.Equal(t, sig.Digest, index.Manifests[0].Digest)
	assert.Equal(t, "application/vnd.example.signature", index.Manifests[0].ArtifactType)
	assert.Equal(t, int64(len(sigPayload)), index.Manifests[0].Size)

	// Re-pushing a referrer does not duplicate its entry.
	_, err = reg.manifests.Put(ctx, "repo", sigPayload, v1.MediaTypeImageManifest)
	require.NoError(t, err)
	index, err = reg.manifests.Referrers(ctx, "repo", subject.Digest, "")
	require.NoError(t, err)
	assert.Len(t, index.Manifests, 2)

	// Filtering by artifact type.
	index, err = reg.manifests.Referrers(ctx, "repo", subject.Digest, "application/vnd.example.sbom")
	require.NoError(t, err)
	require.Len(t, index.Manifests, 1)
	assert.Equal(t, "application/vnd.example.sbom", index.Manifests[0].ArtifactType)

	index, err = reg.manifests.Referrers(ctx, "repo", subject.Digest, "application/vnd.example.none")
	require.NoError(t, err)
	assert.Empty(t, index.Manifests)

	// Deleting a referrer removes its entry; the others stay.
	require.NoError(t, reg.manifests.Delete(ctx, "repo", sig.Digest))
	index, err = reg.manifests.Referrers(ctx, "repo", subject.Digest, "")
	require.NoError(t, err)
	require.Len(t, index.Manifests, 1)
	assert.NotEqual(t, sig.Digest, index.Manifests[0].Digest)
}

func TestReferrersArtifactTypeFallsBackToConfig(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	subject, err := reg.manifests.Put(ctx, "repo", imageManifest(t), v1.MediaTypeImageManifest)
	require.NoError(t, err)

	// No declared artifactType: the config media type stands in.
	refPayload := imageManifest(t, withSubject(subject.Digest))
	_, err = reg.manifests.Put(ctx, "repo", refPayload, v1.MediaTypeImageManifest)
	require.NoError(t, err)

	index, err := reg.manifests.Referrers(ctx, "repo", subject.Digest, "")
	require.NoError(t, err)
	require.Len(t, index.Manifests, 1)
	assert.Equal(t, v1.MediaTypeImageConfig, index.Manifests[0].ArtifactType)
}

func TestManifestSubjectSurvivesRead(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	subject := registry.DigestFromBytes([]byte("the subject"))
	payload := imageManifest(t, withSubject(subject))
	manifest, err := reg.manifests.Put(ctx, "repo", payload, v1.MediaTypeImageManifest)
	require.NoError(t, err)
	assert.Equal(t, subject, manifest.Subject)

	got, err := reg.manifests.Get(ctx, "repo", manifest.Digest)
	require.NoError(t, err)
	assert.Equal(t, subject, got.Subject)
}

func TestManifestPutUnknownRepoName(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	_, err := reg.manifests.Put(ctx, "Bad Name", imageManifest(t), v1.MediaTypeImageManifest)
	assert.IsType(t, registry.ErrNameInvalid{}, err)
}

func TestIndexManifestPut(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	child, err := reg.manifests.Put(ctx, "repo", imageManifest(t), v1.MediaTypeImageManifest)
	require.NoError(t, err)

	payload := []byte(fmt.Sprintf(`{"schemaVersion":2,"mediaType":%q,"manifests":[{"mediaType":%q,"digest":%q,"size":%d}]}`,
		v1.MediaTypeImageIndex, v1.MediaTypeImageManifest, child.Digest, len(child.Payload)))

	manifest, err := reg.manifests.Put(ctx, "repo", payload, v1.MediaTypeImageIndex)
	require.NoError(t, err)
	assert.Equal(t, v1.MediaTypeImageIndex, manifest.MediaType)

	got, err := reg.manifests.Get(ctx, "repo", manifest.Digest)
	require.NoError(t, err)
	assert.Equal(t, payload, got.Payload)
}
