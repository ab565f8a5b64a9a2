package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/anchorage/registry"
)

// Media types of the docker-originated manifest formats still accepted on
// push alongside their OCI equivalents.
const (
	mediaTypeDockerManifest     = "application/vnd.docker.distribution.manifest.v2+json"
	mediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
)

// manifestKind is the closed set of manifest variants the registry stores,
// distinguished by media type. Each kind carries its own structural rule.
type manifestKind int

const (
	manifestKindImage manifestKind = iota
	manifestKindIndex
)

func kindForMediaType(mediaType string) (manifestKind, bool) {
	switch mediaType {
	case v1.MediaTypeImageManifest, mediaTypeDockerManifest:
		return manifestKindImage, true
	case v1.MediaTypeImageIndex, mediaTypeDockerManifestList:
		return manifestKindIndex, true
	}
	return 0, false
}

// stripMediaTypeParams drops any parameter suffix, e.g. "; charset=utf-8",
// from a declared media type.
func stripMediaTypeParams(mediaType string) string {
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.TrimSpace(mediaType)
}

// manifestDocument is the validated shape of a manifest payload. Pointer
// fields distinguish absent from empty.
type manifestDocument struct {
	SchemaVersion *int               `json:"schemaVersion"`
	MediaType     string             `json:"mediaType"`
	ArtifactType  string             `json:"artifactType"`
	Config        *descriptorField   `json:"config"`
	Layers        *[]descriptorField `json:"layers"`
	Manifests     *[]descriptorField `json:"manifests"`
	Subject       *descriptorField   `json:"subject"`
}

type descriptorField struct {
	MediaType    string `json:"mediaType"`
	Digest       string `json:"digest"`
	Size         *int64 `json:"size"`
	ArtifactType string `json:"artifactType"`
}

// verifyManifest parses payload and checks it against the structural rule
// for its manifest kind. The effective media type is the declared one when
// present, otherwise the document's own; when both are present they must
// agree. Returns the parsed document and the effective media type.
func verifyManifest(payload []byte, declaredMediaType string) (*manifestDocument, string, error) {
	var doc manifestDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, "", registry.ErrManifestInvalid{Reason: "malformed JSON"}
	}

	if doc.SchemaVersion == nil {
		return nil, "", registry.ErrManifestInvalid{Field: "schemaVersion", Reason: "required field missing"}
	}

	mediaType := declaredMediaType
	if mediaType == "" {
		mediaType = doc.MediaType
	}
	if mediaType == "" {
		return nil, "", registry.ErrManifestInvalid{Field: "mediaType", Reason: "required field missing"}
	}
	if doc.MediaType != "" && doc.MediaType != mediaType {
		return nil, "", registry.ErrManifestInvalid{Field: "mediaType", Reason: "does not match declared media type"}
	}

	kind, known := kindForMediaType(mediaType)
	if !known {
		return nil, "", registry.ErrManifestInvalid{Field: "mediaType", Reason: fmt.Sprintf("unsupported media type %q", mediaType)}
	}

	switch kind {
	case manifestKindImage:
		if doc.Config == nil {
			return nil, "", registry.ErrManifestInvalid{Field: "config", Reason: "required field missing"}
		}
		if err := verifyDescriptor("config", *doc.Config); err != nil {
			return nil, "", err
		}
		if doc.Layers == nil || len(*doc.Layers) == 0 {
			return nil, "", registry.ErrManifestInvalid{Field: "layers", Reason: "at least one layer required"}
		}
		for i, desc := range *doc.Layers {
			if err := verifyDescriptor(fmt.Sprintf("layers[%d]", i), desc); err != nil {
				return nil, "", err
			}
		}
	case manifestKindIndex:
		if doc.Manifests == nil || len(*doc.Manifests) == 0 {
			return nil, "", registry.ErrManifestInvalid{Field: "manifests", Reason: "at least one manifest required"}
		}
		for i, desc := range *doc.Manifests {
			if err := verifyDescriptor(fmt.Sprintf("manifests[%d]", i), desc); err != nil {
				return nil, "", err
			}
		}
	}

	if doc.Subject != nil {
		if err := verifyDescriptor("subject", *doc.Subject); err != nil {
			return nil, "", err
		}
	}

	return &doc, mediaType, nil
}

func verifyDescriptor(field string, desc descriptorField) error {
	if desc.MediaType == "" {
		return registry.ErrManifestInvalid{Field: field, Reason: "descriptor missing mediaType"}
	}
	if _, err := registry.ParseDigest(desc.Digest); err != nil {
		return registry.ErrManifestInvalid{Field: field, Reason: "descriptor digest invalid"}
	}
	if desc.Size == nil || *desc.Size < 0 {
		return registry.ErrManifestInvalid{Field: field, Reason: "descriptor missing non-negative size"}
	}
	return nil
}

// artifactTypeOf resolves the artifact type recorded in a referrers
// descriptor: the manifest's own artifactType when declared, otherwise the
// config media type for image manifests.
func artifactTypeOf(doc *manifestDocument) string {
	if doc.ArtifactType != "" {
		return doc.ArtifactType
	}
	if doc.Config != nil {
		return doc.Config.MediaType
	}
	return ""
}
