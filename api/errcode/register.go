package errcode

import (
	"fmt"
	"net/http"
)

var (
	errorCodeToDescriptors = map[ErrorCode]ErrorDescriptor{}
	idToDescriptors        = map[string]ErrorDescriptor{}
	nextCode               = 1
)

func register(value, message string, httpStatusCode int) ErrorCode {
	if _, ok := idToDescriptors[value]; ok {
		panic(fmt.Sprintf("error code %q already registered", value))
	}

	code := ErrorCode(nextCode)
	nextCode++

	descriptor := ErrorDescriptor{
		Code:           code,
		Value:          value,
		Message:        message,
		HTTPStatusCode: httpStatusCode,
	}
	errorCodeToDescriptors[code] = descriptor
	idToDescriptors[value] = descriptor
	return code
}

var (
	// ErrorCodeUnknown is the last-resort code for errors with no API
	// classification.
	ErrorCodeUnknown = register("UNKNOWN", "unknown error", http.StatusInternalServerError)

	// ErrorCodeUnsupported is returned when an operation is not
	// implemented, such as deleting a manifest by tag.
	ErrorCodeUnsupported = register("UNSUPPORTED", "the operation is unsupported", http.StatusMethodNotAllowed)

	// ErrorCodeNameInvalid is returned when a repository name fails the
	// name grammar.
	ErrorCodeNameInvalid = register("NAME_INVALID", "invalid repository name", http.StatusBadRequest)

	// ErrorCodeTagInvalid is returned when a tag fails the tag grammar.
	ErrorCodeTagInvalid = register("TAG_INVALID", "manifest tag did not match URI", http.StatusBadRequest)

	// ErrorCodeDigestInvalid is returned for malformed digests and for
	// content that does not match a declared digest.
	ErrorCodeDigestInvalid = register("DIGEST_INVALID", "provided digest did not match uploaded content", http.StatusBadRequest)

	// ErrorCodeManifestInvalid is returned when a manifest fails
	// structural validation.
	ErrorCodeManifestInvalid = register("MANIFEST_INVALID", "manifest invalid", http.StatusBadRequest)

	// ErrorCodeManifestUnknown is returned when a manifest lookup by tag
	// or digest misses.
	ErrorCodeManifestUnknown = register("MANIFEST_UNKNOWN", "manifest unknown", http.StatusNotFound)

	// ErrorCodeBlobUnknown is returned when a blob lookup by digest
	// misses.
	ErrorCodeBlobUnknown = register("BLOB_UNKNOWN", "blob unknown to registry", http.StatusNotFound)

	// ErrorCodeBlobUploadInvalid is returned when a chunk violates the
	// upload protocol.
	ErrorCodeBlobUploadInvalid = register("BLOB_UPLOAD_INVALID", "blob upload invalid", http.StatusBadRequest)

	// ErrorCodeBlobUploadUnknown is returned when an upload session is
	// not found or has expired.
	ErrorCodeBlobUploadUnknown = register("BLOB_UPLOAD_UNKNOWN", "blob upload unknown to registry", http.StatusNotFound)

	// ErrorCodeRangeInvalid is returned when a requested byte range
	// cannot be satisfied against the target blob.
	ErrorCodeRangeInvalid = register("RANGE_INVALID", "invalid content range", http.StatusRequestedRangeNotSatisfiable)
)
