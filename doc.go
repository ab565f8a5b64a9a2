// Package registry defines the core types and service interfaces of the
// Anchorage content-addressable registry. Implementations of the interfaces
// declared here live under storage, backed by a storagedriver.StorageDriver.
//
// The package is split along the registry's primary entities: blobs
// (content-addressed binary objects), manifests (byte-exact JSON documents
// identified by the digest of their payload), tags (mutable name to digest
// pointers scoped per repository) and uploads (resumable chunked blob
// upload sessions).
package registry
