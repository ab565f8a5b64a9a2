// Package version records the build version of the registry.
package version

// Package is the overall, canonical project import path under which the
// package was built.
var Package = "github.com/anchorage/registry"

// Version is filled at build time with the current tag or revision, e.g.
// via -ldflags "-X github.com/anchorage/registry/version.Version=v1.2.0".
var Version = "v0.0.0+unknown"
