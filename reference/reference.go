// Package reference implements the grammar of repository names, tag names
// and digest references accepted by the registry.
//
// Grammar:
//
//	name      := path-component ['/' path-component]*
//	component := [a-z0-9]+((\.|_|__|-+)[a-z0-9]+)*
//	tag       := [A-Za-z0-9_][A-Za-z0-9._-]{0,127}
//	digest    := (sha256|sha512):[a-f0-9]{64,128}
package reference

import "regexp"

var (
	// NameComponentRegexp restricts a single path component of a
	// repository name: lowercase alphanumeric runs interleaved with
	// single-dot, underscore(s) or dash separators.
	NameComponentRegexp = regexp.MustCompile(`[a-z0-9]+(?:(?:\.|_|__|-+)[a-z0-9]+)*`)

	// NameRegexp is the full repository name format: one or more
	// slash-separated components.
	NameRegexp = regexp.MustCompile(NameComponentRegexp.String() + `(?:/` + NameComponentRegexp.String() + `)*`)

	// TagRegexp matches valid tag names, at most 128 characters with a
	// restricted first character.
	TagRegexp = regexp.MustCompile(`[A-Za-z0-9_][A-Za-z0-9._-]{0,127}`)

	// DigestRegexp matches digest references. Exact hex length per
	// algorithm is enforced by digest parsing, not here.
	DigestRegexp = regexp.MustCompile(`(sha256|sha512):[a-f0-9]{64,128}`)

	anchoredNameRegexp   = regexp.MustCompile(`^` + NameRegexp.String() + `$`)
	anchoredTagRegexp    = regexp.MustCompile(`^` + TagRegexp.String() + `$`)
	anchoredDigestRegexp = regexp.MustCompile(`^` + DigestRegexp.String() + `$`)
)

// IsName reports whether name is a valid repository name.
func IsName(name string) bool {
	return anchoredNameRegexp.MatchString(name)
}

// IsTag reports whether tag is a valid tag name.
func IsTag(tag string) bool {
	return anchoredTagRegexp.MatchString(tag)
}

// IsDigest reports whether ref matches the digest grammar. Used to
// disambiguate reference parameters that may be either a tag or a digest.
func IsDigest(ref string) bool {
	return anchoredDigestRegexp.MatchString(ref)
}
