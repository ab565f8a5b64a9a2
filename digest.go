package registry

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// hexLengths records the accepted algorithms and the exact hex length each
// one produces. Anything outside this set is rejected, including algorithms
// the underlying digest package would otherwise recognize.
var hexLengths = map[digest.Algorithm]int{
	digest.SHA256: 64,
	digest.SHA512: 128,
}

func isLowerHex(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'f') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ParseDigest parses s into a digest, accepting only sha256 and sha512 with
// lowercase hex of the exact length for the algorithm.
func ParseDigest(s string) (digest.Digest, error) {
	dgst := digest.Digest(s)

	algorithm, hex, ok := splitDigest(s)
	if !ok {
		return "", ErrDigestInvalid{Digest: s, Reason: "missing algorithm separator"}
	}

	want, supported := hexLengths[digest.Algorithm(algorithm)]
	if !supported {
		return "", ErrDigestInvalid{Digest: s, Reason: "unsupported algorithm"}
	}

	if len(hex) != want || !isLowerHex(hex) {
		return "", ErrDigestInvalid{Digest: s, Reason: "invalid hex encoding"}
	}

	return dgst, nil
}

func splitDigest(s string) (algorithm, hex string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// DigestFromBytes returns the sha256 digest of p.
func DigestFromBytes(p []byte) digest.Digest {
	return digest.SHA256.FromBytes(p)
}

// DigestFromReader streams rd through algorithm's hash function and returns
// the resulting digest. The content is not buffered.
func DigestFromReader(algorithm digest.Algorithm, rd io.Reader) (digest.Digest, error) {
	if _, ok := hexLengths[algorithm]; !ok {
		return "", ErrDigestInvalid{Digest: algorithm.String(), Reason: "unsupported algorithm"}
	}

	digester := algorithm.Digester()
	if _, err := io.Copy(digester.Hash(), rd); err != nil {
		return "", err
	}

	return digester.Digest(), nil
}
