package registry

import (
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDigest(t *testing.T) {
	valid := []string{
		"sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		"sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"sha512:309ecc489c12d6eb4cc40f50c902f2b4d0ed77ee511a7c7a9bcd3ca86d4cd86f989dd35bc5ff499670da34255b45b0cfd830e81f605dcf7dc5542e93ae9cd76f",
	}

	for _, s := range valid {
		dgst, err := ParseDigest(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, dgst.String())
	}

	invalid := []string{
		"",
		"sha256",
		"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		"sha256:",
		"sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde",   // short
		"sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9a", // long
		"sha256:B94D27B9934D3E08A52E52D7DA7DABFAC484EFE37A5380EE9088F7ACE2EFCDE9", // uppercase
		"sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcdzz", // not hex
		"md5:d41d8cd98f00b204e9800998ecf8427e",
		"sha384:" + strings.Repeat("a", 96),
		"sha512:" + strings.Repeat("a", 64), // sha256-length hex on sha512
	}

	for _, s := range invalid {
		_, err := ParseDigest(s)
		assert.Error(t, err, s)
		assert.IsType(t, ErrDigestInvalid{}, err, s)
	}
}

func TestDigestFromBytes(t *testing.T) {
	assert.Equal(t,
		digest.Digest("sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"),
		DigestFromBytes([]byte("hello world")))

	assert.Equal(t,
		digest.Digest("sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"),
		DigestFromBytes(nil))
}

func TestDigestFromReader(t *testing.T) {
	dgst, err := DigestFromReader(digest.SHA256, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, DigestFromBytes([]byte("hello world")), dgst)

	dgst, err = DigestFromReader(digest.SHA512, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, digest.Digest("sha512:309ecc489c12d6eb4cc40f50c902f2b4d0ed77ee511a7c7a9bcd3ca86d4cd86f989dd35bc5ff499670da34255b45b0cfd830e81f605dcf7dc5542e93ae9cd76f"), dgst)

	_, err = DigestFromReader(digest.Algorithm("md5"), strings.NewReader("hello world"))
	assert.IsType(t, ErrDigestInvalid{}, err)
}
