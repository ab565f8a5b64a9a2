package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteRange(t *testing.T) {
	const size = 37

	for _, tc := range []struct {
		spec string
		want ByteRange
	}{
		{"bytes=0-9", ByteRange{Start: 0, End: 9}},
		{"bytes=10-19", ByteRange{Start: 10, End: 19}},
		{"bytes=36-36", ByteRange{Start: 36, End: 36}},
		{"bytes=20-", ByteRange{Start: 20, End: 36}},
		{"bytes=0-", ByteRange{Start: 0, End: 36}},
		{"bytes=-10", ByteRange{Start: 27, End: 36}},
		// A suffix longer than the content covers the whole content.
		{"bytes=-100", ByteRange{Start: 0, End: 36}},
	} {
		br, err := ParseByteRange(tc.spec, size)
		require.NoError(t, err, tc.spec)
		assert.Equal(t, tc.want, br, tc.spec)
	}

	for _, spec := range []string{
		"0-9",          // missing prefix
		"bytes=",       // missing separator
		"bytes=10-5",   // start past end
		"bytes=0-37",   // end past content
		"bytes=37-",    // start past content
		"bytes=abc-10", // junk start
		"bytes=0-xyz",  // junk end
		"bytes=-0",     // empty suffix
		"bytes=--5",
	} {
		_, err := ParseByteRange(spec, size)
		require.Error(t, err, spec)
		assert.IsType(t, ErrRangeInvalid{}, err, spec)
	}
}

func TestByteRangeSize(t *testing.T) {
	assert.Equal(t, int64(10), ByteRange{Start: 0, End: 9}.Size())
	assert.Equal(t, int64(1), ByteRange{Start: 5, End: 5}.Size())
	assert.Equal(t, "5-9", ByteRange{Start: 5, End: 9}.String())
}
