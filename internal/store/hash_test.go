package store

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toNixBase32 converts a byte slice to the Nix base32 spelling, mirroring
// fromNixBase32 (least-significant bit first, characters emitted in
// reverse). Only tests need to encode; the store itself only decodes.
func toNixBase32(b []byte) string {
	length := (len(b)*8-1)/5 + 1
	result := make([]byte, length)

	for n := 0; n < length; n++ {
		bit := n * 5
		i := bit / 8
		j := bit % 8

		v := b[i] >> uint(j)
		if i < len(b)-1 && 8-j < 8 {
			v |= b[i+1] << uint(8-j)
		}

		result[length-n-1] = nixBase32Alphabet[v&0x1F]
	}
	return string(result)
}

// TestNixBase32RoundTrip verifies encode/decode are inverses for digests of
// the sizes the store actually handles.
func TestNixBase32RoundTrip(t *testing.T) {
	digest := sha256.Sum256([]byte("kiln"))

	encoded := toNixBase32(digest[:])
	assert.Len(t, encoded, sha256Base32Len)

	decoded, err := fromNixBase32(encoded)
	require.NoError(t, err)
	assert.Equal(t, digest[:], decoded)
}

// TestFromNixBase32_Invalid verifies characters outside the restricted
// alphabet are rejected. The alphabet deliberately omits e, o, u, and t.
func TestFromNixBase32_Invalid(t *testing.T) {
	_, err := fromNixBase32("etou")
	assert.Error(t, err)
}

// TestParseSHA256 verifies both checksum spellings and the optional
// prefixes decode to the same digest.
func TestParseSHA256(t *testing.T) {
	digest := sha256.Sum256([]byte("kiln"))
	hexForm := hex.EncodeToString(digest[:])
	base32Form := toNixBase32(digest[:])

	for _, spelling := range []string{
		hexForm,
		"sha256:" + hexForm,
		"sha256-" + hexForm,
		base32Form,
		"sha256:" + base32Form,
	} {
		got, err := parseSHA256(spelling)
		require.NoError(t, err, "spelling %q", spelling)
		assert.Equal(t, digest[:], got, "spelling %q", spelling)
	}
}

// TestParseSHA256_BadLength verifies truncated checksums are rejected
// rather than compared byte-wise.
func TestParseSHA256_BadLength(t *testing.T) {
	_, err := parseSHA256("abcdef")
	assert.Error(t, err)
}

// TestCheckDigest verifies matching digests pass and mismatches carry both
// spellings in the error for debugging.
func TestCheckDigest(t *testing.T) {
	digest := sha256.Sum256([]byte("kiln"))

	assert.NoError(t, checkDigest(digest[:], hex.EncodeToString(digest[:])))

	other := sha256.Sum256([]byte("not-kiln"))
	err := checkDigest(digest[:], hex.EncodeToString(other[:]))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sha256 mismatch")
}
