package store

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Nix-style base32 uses a restricted alphabet (no e, o, u, t) to avoid
// accidental words in store paths. Checksums in lock files may be spelled
// either in this base32 form or as plain hex.
const nixBase32Alphabet = "0123456789abcdfghijklmnpqrsvwxyz"

// sha256 digests are 32 bytes: 64 hex characters or 52 base32 characters.
const (
	sha256HexLen    = 64
	sha256Base32Len = 52
)

// checkDigest compares a computed sha256 digest against the expected
// checksum from a lock pin. The expected string may carry a "sha256:" or
// "sha256-" prefix and may be spelled in hex or nix-base32.
func checkDigest(computed []byte, expected string) error {
	want, err := parseSHA256(expected)
	if err != nil {
		return err
	}
	if !bytes.Equal(computed, want) {
		return fmt.Errorf("sha256 mismatch: got %s, want %s", hex.EncodeToString(computed), expected)
	}
	return nil
}

// parseSHA256 decodes a checksum string into raw digest bytes, accepting
// both hex and nix-base32 spellings.
func parseSHA256(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "sha256:"), "sha256-")
	switch len(trimmed) {
	case sha256HexLen:
		digest, err := hex.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid hex sha256 %q: %w", s, err)
		}
		return digest, nil
	case sha256Base32Len:
		digest, err := fromNixBase32(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid base32 sha256 %q: %w", s, err)
		}
		return digest, nil
	default:
		return nil, fmt.Errorf("sha256 checksum %q has unexpected length %d", s, len(trimmed))
	}
}

// fromNixBase32 converts a Nix base32 spelling back to raw bytes. Nix
// encodes from the least significant bit and emits characters in reverse,
// which is why this differs from standard base32.
func fromNixBase32(s string) ([]byte, error) {
	hashSize := len(s) * 5 / 8
	hash := make([]byte, hashSize)

	for n := 0; n < len(s); n++ {
		c := s[len(s)-n-1]
		digit := strings.IndexByte(nixBase32Alphabet, c)
		if digit < 0 {
			return nil, fmt.Errorf("invalid base32 character %q", c)
		}

		bit := n * 5
		i := bit / 8
		j := bit % 8

		hash[i] |= byte(digit) << uint(j)
		if j > 3 {
			if i >= hashSize-1 {
				// Top bits spilling past the digest length must be zero,
				// otherwise the string does not decode to a whole digest.
				if byte(digit)>>uint(8-j) != 0 {
					return nil, fmt.Errorf("invalid base32 string %q: non-zero padding", s)
				}
			} else {
				hash[i+1] |= byte(digit) >> uint(8-j)
			}
		}
	}
	return hash, nil
}
