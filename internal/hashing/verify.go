package hashing

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Verify hashes the file at path and compares it with expected, given either
// as hex (any case) or as standard Base64. A mismatch returns the computed
// digest together with a *MismatchError.
func (h *Hasher) Verify(ctx context.Context, path string, alg Algorithm, expected string) (Digest, error) {
	if !alg.Valid() {
		return Digest{}, &UnsupportedAlgorithmError{Name: alg.String()}
	}
	want, ok := decodeExpected(expected, alg.Size())

	d, err := h.DigestFile(ctx, path, alg)
	if err != nil {
		return Digest{}, err
	}

	match := ok && subtle.ConstantTimeCompare(want, d.Sum) == 1
	if h.metrics != nil {
		h.metrics.RecordVerification(match)
	}
	if !match {
		actual := d.Encode(HexLower)
		h.logger.WithFile(path).WithAlgorithm(alg.String()).DigestMismatch(expected, actual)
		return d, &MismatchError{Path: path, Algorithm: alg, Expected: expected, Actual: actual}
	}
	return d, nil
}

// decodeExpected decodes a hex or Base64 digest of the given size.
func decodeExpected(s string, size int) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if len(s) == hex.EncodedLen(size) {
		if b, err := hex.DecodeString(s); err == nil {
			return b, true
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == size {
		return b, true
	}
	return nil, false
}
