package hashing

import "context"

// ComputeHash returns the uppercase hex MD5 digest of the file at path.
func ComputeHash(path string) (string, error) {
	return ComputeHashWith(path, MD5)
}

// ComputeHashWith returns the uppercase hex digest of the file at path under alg.
func ComputeHashWith(path string, alg Algorithm) (string, error) {
	return New().HashFile(context.Background(), path, alg, HexUpper)
}

// ComputeHashStreamed hashes the file at path reading chunkSize bytes at a time.
// A non-positive chunkSize selects DefaultChunkSize.
func ComputeHashStreamed(path string, alg Algorithm, enc Encoding, chunkSize int) (string, error) {
	return New(WithChunkSize(chunkSize)).HashFile(context.Background(), path, alg, enc)
}

// ComputeHashCompact returns the Base64 SHA-1 digest of the file at path.
func ComputeHashCompact(path string) (string, error) {
	return ComputeHashStreamed(path, SHA1, Base64, DefaultChunkSize)
}

// ComputeMD5Hex returns the lowercase hex MD5 digest of the file at path.
func ComputeMD5Hex(path string) (string, error) {
	return ComputeHashStreamed(path, MD5, HexLower, DefaultChunkSize)
}
