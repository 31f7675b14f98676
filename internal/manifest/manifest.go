// Package manifest records per-chunk digests of a file so that corruption in
// a large file can be located without rehashing a known-good copy.
package manifest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/quantarax/filehash/internal/chunker"
	"github.com/quantarax/filehash/internal/hashing"
	"github.com/quantarax/filehash/internal/validation"
)

// Manifest represents the complete file chunking metadata
type Manifest struct {
	ID         string            `json:"id"`
	FileName   string            `json:"file_name"`
	FileSize   int64             `json:"file_size"`
	ChunkSize  int               `json:"chunk_size"`
	ChunkCount int               `json:"chunk_count"`
	Algorithm  hashing.Algorithm `json:"algorithm"`
	Chunks     []ChunkDescriptor `json:"chunks"`
	Digest     string            `json:"digest"`
	MerkleRoot string            `json:"merkle_root"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ChunkDescriptor describes a single chunk
type ChunkDescriptor struct {
	Index  int    `json:"index"`
	Offset int64  `json:"offset"`
	Length int    `json:"length"`
	Hash   string `json:"hash"` // Base64
}

// ErrInvalidManifest marks a manifest that cannot be parsed or used.
var ErrInvalidManifest = errors.New("invalid manifest")

// Options configures chunking behavior
type Options struct {
	ChunkSize int
	Algorithm hashing.Algorithm
	// Hasher supplies logging, metrics, tracing and rate limiting. Nil uses a
	// bare hashing.New().
	Hasher *hashing.Hasher
}

// DefaultOptions returns default chunking options
func DefaultOptions() Options {
	return Options{
		ChunkSize: 1 << 20, // 1 MiB
		Algorithm: hashing.BLAKE3,
	}
}

// Compute generates a manifest for the file at filePath in a single pass.
// A zero ChunkSize selects the default; anything else must lie in
// [1, chunker.MaxSize].
func Compute(ctx context.Context, filePath string, options Options) (*Manifest, error) {
	if options.ChunkSize == 0 {
		options.ChunkSize = DefaultOptions().ChunkSize
	}
	if err := validation.ValidateRangeInt(options.ChunkSize, 1, chunker.MaxSize); err != nil {
		return nil, fmt.Errorf("chunk size: %w", err)
	}
	if options.Hasher == nil {
		options.Hasher = hashing.New()
	}
	alg := options.Algorithm

	var chunks []ChunkDescriptor
	var hashes [][]byte
	h := options.Hasher.Derive(hashing.WithChunkSize(options.ChunkSize))
	d, err := h.WalkFile(ctx, filePath, alg, func(index int, offset int64, data []byte) error {
		sum, err := sumOf(alg, data)
		if err != nil {
			return err
		}
		hashes = append(hashes, sum)
		chunks = append(chunks, ChunkDescriptor{
			Index:  index,
			Offset: offset,
			Length: len(data),
			Hash:   base64.StdEncoding.EncodeToString(sum),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Empty files get one empty chunk so the Merkle root is defined.
	if len(chunks) == 0 {
		sum, err := sumOf(alg, nil)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, sum)
		chunks = append(chunks, ChunkDescriptor{Hash: base64.StdEncoding.EncodeToString(sum)})
	}

	root, err := MerkleRoot(alg, hashes)
	if err != nil {
		return nil, err
	}

	return &Manifest{
		ID:         uuid.New().String(),
		FileName:   filepath.Base(filePath),
		FileSize:   d.Size,
		ChunkSize:  options.ChunkSize,
		ChunkCount: len(chunks),
		Algorithm:  alg,
		Chunks:     chunks,
		Digest:     d.Encode(hashing.HexLower),
		MerkleRoot: base64.StdEncoding.EncodeToString(root),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Verify rehashes the file at filePath against m and returns the indexes of
// chunks whose content changed. Chunks missing from a truncated file and data
// appended past the recorded size are reported too; appended data is reported
// as index m.ChunkCount. A nil h uses a bare hashing.New().
func Verify(ctx context.Context, h *hashing.Hasher, filePath string, m *Manifest) ([]int, error) {
	current, err := Compute(ctx, filePath, Options{ChunkSize: m.ChunkSize, Algorithm: m.Algorithm, Hasher: h})
	if err != nil {
		return nil, err
	}

	var bad []int
	for i, want := range m.Chunks {
		if i >= len(current.Chunks) || current.Chunks[i].Hash != want.Hash || current.Chunks[i].Length != want.Length {
			bad = append(bad, i)
		}
	}
	if len(current.Chunks) > len(m.Chunks) {
		bad = append(bad, len(m.Chunks))
	}
	return bad, nil
}

// VerifyChunk rereads a single chunk and reports whether it still matches.
func VerifyChunk(filePath string, m *Manifest, index int) (bool, error) {
	if !m.Algorithm.Valid() {
		return false, &hashing.UnsupportedAlgorithmError{Name: m.Algorithm.String()}
	}
	if index < 0 || index >= len(m.Chunks) {
		return false, fmt.Errorf("%w: chunk %d not in [0,%d)", validation.ErrOutOfRange, index, len(m.Chunks))
	}
	data, err := chunker.ReadChunk(filePath, index, m.ChunkSize)
	if err != nil {
		if errors.Is(err, chunker.ErrInvalidSize) {
			return false, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		return false, &hashing.FileAccessError{Op: "read", Path: filePath, Err: err}
	}
	sum, err := sumOf(m.Algorithm, data)
	if err != nil {
		return false, err
	}
	want := m.Chunks[index]
	return len(data) == want.Length && base64.StdEncoding.EncodeToString(sum) == want.Hash, nil
}

// Load reads a JSON manifest. Read failures are FileAccessErrors; content that
// cannot be used wraps ErrInvalidManifest, or is an UnsupportedAlgorithmError
// when the algorithm is missing or unknown.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &hashing.FileAccessError{Op: "read", Path: path, Err: err}
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		if errors.Is(err, hashing.ErrUnsupportedAlgorithm) {
			return nil, err
		}
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidManifest, path, err)
	}
	if !m.Algorithm.Valid() {
		return nil, &hashing.UnsupportedAlgorithmError{Name: m.Algorithm.String()}
	}
	if err := validation.ValidateRangeInt(m.ChunkSize, 1, chunker.MaxSize); err != nil {
		return nil, fmt.Errorf("%w %s: chunk_size: %v", ErrInvalidManifest, path, err)
	}
	if len(m.Chunks) == 0 {
		return nil, fmt.Errorf("%w %s: no chunks", ErrInvalidManifest, path)
	}
	return &m, nil
}

func sumOf(alg hashing.Algorithm, data []byte) ([]byte, error) {
	h, err := alg.New()
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}
