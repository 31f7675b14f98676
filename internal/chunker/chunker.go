package chunker

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// DefaultSize is the read buffer size used when callers pass a non-positive size.
	DefaultSize = 64 << 10
	// MaxSize bounds the buffer a single chunker may allocate.
	MaxSize = 64 << 20
)

// ErrInvalidSize is returned for chunk sizes outside [1, MaxSize].
var ErrInvalidSize = errors.New("invalid chunk size")

// Chunker provides streaming chunking of data from an io.Reader.
// Every chunk except the last is exactly the configured size, and chunks are
// returned in stream order.
type Chunker struct {
	reader    io.Reader
	chunkSize int
	buffer    []byte
	offset    int64
	index     int
}

// NewChunker creates a new streaming chunker
func NewChunker(r io.Reader, chunkSize int) (*Chunker, error) {
	if chunkSize <= 0 || chunkSize > MaxSize {
		return nil, fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidSize, chunkSize, MaxSize)
	}
	return &Chunker{
		reader:    r,
		chunkSize: chunkSize,
		buffer:    make([]byte, chunkSize),
	}, nil
}

// Next returns the next chunk of data, or io.EOF once the stream is drained.
// The returned slice aliases the chunker's buffer and is only valid until the
// following call.
func (c *Chunker) Next() ([]byte, error) {
	n, err := io.ReadFull(c.reader, c.buffer)
	switch {
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
		c.offset += int64(n)
		c.index++
		return c.buffer[:n], nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	default:
		return nil, err
	}
}

// Offset returns the number of bytes handed out so far.
func (c *Chunker) Offset() int64 { return c.offset }

// Count returns the number of chunks handed out so far.
func (c *Chunker) Count() int { return c.index }

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// ReadChunk reads a specific chunk from the file
func ReadChunk(filePath string, chunkIndex int, chunkSize int) ([]byte, error) {
	if chunkIndex < 0 {
		return nil, fmt.Errorf("invalid chunk index %d", chunkIndex)
	}
	if chunkSize <= 0 || chunkSize > MaxSize {
		return nil, fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidSize, chunkSize, MaxSize)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	offset := int64(chunkIndex) * int64(chunkSize)
	buffer := make([]byte, chunkSize)
	n, err := file.ReadAt(buffer, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read chunk at offset %d: %w", offset, err)
	}

	return buffer[:n], nil
}
