// Package hashing computes file digests over bounded-memory chunked reads.
//
// MD5 and SHA-1 are supported for compatibility with existing checksums but are
// cryptographically broken; prefer SHA-256, SHA3-256, BLAKE2b-256 or BLAKE3 for
// anything that must resist tampering.
package hashing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quantarax/filehash/internal/chunker"
	"github.com/quantarax/filehash/internal/observability"
	"github.com/quantarax/filehash/internal/ratelimit"
)

// DefaultChunkSize is the read buffer used when no chunk size is configured.
const DefaultChunkSize = chunker.DefaultSize

// Hasher computes digests. It keeps collaborators only and is safe for
// concurrent use; every call owns its own file handle and accumulator.
type Hasher struct {
	chunkSize int
	rateLimit int64
	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithChunkSize sets the read buffer size. Non-positive values select
// DefaultChunkSize; values above chunker.MaxSize are clamped to it.
func WithChunkSize(n int) Option {
	return func(h *Hasher) {
		switch {
		case n <= 0:
			n = DefaultChunkSize
		case n > chunker.MaxSize:
			n = chunker.MaxSize
		}
		h.chunkSize = n
	}
}

// WithRateLimit caps read throughput in bytes per second. Zero disables throttling.
func WithRateLimit(bytesPerSecond int64) Option {
	return func(h *Hasher) { h.rateLimit = bytesPerSecond }
}

func WithLogger(l *observability.Logger) Option {
	return func(h *Hasher) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hasher) { h.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(h *Hasher) {
		if t != nil {
			h.tracer = t
		}
	}
}

// New returns a Hasher with the given options applied.
func New(opts ...Option) *Hasher {
	h := &Hasher{
		chunkSize: DefaultChunkSize,
		logger:    observability.NewNopLogger(),
		tracer:    observability.Tracer(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Derive returns a copy of h sharing its collaborators with opts applied on top.
func (h *Hasher) Derive(opts ...Option) *Hasher {
	c := *h
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// ChunkSize returns the configured read buffer size.
func (h *Hasher) ChunkSize() int { return h.chunkSize }

// ChunkFunc observes each chunk in stream order, after it has been fed to the
// accumulator. chunk is only valid for the duration of the call. A non-nil
// return aborts hashing and is returned unchanged.
type ChunkFunc func(index int, offset int64, chunk []byte) error

// readError marks failures of the underlying reader so that callers can tell
// them apart from ChunkFunc and context errors.
type readError struct{ err error }

func (e *readError) Error() string { return e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

// HashReader feeds r to a fresh accumulator for alg, one chunk at a time and in
// stream order, and returns the finished digest. Read failures are returned
// unwrapped; DigestFile attaches the path.
func (h *Hasher) HashReader(ctx context.Context, r io.Reader, alg Algorithm) (Digest, error) {
	d, err := h.stream(ctx, r, alg, nil)
	var rerr *readError
	if errors.As(err, &rerr) {
		return Digest{}, rerr.err
	}
	return d, err
}

func (h *Hasher) stream(ctx context.Context, r io.Reader, alg Algorithm, fn ChunkFunc) (Digest, error) {
	acc, err := alg.New()
	if err != nil {
		return Digest{}, err
	}

	c, err := chunker.NewChunker(ratelimit.NewReader(ctx, r, h.rateLimit, h.chunkSize), h.chunkSize)
	if err != nil {
		return Digest{}, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return Digest{}, err
		}
		offset := c.Offset()
		chunk, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Digest{}, &readError{err: err}
		}
		// hash.Hash.Write never returns an error.
		acc.Write(chunk)
		if fn != nil {
			if err := fn(c.Count()-1, offset, chunk); err != nil {
				return Digest{}, err
			}
		}
	}

	return Digest{
		Algorithm: alg,
		Sum:       acc.Sum(nil),
		Size:      c.Offset(),
		Chunks:    c.Count(),
	}, nil
}

// DigestFile hashes the file at path. The algorithm is checked before the file
// is opened, and the file is closed on every return path.
func (h *Hasher) DigestFile(ctx context.Context, path string, alg Algorithm) (Digest, error) {
	return h.digestFile(ctx, "hashing.DigestFile", path, alg, nil)
}

// WalkFile hashes the file at path like DigestFile and calls fn for every
// chunk of the configured chunk size.
func (h *Hasher) WalkFile(ctx context.Context, path string, alg Algorithm, fn ChunkFunc) (Digest, error) {
	return h.digestFile(ctx, "hashing.WalkFile", path, alg, fn)
}

func (h *Hasher) digestFile(ctx context.Context, spanName, path string, alg Algorithm, fn ChunkFunc) (d Digest, err error) {
	if !alg.Valid() {
		return Digest{}, &UnsupportedAlgorithmError{Name: alg.String()}
	}

	log := h.logger.WithFile(path).WithAlgorithm(alg.String())
	ctx, span := h.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("file.path", path),
		attribute.String("hash.algorithm", alg.String()),
		attribute.Int("hash.chunk_size", h.chunkSize),
	))
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		span.SetAttributes(
			attribute.Int64("hash.bytes", d.Size),
			attribute.Int("hash.chunks", d.Chunks),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.HashFailed(err)
		} else {
			log.HashCompleted(d.Size, d.Chunks, elapsed)
		}
		if h.metrics != nil {
			h.metrics.RecordHash(alg.String(), err == nil, d.Size, d.Chunks, elapsed.Seconds())
		}
		span.End()
	}()

	f, err := os.Open(path)
	if err != nil {
		return Digest{}, &FileAccessError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Digest{}, &FileAccessError{Op: "stat", Path: path, Err: err}
	}
	if info.IsDir() {
		return Digest{}, &FileAccessError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}

	log.HashStarted(info.Size(), h.chunkSize)

	d, err = h.stream(ctx, f, alg, fn)
	if err != nil {
		var rerr *readError
		switch {
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			return Digest{}, fmt.Errorf("hash %s: %w", path, ctx.Err())
		case errors.As(err, &rerr):
			return Digest{}, &FileAccessError{Op: "read", Path: path, Err: rerr.err}
		default:
			return Digest{}, err
		}
	}
	return d, nil
}

// HashFile hashes the file at path and renders the digest in enc.
func (h *Hasher) HashFile(ctx context.Context, path string, alg Algorithm, enc Encoding) (string, error) {
	d, err := h.DigestFile(ctx, path, alg)
	if err != nil {
		return "", err
	}
	return d.Encode(enc), nil
}
