package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Reader throttles reads from an underlying reader to a byte rate.
type Reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

// NewReader wraps r so that it yields at most bytesPerSecond bytes per second.
// burst bounds the size of a single read; values below 1 default to bytesPerSecond.
// A non-positive bytesPerSecond disables throttling and returns r unchanged.
func NewReader(ctx context.Context, r io.Reader, bytesPerSecond int64, burst int) io.Reader {
	if bytesPerSecond <= 0 {
		return r
	}
	if burst < 1 {
		burst = int(bytesPerSecond)
	}
	return &Reader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

// Read reads at most one burst and then waits for the limiter to admit the bytes read.
// A cancelled context is reported as the read error.
func (tr *Reader) Read(p []byte) (int, error) {
	if err := tr.ctx.Err(); err != nil {
		return 0, err
	}
	if burst := tr.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := tr.r.Read(p)
	if n > 0 {
		if werr := tr.limiter.WaitN(tr.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
