package resource

import (
	"context"
	"io"
)

// RateLimitedReader throttles input reads against the IO limit of rc.
type RateLimitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewRateLimitedReader wraps r. A nil rc or an unlimited controller reads
// without waiting.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{
		ctx: ctx,
		r:   r,
		rc:  rc,
	}
}

// Read waits for tokens covering len(p), capped at the limiter burst, then
// reads at most that many bytes.
func (r *RateLimitedReader) Read(p []byte) (int, error) {
	if burst := r.rc.IOBurst(); burst > 0 && len(p) > burst {
		p = p[:burst]
	}
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
