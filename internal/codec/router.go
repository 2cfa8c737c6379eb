package codec

import (
	"context"
	"fmt"
	"strings"

	"github.com/bamsammich/arc7/internal/format"
)

// Router sends each request to the native codec when it can serve it and to
// the 7-Zip binary otherwise. SevenZip may be nil, in which case requests
// only the binary can serve fail with ErrUnsupported.
type Router struct {
	Native   *Native
	SevenZip *SevenZip
}

// NewRouter creates a Router. sz may be nil.
func NewRouter(n *Native, sz *SevenZip) *Router {
	return &Router{Native: n, SevenZip: sz}
}

func (r *Router) forCompress(job CompressJob) (Codec, error) {
	reason := r.Native.Supports(job)
	if reason == nil {
		return r.Native, nil
	}
	if r.SevenZip == nil {
		return nil, fmt.Errorf("%w (install 7-Zip to enable it)", reason)
	}
	return r.SevenZip, nil
}

// forRead picks a codec for reading archive. The binary handles encrypted
// zip and split volumes; everything else is read natively.
func (r *Router) forRead(ctx context.Context, archive string, password []byte) (Codec, error) {
	needsBinary := strings.HasSuffix(strings.ToLower(archive), ".001")
	if !needsBinary && len(password) > 0 {
		if k, err := format.Detect(ctx, archive); err == nil && k == format.Zip {
			needsBinary = true
		}
	}
	if !needsBinary {
		return r.Native, nil
	}
	if r.SevenZip == nil {
		return nil, fmt.Errorf("%w: reading %s needs 7-Zip", ErrUnsupported, archive)
	}
	return r.SevenZip, nil
}

func (r *Router) Compress(ctx context.Context, job CompressJob, cb Callbacks) error {
	c, err := r.forCompress(job)
	if err != nil {
		return err
	}
	return c.Compress(ctx, job, cb)
}

func (r *Router) Extract(ctx context.Context, job ExtractJob, cb Callbacks) error {
	c, err := r.forRead(ctx, job.Archive, job.Password)
	if err != nil {
		return err
	}
	return c.Extract(ctx, job, cb)
}

func (r *Router) List(ctx context.Context, archive string, password []byte) ([]Entry, error) {
	c, err := r.forRead(ctx, archive, password)
	if err != nil {
		return nil, err
	}
	return c.List(ctx, archive, password)
}

func (r *Router) Check(ctx context.Context, archive string, password []byte) (Info, error) {
	c, err := r.forRead(ctx, archive, password)
	if err != nil {
		return Info{}, err
	}
	return c.Check(ctx, archive, password)
}
