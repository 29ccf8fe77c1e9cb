// Package channel implements positioned byte channels over single objects:
// seekable reads against stored content, and buffered writes that commit
// the full object atomically at close.
package channel

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// ReadChannel is a randomly-addressable read handle over one object. The
// size is fixed at open time and does not change for the life of the
// session. A ReadChannel is not safe for concurrent use.
type ReadChannel struct {
	ctx     context.Context
	backend types.Backend
	bucket  string
	key     string
	size    int64
	pos     int64
	closed  bool
}

// NewReader opens a read channel over bucket/key. size must be the
// object's length at open time.
func NewReader(ctx context.Context, backend types.Backend, bucket, key string, size int64) *ReadChannel {
	return &ReadChannel{ctx: ctx, backend: backend, bucket: bucket, key: key, size: size}
}

// Read fills p from the current position, advancing it. Reading at or past
// the object's size returns io.EOF.
func (c *ReadChannel) Read(p []byte) (int, error) {
	if c.closed {
		return 0, errClosed("read", c.bucket, c.key)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if c.pos >= c.size {
		return 0, io.EOF
	}

	want := int64(len(p))
	if remaining := c.size - c.pos; want > remaining {
		want = remaining
	}
	data, err := c.backend.GetBytes(c.ctx, c.bucket, c.key, types.ByteRange{Offset: c.pos, Length: want})
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	c.pos += int64(n)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Seek sets the position. Seeking beyond the object's size is not an
// error; the next read simply reports end-of-stream.
func (c *ReadChannel) Seek(offset int64, whence int) (int64, error) {
	if c.closed {
		return 0, errClosed("seek", c.bucket, c.key)
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = c.pos + offset
	case io.SeekEnd:
		pos = c.size + offset
	default:
		return 0, bfserrors.Newf(bfserrors.ErrCodeInvalidArgument, "invalid seek whence %d", whence)
	}
	if pos < 0 {
		return 0, bfserrors.Newf(bfserrors.ErrCodeInvalidArgument, "negative seek position %d", pos)
	}
	c.pos = pos
	return pos, nil
}

// Position returns the current read position.
func (c *ReadChannel) Position() int64 { return c.pos }

// Size returns the object's length as observed at open time.
func (c *ReadChannel) Size() int64 { return c.size }

// Close marks the channel closed. Further operations fail with a state
// error.
func (c *ReadChannel) Close() error {
	c.closed = true
	return nil
}

// WriteChannel accumulates all written bytes and commits them as a single
// atomic replace of the target object on Close. Abandoning the channel
// without closing commits nothing. A WriteChannel is not safe for
// concurrent use.
type WriteChannel struct {
	ctx     context.Context
	backend types.Backend
	bucket  string
	key     string
	meta    types.ObjectMetadata
	pre     types.Precondition
	logger  *slog.Logger

	buf      *spool
	writeErr error
	closed   bool
}

// WriterOptions configures a write session.
type WriterOptions struct {
	// Metadata is attached to the object at commit time.
	Metadata types.ObjectMetadata
	// Precondition guards the commit; DoesNotExist implements create-new.
	Precondition types.Precondition
	// SpoolFs and SpoolDir locate temporary spill storage.
	SpoolFs  afero.Fs
	SpoolDir string
	// SpoolThreshold is the in-memory limit before spilling to SpoolFs.
	SpoolThreshold int64
	Logger         *slog.Logger
}

// NewWriter opens a write channel targeting bucket/key. Nothing is visible
// in the store until Close succeeds.
func NewWriter(ctx context.Context, backend types.Backend, bucket, key string, opts WriterOptions) *WriteChannel {
	fs := opts.SpoolFs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	threshold := opts.SpoolThreshold
	if threshold <= 0 {
		threshold = 8 * 1024 * 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WriteChannel{
		ctx:     ctx,
		backend: backend,
		bucket:  bucket,
		key:     key,
		meta:    opts.Metadata,
		pre:     opts.Precondition,
		logger:  logger,
		buf:     newSpool(fs, opts.SpoolDir, threshold),
	}
}

// Write appends p to the session buffer. A failed write poisons the
// session: every later write and the final Close report the failure, and
// nothing is ever committed.
func (c *WriteChannel) Write(p []byte) (int, error) {
	if c.closed {
		return 0, errClosed("write", c.bucket, c.key)
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	n, err := c.buf.Write(p)
	if err != nil {
		c.writeErr = err
	}
	return n, err
}

// Position returns the number of bytes written so far. Write sessions are
// append-only, so position and size coincide.
func (c *WriteChannel) Position() int64 { return c.buf.Len() }

// Size returns the number of bytes written so far, not any prior remote
// content.
func (c *WriteChannel) Size() int64 { return c.buf.Len() }

// Close commits the full buffered content as one atomic replace of the
// target object. If the commit's precondition no longer holds, or any
// write in the session failed, Close fails and the previously-existing
// object, if any, is left unmodified. A second Close is a no-op.
func (c *WriteChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	defer func() {
		if err := c.buf.Close(); err != nil {
			c.logger.Warn("failed to release write spool", "bucket", c.bucket, "key", c.key, "error", err)
		}
	}()

	if c.writeErr != nil {
		// The buffer holds a partial prefix of the session; committing
		// it would replace the stored object with truncated content.
		return c.writeErr
	}
	data, err := c.buf.Bytes()
	if err != nil {
		return err
	}
	_, err = c.backend.PutObject(c.ctx, c.bucket, c.key, data, c.meta, c.pre)
	return err
}

func errClosed(op, bucket, key string) error {
	return bfserrors.New(bfserrors.ErrCodeClosedChannel, "channel is closed").WithOp(op).WithObject(bucket, key)
}
