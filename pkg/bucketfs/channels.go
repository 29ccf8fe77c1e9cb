package bucketfs

import (
	"context"
	"io"

	"github.com/bucketfs/bucketfs/internal/attrs"
	"github.com/bucketfs/bucketfs/internal/channel"
	"github.com/bucketfs/bucketfs/internal/metrics"
	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// ReadChannel is a randomly-addressable read handle over one object.
// Seeking past the end is allowed; the following read reports
// end-of-stream. Size is fixed at open time. Not safe for concurrent use.
type ReadChannel interface {
	io.Reader
	io.Seeker
	io.Closer
	Position() int64
	Size() int64
}

// WriteChannel buffers written bytes and commits them as one atomic
// replace of the target object on Close. Position and Size report bytes
// written so far. Abandoning the channel without closing commits nothing.
// Not safe for concurrent use.
type WriteChannel interface {
	io.Writer
	io.Closer
	Position() int64
	Size() int64
}

// WriteOption customizes a write session.
type WriteOption func(*writeSettings)

type writeSettings struct {
	meta               types.ObjectMetadata
	createNew          bool
	appendExisting     bool
	allowTrailingSlash bool
}

// WithContentType sets the object's content type at commit.
func WithContentType(ct string) WriteOption {
	return func(s *writeSettings) { s.meta.ContentType = ct }
}

// WithCacheControl sets the object's cache-control at commit.
func WithCacheControl(cc string) WriteOption {
	return func(s *writeSettings) { s.meta.CacheControl = cc }
}

// WithContentEncoding sets the object's content encoding at commit.
func WithContentEncoding(ce string) WriteOption {
	return func(s *writeSettings) { s.meta.ContentEncoding = ce }
}

// WithContentDisposition sets the object's content disposition at commit.
func WithContentDisposition(cd string) WriteOption {
	return func(s *writeSettings) { s.meta.ContentDisposition = cd }
}

// WithUserMetadata attaches the user metadata mapping at commit.
func WithUserMetadata(m map[string]string) WriteOption {
	return func(s *writeSettings) { s.meta.UserMetadata = m }
}

// WithACL attaches an access-control list at commit.
func WithACL(acl []types.Grant) WriteOption {
	return func(s *writeSettings) { s.meta.ACL = acl }
}

// CreateNew requires that the target not exist: the open fails with
// already-exists when it does, and a concurrent creation surfaces as a
// failed commit precondition, leaving the racing object untouched.
func CreateNew() WriteOption {
	return func(s *writeSettings) { s.createNew = true }
}

// Appending pre-seeds the session buffer with the object's current
// content, so the commit rewrites old bytes followed by new ones. An
// absent target starts empty.
func Appending() WriteOption {
	return func(s *writeSettings) { s.appendExisting = true }
}

// AllowTrailingSlash permits writing through a directory-flagged path,
// producing an explicit trailing-delimiter marker object.
func AllowTrailingSlash() WriteOption {
	return func(s *writeSettings) { s.allowTrailingSlash = true }
}

// ReadAttributes resolves an attribute request of the form "view:n1,n2",
// "n1,n2" (generic view), or "view:*" against the path's resolved state.
// Attribute names the view does not define are silently omitted.
func (fs *FileSystem) ReadAttributes(ctx context.Context, path Path, request string) (result map[string]interface{}, err error) {
	defer fs.track("read_attributes")(&err)

	info, err := fs.stat(ctx, path)
	if err != nil {
		return nil, err
	}
	return attrs.ReadAttributes(attrs.FileHead{Object: info.Object, IsDir: info.IsDir}, request)
}

// NewReadChannel opens a seekable read channel over the object at path,
// failing with a pseudo-directory condition for directory paths and
// not-found for absent objects.
func (fs *FileSystem) NewReadChannel(ctx context.Context, path Path) (ch ReadChannel, err error) {
	defer fs.track("open_read")(&err)

	if fs.isDirPath(path) {
		return nil, errPseudoDir("open_read", path)
	}
	key := path.ObjectKey(fs.cfg.Filesystem)
	obj, err := fs.backend.GetObject(ctx, path.Bucket(), key)
	if err != nil {
		return nil, err
	}
	return &meteredReader{
		inner:   channel.NewReader(ctx, fs.backend, path.Bucket(), key, obj.Size),
		metrics: fs.metrics,
	}, nil
}

// NewWriteChannel opens a buffered write channel targeting path. Default
// semantics are truncate-then-write; see WriteOption for create-new,
// append, and metadata behavior. Nothing is visible in the store until
// Close succeeds.
func (fs *FileSystem) NewWriteChannel(ctx context.Context, path Path, opts ...WriteOption) (ch WriteChannel, err error) {
	defer fs.track("open_write")(&err)

	var settings writeSettings
	for _, opt := range opts {
		opt(&settings)
	}

	key := path.ObjectKey(fs.cfg.Filesystem)
	if fs.isDirPath(path) {
		if !settings.allowTrailingSlash || path.IsRoot() {
			return nil, errPseudoDir("open_write", path)
		}
		key = path.MarkerKey()
	}

	pre := types.PreconditionNone
	if settings.createNew {
		if _, err := fs.backend.GetObject(ctx, path.Bucket(), key); err == nil {
			return nil, bfserrors.New(bfserrors.ErrCodeAlreadyExists, "target already exists").
				WithOp("open_write").WithObject(path.Bucket(), key)
		} else if !bfserrors.IsNotFound(err) {
			return nil, err
		}
		pre = types.PreconditionDoesNotExist
	}

	w := channel.NewWriter(ctx, fs.backend, path.Bucket(), key, channel.WriterOptions{
		Metadata:       settings.meta,
		Precondition:   pre,
		SpoolDir:       fs.cfg.Spool.Directory,
		SpoolThreshold: fs.cfg.Spool.MemoryThreshold,
		Logger:         fs.logger,
	})

	if settings.appendExisting {
		if err := fs.seedFromExisting(ctx, path.Bucket(), key, w); err != nil {
			return nil, err
		}
	}
	return &meteredWriter{inner: w, metrics: fs.metrics}, nil
}

// seedFromExisting copies the object's current content into the write
// buffer for append semantics. Absent objects seed nothing.
func (fs *FileSystem) seedFromExisting(ctx context.Context, bucket, key string, w *channel.WriteChannel) error {
	obj, err := fs.backend.GetObject(ctx, bucket, key)
	if bfserrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if obj.Size == 0 {
		return nil
	}
	data, err := fs.backend.GetBytes(ctx, bucket, key, types.ByteRange{Offset: 0, Length: -1})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadFile reads the whole object at path.
func (fs *FileSystem) ReadFile(ctx context.Context, path Path) ([]byte, error) {
	ch, err := fs.NewReadChannel(ctx, path)
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	return io.ReadAll(ch)
}

// WriteFile replaces the object at path with data in one session.
func (fs *FileSystem) WriteFile(ctx context.Context, path Path, data []byte, opts ...WriteOption) error {
	ch, err := fs.NewWriteChannel(ctx, path, opts...)
	if err != nil {
		return err
	}
	if _, err := ch.Write(data); err != nil {
		ch.Close()
		return err
	}
	return ch.Close()
}

func errPseudoDir(op string, path Path) error {
	return bfserrors.New(bfserrors.ErrCodePseudoDirectory, "byte-level I/O on a directory path").
		WithOp(op).WithObject(path.Bucket(), path.Key())
}

// meteredReader counts bytes flowing through a read channel.
type meteredReader struct {
	inner   *channel.ReadChannel
	metrics *metrics.Collector
}

func (r *meteredReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	r.metrics.RecordBytes("read", int64(n))
	return n, err
}

func (r *meteredReader) Seek(offset int64, whence int) (int64, error) {
	return r.inner.Seek(offset, whence)
}

func (r *meteredReader) Position() int64 { return r.inner.Position() }
func (r *meteredReader) Size() int64     { return r.inner.Size() }
func (r *meteredReader) Close() error    { return r.inner.Close() }

// meteredWriter counts bytes flowing through a write channel.
type meteredWriter struct {
	inner   *channel.WriteChannel
	metrics *metrics.Collector
}

func (w *meteredWriter) Write(p []byte) (int, error) {
	n, err := w.inner.Write(p)
	w.metrics.RecordBytes("write", int64(n))
	return n, err
}

func (w *meteredWriter) Position() int64 { return w.inner.Position() }
func (w *meteredWriter) Size() int64     { return w.inner.Size() }
func (w *meteredWriter) Close() error    { return w.inner.Close() }
