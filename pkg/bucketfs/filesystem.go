package bucketfs

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/bucketfs/bucketfs/internal/config"
	"github.com/bucketfs/bucketfs/internal/logging"
	"github.com/bucketfs/bucketfs/internal/metrics"
	"github.com/bucketfs/bucketfs/internal/objpath"
	"github.com/bucketfs/bucketfs/internal/pseudodir"
	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// Path addresses one object or pseudo-directory inside a bucket. Construct
// instances through FileSystem.GetPath or FileSystem.ParsePath so the
// filesystem's normalization policy applies.
type Path = objpath.FilePath

// FileInfo is the resolved state of a path as observed by Stat. Object is
// nil for a pseudo-directory derived purely from key prefixes.
type FileInfo struct {
	Path   Path
	IsDir  bool
	Object *types.StoredObject
}

// FileSystem is the public entry point. It composes the path model,
// directory emulation, and positioned channels over one injected backend.
// A FileSystem holds no durable state of its own and is safe for
// concurrent use; individual channels are not.
type FileSystem struct {
	backend types.Backend
	cfg     *config.Config
	dirs    *pseudodir.Emulator
	logger  *slog.Logger
	metrics *metrics.Collector
}

// Option customizes a FileSystem at construction time.
type Option func(*FileSystem)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(fs *FileSystem) { fs.cfg = cfg }
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(fs *FileSystem) { fs.logger = logger }
}

// WithMetrics installs a metrics collector. Without one, a collector is
// created per the configuration's metrics settings.
func WithMetrics(collector *metrics.Collector) Option {
	return func(fs *FileSystem) { fs.metrics = collector }
}

// New creates a FileSystem over the given backend. The backend is owned by
// the caller and never swapped for the life of the instance.
func New(backend types.Backend, opts ...Option) (*FileSystem, error) {
	if backend == nil {
		return nil, bfserrors.New(bfserrors.ErrCodeInvalidArgument, "backend cannot be nil")
	}

	fs := &FileSystem{
		backend: backend,
		cfg:     config.NewDefault(),
	}
	for _, opt := range opts {
		opt(fs)
	}

	if err := fs.cfg.Validate(); err != nil {
		return nil, err
	}
	if fs.logger == nil {
		fs.logger = logging.New(fs.cfg.Logging.Level).With("component", "bucketfs")
	}
	if fs.metrics == nil && fs.cfg.Metrics.Enabled {
		fs.metrics = metrics.NewCollector(fs.cfg.Metrics.Namespace)
	}
	fs.dirs = pseudodir.New(backend, fs.cfg.Filesystem)

	fs.logger.Debug("filesystem created", "config", fs.cfg.String())
	return fs, nil
}

// Metrics returns the filesystem's collector, or nil when metrics are
// disabled.
func (fs *FileSystem) Metrics() *metrics.Collector { return fs.metrics }

// GetPath builds a Path from a bucket and a raw key string. No URI
// escaping or interpretation is applied, so keys may contain characters
// that are illegal in URIs, such as spaces.
func (fs *FileSystem) GetPath(bucket, key string) (Path, error) {
	return objpath.New(bucket, key, fs.cfg.Filesystem)
}

// ParsePath resolves a bfs://bucket/key URI into a Path, percent-decoding
// the key. A reference without an authority component fails immediately
// with an invalid-argument condition.
func (fs *FileSystem) ParsePath(uri string) (Path, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Path{}, bfserrors.Newf(bfserrors.ErrCodeInvalidArgument, "malformed reference %q", uri).WithCause(err)
	}
	if u.Scheme != objpath.Scheme {
		return Path{}, bfserrors.Newf(bfserrors.ErrCodeInvalidArgument,
			"reference %q does not use the %s scheme", uri, objpath.Scheme)
	}
	if u.Host == "" {
		return Path{}, bfserrors.Newf(bfserrors.ErrCodeInvalidArgument,
			"reference %q has no bucket authority", uri)
	}
	return objpath.New(u.Host, u.Path, fs.cfg.Filesystem)
}

// Exists reports whether path resolves to a stored object or a directory.
func (fs *FileSystem) Exists(ctx context.Context, path Path) (exists bool, err error) {
	defer fs.track("exists")(&err)

	if fs.isDirPath(path) {
		return fs.dirs.Exists(ctx, path)
	}
	_, err = fs.backend.GetObject(ctx, path.Bucket(), path.ObjectKey(fs.cfg.Filesystem))
	if err == nil {
		return true, nil
	}
	if !bfserrors.IsNotFound(err) {
		return false, err
	}
	if !fs.cfg.Filesystem.UsePseudoDirectories {
		// Without emulation a bare key and its marker are distinct
		// objects; an existing marker does not make the bare key exist.
		return false, nil
	}
	// No stored object; the path may still be a prefix-derived directory.
	return fs.dirs.IsDirectory(ctx, path)
}

// IsDirectory reports whether path resolves as a directory under the
// filesystem's directory-emulation policy.
func (fs *FileSystem) IsDirectory(ctx context.Context, path Path) (isDir bool, err error) {
	defer fs.track("is_directory")(&err)
	return fs.dirs.IsDirectory(ctx, path)
}

// Stat resolves a path to its stored object or pseudo-directory state,
// failing with not-found when neither applies.
func (fs *FileSystem) Stat(ctx context.Context, path Path) (info *FileInfo, err error) {
	defer fs.track("stat")(&err)
	return fs.stat(ctx, path)
}

func (fs *FileSystem) stat(ctx context.Context, path Path) (*FileInfo, error) {
	if path.SeemsLikeDirectory() {
		isDir, err := fs.dirs.IsDirectory(ctx, path)
		if err != nil {
			return nil, err
		}
		if !isDir {
			return nil, bfserrors.New(bfserrors.ErrCodeNotFound, "no such directory").
				WithOp("stat").WithObject(path.Bucket(), path.Key())
		}
		info := &FileInfo{Path: path, IsDir: true}
		// An explicit marker object contributes its metadata when present.
		if !path.IsRoot() {
			if obj, err := fs.backend.GetObject(ctx, path.Bucket(), path.MarkerKey()); err == nil {
				info.Object = obj
			} else if !bfserrors.IsNotFound(err) {
				return nil, err
			}
		}
		return info, nil
	}

	obj, err := fs.backend.GetObject(ctx, path.Bucket(), path.ObjectKey(fs.cfg.Filesystem))
	if err == nil {
		return &FileInfo{Path: path, Object: obj}, nil
	}
	if !bfserrors.IsNotFound(err) {
		return nil, err
	}
	if fs.cfg.Filesystem.UsePseudoDirectories {
		isDir, dirErr := fs.dirs.IsDirectory(ctx, path)
		if dirErr != nil {
			return nil, dirErr
		}
		if isDir {
			return &FileInfo{Path: path, IsDir: true}, nil
		}
	}
	return nil, err
}

// List enumerates the immediate children of a directory path in
// lexicographic order. Each call restarts enumeration against current
// backend state.
func (fs *FileSystem) List(ctx context.Context, path Path) (children []Path, err error) {
	defer fs.track("list")(&err)

	isDir, err := fs.dirs.IsDirectory(ctx, path)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, bfserrors.New(bfserrors.ErrCodeInvalidArgument, "not a directory").
			WithOp("list").WithObject(path.Bucket(), path.Key())
	}
	return fs.dirs.List(ctx, path)
}

// CreateDirectory materializes a directory. Under pseudo-directory
// emulation every directory already exists, so this is a no-op; with
// emulation disabled it writes a zero-length marker object, failing with
// already-exists when the marker is present.
func (fs *FileSystem) CreateDirectory(ctx context.Context, path Path) (err error) {
	defer fs.track("create_directory")(&err)

	if path.IsRoot() {
		return nil
	}
	if fs.cfg.Filesystem.UsePseudoDirectories {
		return nil
	}
	_, err = fs.backend.PutObject(ctx, path.Bucket(), path.MarkerKey(), nil,
		types.ObjectMetadata{}, types.PreconditionDoesNotExist)
	if bfserrors.IsPreconditionFailed(err) {
		return bfserrors.New(bfserrors.ErrCodeAlreadyExists, "directory already exists").
			WithOp("create_directory").WithObject(path.Bucket(), path.MarkerKey())
	}
	return err
}

// Delete removes the object at path, failing with not-found when absent.
// A target whose raw form contained "." or ".." segments fails with
// invalid-argument instead of silently resolving, to avoid surprising
// deletions. Directory paths succeed as a no-op when nothing but a prefix
// backs them; an explicit marker object is removed.
func (fs *FileSystem) Delete(ctx context.Context, path Path) (err error) {
	defer fs.track("delete")(&err)
	return fs.delete(ctx, path)
}

// DeleteIfExists is Delete, except an absent target returns false instead
// of a not-found error. Repeated calls on an absent key keep returning
// false without error.
func (fs *FileSystem) DeleteIfExists(ctx context.Context, path Path) (deleted bool, err error) {
	defer fs.track("delete_if_exists")(&err)

	err = fs.delete(ctx, path)
	if bfserrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *FileSystem) delete(ctx context.Context, path Path) error {
	if path.HadDotSegments() && !path.SeemsLikeDirectory() {
		return bfserrors.New(bfserrors.ErrCodeInvalidArgument,
			"delete target contains dot segments").
			WithOp("delete").WithObject(path.Bucket(), path.Key())
	}

	if fs.isDirPath(path) {
		if path.IsRoot() {
			return bfserrors.New(bfserrors.ErrCodeInvalidArgument, "cannot delete the bucket root").
				WithOp("delete").WithObject(path.Bucket(), path.Key())
		}
		err := fs.backend.DeleteObject(ctx, path.Bucket(), path.MarkerKey())
		if bfserrors.IsNotFound(err) {
			// Prefix-derived directory, nothing stored to remove.
			return nil
		}
		return err
	}

	err := fs.backend.DeleteObject(ctx, path.Bucket(), path.ObjectKey(fs.cfg.Filesystem))
	if err == nil {
		fs.logger.Debug("object deleted", "bucket", path.Bucket(), "key", path.Key())
	}
	return err
}

// isDirPath reports whether path gets directory treatment: the root
// always, and directory-flagged paths when pseudo-directories are
// emulated. With emulation disabled a trailing-slash path is an ordinary
// object key.
func (fs *FileSystem) isDirPath(path Path) bool {
	if path.IsRoot() {
		return true
	}
	return fs.cfg.Filesystem.UsePseudoDirectories && path.SeemsLikeDirectory()
}

// track times an operation and records it against the collector. The
// returned func takes a pointer so deferred calls observe the named
// return error.
func (fs *FileSystem) track(op string) func(*error) {
	start := time.Now()
	return func(err *error) {
		fs.metrics.RecordOperation(op, time.Since(start), *err)
	}
}
