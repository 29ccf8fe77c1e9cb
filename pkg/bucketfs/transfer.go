package bucketfs

import (
	"context"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// TransferOption customizes Copy and Move.
type TransferOption func(*transferSettings)

type transferSettings struct {
	replaceExisting bool
	copyAttributes  bool
	atomic          bool
	override        types.ObjectMetadata
}

// ReplaceExisting allows the transfer to overwrite an existing target.
// Without it, a present target fails with already-exists.
func ReplaceExisting() TransferOption {
	return func(s *transferSettings) { s.replaceExisting = true }
}

// CopyAttributes propagates the source's store-specific metadata to the
// target. Without it the target gets default, fresh metadata.
func CopyAttributes() TransferOption {
	return func(s *transferSettings) { s.copyAttributes = true }
}

// AtomicMove requires the transfer to be a single atomic transition. Only
// a same-bucket Move can honor it; Copy and cross-bucket Move reject it
// as unsupported.
func AtomicMove() TransferOption {
	return func(s *transferSettings) { s.atomic = true }
}

// OverrideMetadata sets explicit metadata fields on the target. Alongside
// CopyAttributes, only the non-zero fields override the propagated
// values; the rest are preserved from the source.
func OverrideMetadata(meta types.ObjectMetadata) TransferOption {
	return func(s *transferSettings) { s.override = meta }
}

// Copy copies the object at src to dst. A directory-to-directory copy is
// a no-op; a copy between a directory and an object fails with a
// pseudo-directory condition. Copy can never be atomic with respect to
// the source, so AtomicMove is rejected.
func (fs *FileSystem) Copy(ctx context.Context, src, dst Path, opts ...TransferOption) (err error) {
	defer fs.track("copy")(&err)

	var settings transferSettings
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.atomic {
		return bfserrors.New(bfserrors.ErrCodeUnsupported, "copy cannot be atomic").
			WithOp("copy").WithObject(src.Bucket(), src.Key())
	}
	return fs.transfer(ctx, "copy", src, dst, settings, false)
}

// Move moves the object at src to dst. A same-bucket move is one atomic
// backend rename; a cross-bucket move is copy-then-delete and therefore
// fails when atomic semantics are requested, leaving both sides in their
// pre-call state.
func (fs *FileSystem) Move(ctx context.Context, src, dst Path, opts ...TransferOption) (err error) {
	defer fs.track("move")(&err)

	var settings transferSettings
	for _, opt := range opts {
		opt(&settings)
	}

	srcDir, dstDir := fs.isDirPath(src), fs.isDirPath(dst)
	if srcDir && dstDir {
		return nil
	}
	if srcDir != dstDir {
		return errPseudoDir("move", dirOf(src, dst, srcDir))
	}

	if src.Bucket() == dst.Bucket() {
		pre := types.PreconditionNone
		if !settings.replaceExisting {
			pre = types.PreconditionDoesNotExist
		}
		err := fs.backend.RenameObject(ctx, src.Bucket(),
			src.ObjectKey(fs.cfg.Filesystem), dst.ObjectKey(fs.cfg.Filesystem), pre)
		if bfserrors.IsPreconditionFailed(err) && !settings.replaceExisting {
			return bfserrors.New(bfserrors.ErrCodeAlreadyExists, "target already exists").
				WithOp("move").WithObject(dst.Bucket(), dst.Key())
		}
		if err == nil {
			fs.logger.Debug("object renamed",
				"bucket", src.Bucket(), "from", src.Key(), "to", dst.Key())
		}
		return err
	}

	if settings.atomic {
		return bfserrors.New(bfserrors.ErrCodeUnsupported, "cross-bucket move cannot be atomic").
			WithOp("move").WithObject(src.Bucket(), src.Key())
	}

	// A move always carries the object's metadata with it.
	settings.copyAttributes = true
	if err := fs.transfer(ctx, "move", src, dst, settings, true); err != nil {
		return err
	}
	return fs.backend.DeleteObject(ctx, src.Bucket(), src.ObjectKey(fs.cfg.Filesystem))
}

func (fs *FileSystem) transfer(ctx context.Context, op string, src, dst Path, settings transferSettings, skipDirCheck bool) error {
	if !skipDirCheck {
		srcDir, dstDir := fs.isDirPath(src), fs.isDirPath(dst)
		if srcDir && dstDir {
			return nil
		}
		if srcDir != dstDir {
			return errPseudoDir(op, dirOf(src, dst, srcDir))
		}
	}

	srcKey := src.ObjectKey(fs.cfg.Filesystem)
	dstKey := dst.ObjectKey(fs.cfg.Filesystem)

	if !settings.replaceExisting {
		if _, err := fs.backend.GetObject(ctx, dst.Bucket(), dstKey); err == nil {
			return bfserrors.New(bfserrors.ErrCodeAlreadyExists, "target already exists").
				WithOp(op).WithObject(dst.Bucket(), dst.Key())
		} else if !bfserrors.IsNotFound(err) {
			return err
		}
	}

	policy := types.CopyPolicy{Directive: types.MetadataReplace, Override: settings.override}
	if settings.copyAttributes {
		policy.Directive = types.MetadataCopy
	}
	_, err := fs.backend.CopyObject(ctx, src.Bucket(), srcKey, dst.Bucket(), dstKey, policy)
	return err
}

func dirOf(src, dst Path, srcIsDir bool) Path {
	if srcIsDir {
		return src
	}
	return dst
}
