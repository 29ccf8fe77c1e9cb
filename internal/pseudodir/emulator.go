// Package pseudodir derives directory existence and listings from the set
// of stored keys sharing a prefix. Directories are never first-class
// stored entities; at most they are zero-length marker objects.
package pseudodir

import (
	"context"
	"sort"
	"strings"

	"github.com/bucketfs/bucketfs/internal/config"
	"github.com/bucketfs/bucketfs/internal/objpath"
	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// Emulator answers directory questions for one filesystem instance. It
// holds no state of its own; every call re-issues enumeration against the
// current backend contents.
type Emulator struct {
	backend types.Backend
	cfg     config.FilesystemConfig
}

// New creates a directory emulator over the given backend.
func New(backend types.Backend, cfg config.FilesystemConfig) *Emulator {
	return &Emulator{backend: backend, cfg: cfg}
}

// IsDirectory reports whether path resolves as a directory. The root is
// always a directory. With pseudo-directories enabled, a path is a
// directory when its raw form was directory-like or when at least one
// stored key extends it past the delimiter. With them disabled, only an
// explicitly written marker object counts.
func (e *Emulator) IsDirectory(ctx context.Context, path objpath.FilePath) (bool, error) {
	if path.IsRoot() {
		return true, nil
	}

	if !e.cfg.UsePseudoDirectories {
		_, err := e.backend.GetObject(ctx, path.Bucket(), path.MarkerKey())
		if err != nil {
			if bfserrors.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	if path.SeemsLikeDirectory() {
		return true, nil
	}
	return e.hasDescendants(ctx, path)
}

// Exists reports whether a directory-like path exists. With
// pseudo-directories enabled every such path exists by definition; with
// them disabled existence requires the marker object.
func (e *Emulator) Exists(ctx context.Context, path objpath.FilePath) (bool, error) {
	if path.IsRoot() {
		return true, nil
	}
	if e.cfg.UsePseudoDirectories {
		return true, nil
	}
	return e.IsDirectory(ctx, path)
}

// List enumerates the immediate children of a directory path: exactly one
// entry per distinct next segment, in lexicographic order. Subdirectory
// entries carry a trailing delimiter. Each call restarts enumeration; no
// cursor survives across calls.
func (e *Emulator) List(ctx context.Context, dir objpath.FilePath) ([]objpath.FilePath, error) {
	prefix := listPrefix(dir)
	keys, err := e.backend.ListByPrefix(ctx, dir.Bucket(), prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		if rest == "" {
			// The directory's own marker object.
			continue
		}
		name := rest
		if idx := strings.Index(rest, objpath.Delimiter); idx >= 0 {
			name = rest[:idx+1]
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)

	children := make([]objpath.FilePath, len(names))
	for i, name := range names {
		children[i] = dir.Child(name)
	}
	return children, nil
}

func (e *Emulator) hasDescendants(ctx context.Context, path objpath.FilePath) (bool, error) {
	keys, err := e.backend.ListByPrefix(ctx, path.Bucket(), path.MarkerKey())
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

func listPrefix(dir objpath.FilePath) string {
	if dir.IsRoot() {
		return ""
	}
	return dir.MarkerKey()
}
