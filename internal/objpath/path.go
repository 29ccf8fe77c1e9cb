// Package objpath implements the path model: parsing, normalization, and
// comparison of bucket-plus-key paths over a flat object store.
package objpath

import (
	"net/url"
	"strings"

	"github.com/bucketfs/bucketfs/internal/config"
	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
)

// Scheme is the URI scheme for bucketfs references.
const Scheme = "bfs"

// Delimiter separates key segments. Objects share a flat key space; the
// delimiter only carries meaning in this emulation layer.
const Delimiter = "/"

// FilePath is an immutable (bucket, normalized key) pair plus flags derived
// from the raw input. Two FilePaths are equal iff bucket and normalized key
// are equal; the directory flag does not affect equality.
type FilePath struct {
	bucket   string
	key      string
	seemsDir bool
	hadDots  bool
}

// New parses and normalizes raw into a FilePath inside bucket.
func New(bucket, raw string, cfg config.FilesystemConfig) (FilePath, error) {
	if bucket == "" {
		return FilePath{}, bfserrors.New(bfserrors.ErrCodeInvalidArgument, "bucket name cannot be empty")
	}
	key, seemsDir, hadDots, err := Normalize(raw, cfg)
	if err != nil {
		return FilePath{}, err
	}
	return FilePath{bucket: bucket, key: key, seemsDir: seemsDir, hadDots: hadDots}, nil
}

// Normalize canonicalizes a raw key: strips a single leading delimiter when
// configured, resolves "." and ".." segments (clamping ".." at the root),
// and rejects empty segments unless permitted. The trailing-delimiter flag
// is reported separately instead of being folded into the key, so callers
// can decide directory semantics without re-parsing.
func Normalize(raw string, cfg config.FilesystemConfig) (key string, seemsDir bool, hadDots bool, err error) {
	work := raw
	absolute := false
	if strings.HasPrefix(work, Delimiter) {
		if cfg.StripPrefixSlash {
			work = work[1:]
		} else {
			absolute = true
			work = work[1:]
		}
	}

	if work == "" {
		// Root of the bucket, always a directory.
		if absolute {
			return Delimiter, true, false, nil
		}
		return "", true, false, nil
	}

	trailingSlash := strings.HasSuffix(work, Delimiter)
	segs := strings.Split(work, Delimiter)

	out := make([]string, 0, len(segs))
	for i, seg := range segs {
		switch seg {
		case "":
			if i == len(segs)-1 {
				// Produced by the trailing delimiter, already flagged.
				continue
			}
			if !cfg.PermitEmptyPathComponents {
				return "", false, false, bfserrors.Newf(bfserrors.ErrCodeInvalidArgument,
					"key %q contains empty path components", raw)
			}
			out = append(out, seg)
		case ".":
			hadDots = true
		case "..":
			hadDots = true
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			// Resolving past the root is clamped at the root.
		default:
			out = append(out, seg)
		}
	}

	key = strings.Join(out, Delimiter)
	if absolute {
		key = Delimiter + key
	}

	// A raw form ending in the delimiter, ".", or ".." denotes a
	// directory, as does anything that resolved to the root.
	last := segs[len(segs)-1]
	seemsDir = trailingSlash || last == "." || last == ".." || len(out) == 0

	return key, seemsDir, hadDots, nil
}

// Bucket returns the bucket (namespace) component.
func (p FilePath) Bucket() string { return p.bucket }

// Key returns the normalized object key without any trailing delimiter.
func (p FilePath) Key() string { return p.key }

// IsRoot reports whether the path denotes the bucket root.
func (p FilePath) IsRoot() bool { return p.key == "" || p.key == Delimiter }

// SeemsLikeDirectory reports whether the raw input marked the path as a
// directory: a trailing delimiter, a final "." or ".." segment, or the
// bucket root.
func (p FilePath) SeemsLikeDirectory() bool { return p.seemsDir || p.IsRoot() }

// HadDotSegments reports whether the raw input contained "." or ".."
// segments before normalization. Deletion rejects such paths to avoid
// surprising removals.
func (p FilePath) HadDotSegments() bool { return p.hadDots }

// ObjectKey returns the key used for byte-level backend operations. When
// pseudo-directories are disabled, a directory-flagged path addresses an
// ordinary object whose key keeps the trailing delimiter.
func (p FilePath) ObjectKey(cfg config.FilesystemConfig) string {
	if p.seemsDir && !p.IsRoot() && !cfg.UsePseudoDirectories {
		return p.key + Delimiter
	}
	return p.key
}

// MarkerKey returns the zero-length marker object key for this path when
// it is treated as an explicit pseudo-directory.
func (p FilePath) MarkerKey() string {
	if p.IsRoot() {
		return ""
	}
	return strings.TrimSuffix(p.key, Delimiter) + Delimiter
}

// Equal reports whether two paths address the same object: same bucket and
// same normalized key.
func (p FilePath) Equal(q FilePath) bool {
	return p.bucket == q.bucket && p.key == q.key
}

// Less orders paths lexicographically by bucket then key, so prefix-based
// enumeration groups descendants of the same directory contiguously.
func (p FilePath) Less(q FilePath) bool {
	if p.bucket != q.bucket {
		return p.bucket < q.bucket
	}
	return p.key < q.key
}

// String renders the path in scheme://bucket/key form without escaping.
func (p FilePath) String() string {
	s := Scheme + "://" + p.bucket + Delimiter + strings.TrimPrefix(p.key, Delimiter)
	if p.seemsDir && !p.IsRoot() && !strings.HasSuffix(s, Delimiter) {
		s += Delimiter
	}
	return s
}

// URI renders the path as a valid URI, percent-escaping characters such as
// spaces that are illegal in URIs.
func (p FilePath) URI() string {
	u := url.URL{
		Scheme: Scheme,
		Host:   p.bucket,
		Path:   Delimiter + strings.TrimPrefix(p.key, Delimiter),
	}
	s := u.String()
	if p.seemsDir && !p.IsRoot() && !strings.HasSuffix(s, Delimiter) {
		s += Delimiter
	}
	return s
}

// Child returns the FilePath for a direct child entry produced by a
// listing. name may carry a trailing delimiter for subdirectory entries.
func (p FilePath) Child(name string) FilePath {
	base := p.key
	if base != "" && !strings.HasSuffix(base, Delimiter) {
		base += Delimiter
	}
	trimmed := strings.TrimSuffix(name, Delimiter)
	return FilePath{
		bucket:   p.bucket,
		key:      base + trimmed,
		seemsDir: strings.HasSuffix(name, Delimiter),
	}
}

// FromKey builds a FilePath from an already-normalized backend key, as
// returned by listings. A trailing delimiter marks a directory entry.
func FromKey(bucket, key string) FilePath {
	seemsDir := strings.HasSuffix(key, Delimiter)
	return FilePath{
		bucket:   bucket,
		key:      strings.TrimSuffix(key, Delimiter),
		seemsDir: seemsDir,
	}
}
