package bucketfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketfs/bucketfs/internal/attrs"
	"github.com/bucketfs/bucketfs/internal/config"
	"github.com/bucketfs/bucketfs/internal/storage/memory"
	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

func newTestFS(t *testing.T, opts ...Option) (*FileSystem, *memory.Backend) {
	t.Helper()
	backend := memory.New()
	fs, err := New(backend, opts...)
	require.NoError(t, err)
	return fs, backend
}

func mustPath(t *testing.T, fs *FileSystem, raw string) Path {
	t.Helper()
	p, err := fs.GetPath("bucket", raw)
	require.NoError(t, err)
	return p
}

func put(t *testing.T, backend *memory.Backend, key string, data []byte, meta types.ObjectMetadata) {
	t.Helper()
	_, err := backend.PutObject(context.Background(), "bucket", key, data, meta, types.PreconditionNone)
	require.NoError(t, err)
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, bfserrors.IsInvalidArgument(err))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Logging.Level = "LOUD"
	_, err := New(memory.New(), WithConfig(cfg))
	require.Error(t, err)
}

func TestParsePath(t *testing.T) {
	fs, _ := newTestFS(t)

	p, err := fs.ParsePath("bfs://bucket/dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "bucket", p.Bucket())
	assert.Equal(t, "dir/file.txt", p.Key())

	// Percent-escapes decode into the key.
	p, err = fs.ParsePath("bfs://bucket/dir/with%20spaces.txt")
	require.NoError(t, err)
	assert.Equal(t, "dir/with spaces.txt", p.Key())
}

func TestParsePathRejectsMissingAuthority(t *testing.T) {
	fs, _ := newTestFS(t)
	for _, uri := range []string{"bfs:///key", "bfs:dir/file", "bfs://"} {
		_, err := fs.ParsePath(uri)
		require.Error(t, err, "uri %q", uri)
		assert.True(t, bfserrors.IsInvalidArgument(err), "uri %q", uri)
	}
}

func TestParsePathRejectsWrongScheme(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.ParsePath("http://bucket/key")
	require.Error(t, err)
	assert.True(t, bfserrors.IsInvalidArgument(err))
}

func TestGetPathAcceptsUnescapedCharacters(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()

	p := mustPath(t, fs, "dir/with spaces.txt")
	require.NoError(t, fs.WriteFile(ctx, p, []byte("x")))
	assert.Equal(t, 1, backend.ObjectCount("bucket"))

	data, err := fs.ReadFile(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestExists(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "dir/file", []byte("x"), types.ObjectMetadata{})

	tests := []struct {
		raw  string
		want bool
	}{
		{"dir/file", true},
		{"dir", true},       // prefix-derived directory
		{"dir/", true},      // directory-flagged, always exists under emulation
		{"missing", false},
		{"missing/", true},  // still a pseudo-directory by flag
		{"/", true},
	}
	for _, tt := range tests {
		got, err := fs.Exists(ctx, mustPath(t, fs, tt.raw))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "exists(%q)", tt.raw)
	}
}

func TestExistsWithoutPseudoDirectories(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Filesystem.UsePseudoDirectories = false
	backend := memory.New()
	fs, err := New(backend, WithConfig(cfg))
	require.NoError(t, err)
	ctx := context.Background()
	put(t, backend, "marked/", nil, types.ObjectMetadata{})
	put(t, backend, "dir/file", []byte("x"), types.ObjectMetadata{})

	got, err := fs.Exists(ctx, mustPath(t, fs, "marked/"))
	require.NoError(t, err)
	assert.True(t, got)

	// Bare trailing-slash query on an unwritten key reports non-existent.
	got, err = fs.Exists(ctx, mustPath(t, fs, "dir/"))
	require.NoError(t, err)
	assert.False(t, got)

	// The marker and the bare key are distinct objects; the marker's
	// presence does not make the bare key exist or stat.
	got, err = fs.Exists(ctx, mustPath(t, fs, "marked"))
	require.NoError(t, err)
	assert.False(t, got)

	_, err = fs.Stat(ctx, mustPath(t, fs, "marked"))
	assert.True(t, bfserrors.IsNotFound(err))
}

func TestStatObject(t *testing.T) {
	fs, backend := newTestFS(t)
	put(t, backend, "dir/file", []byte("hello"), types.ObjectMetadata{ContentType: "text/plain"})

	info, err := fs.Stat(context.Background(), mustPath(t, fs, "dir/file"))
	require.NoError(t, err)
	assert.False(t, info.IsDir)
	require.NotNil(t, info.Object)
	assert.Equal(t, int64(5), info.Object.Size)
	assert.Equal(t, "text/plain", info.Object.ContentType)
}

func TestStatDirectory(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "dir/file", []byte("x"), types.ObjectMetadata{})

	info, err := fs.Stat(ctx, mustPath(t, fs, "dir"))
	require.NoError(t, err)
	assert.True(t, info.IsDir)
	assert.Nil(t, info.Object)

	info, err = fs.Stat(ctx, mustPath(t, fs, "/"))
	require.NoError(t, err)
	assert.True(t, info.IsDir)
}

func TestStatDirectoryWithoutEmulation(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Filesystem.UsePseudoDirectories = false
	backend := memory.New()
	fs, err := New(backend, WithConfig(cfg))
	require.NoError(t, err)
	ctx := context.Background()
	put(t, backend, "marked/", nil, types.ObjectMetadata{})

	info, err := fs.Stat(ctx, mustPath(t, fs, "marked/"))
	require.NoError(t, err)
	assert.True(t, info.IsDir)
	require.NotNil(t, info.Object)

	_, err = fs.Stat(ctx, mustPath(t, fs, "unwritten/"))
	assert.True(t, bfserrors.IsNotFound(err))
}

func TestStatNotFound(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.Stat(context.Background(), mustPath(t, fs, "missing"))
	assert.True(t, bfserrors.IsNotFound(err))
}

func TestIsDirectoryInference(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "dir/a", []byte("x"), types.ObjectMetadata{})
	put(t, backend, "dir/b/c", []byte("x"), types.ObjectMetadata{})

	for raw, want := range map[string]bool{
		"dir":   true,
		"dir/":  true,
		"dir/b": true,
		"dir/a": false,
		"di":    false,
	} {
		got, err := fs.IsDirectory(ctx, mustPath(t, fs, raw))
		require.NoError(t, err)
		assert.Equal(t, want, got, "isDirectory(%q)", raw)
	}
}

func TestDotPathsSeemLikeDirectories(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	for _, raw := range []string{"dir/deeper/.", "dir/deeper/..", "dir/"} {
		p := mustPath(t, fs, raw)
		isDir, err := fs.IsDirectory(ctx, p)
		require.NoError(t, err)
		assert.True(t, isDir, "isDirectory(%q)", raw)

		exists, err := fs.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, exists, "exists(%q)", raw)
	}
}

func TestReadAttributes(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "file", []byte("hello"), types.ObjectMetadata{
		ContentType:  "text/plain",
		CacheControl: "public",
	})

	got, err := fs.ReadAttributes(ctx, mustPath(t, fs, "file"), "basic:*")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got["size"])
	assert.Equal(t, false, got["isDirectory"])

	got, err = fs.ReadAttributes(ctx, mustPath(t, fs, "file"), "object:contentType,cacheControl,etag")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", got["contentType"])
	assert.Equal(t, "public", got["cacheControl"])
	assert.NotEmpty(t, got["etag"])

	got, err = fs.ReadAttributes(ctx, mustPath(t, fs, "file"), "posix:owner,group")
	require.NoError(t, err)
	assert.Equal(t, attrs.FakeOwner, got["owner"])
	assert.Equal(t, attrs.FakeGroup, got["group"])
}

func TestReadAttributesPseudoDirectorySentinel(t *testing.T) {
	fs, backend := newTestFS(t)
	put(t, backend, "dir/file", []byte("x"), types.ObjectMetadata{})

	got, err := fs.ReadAttributes(context.Background(), mustPath(t, fs, "dir/"), "basic:size,isDirectory")
	require.NoError(t, err)
	assert.Equal(t, attrs.PseudoDirSize, got["size"])
	assert.Equal(t, true, got["isDirectory"])
}

func TestList(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "dir/deeper/fish", []byte("x"), types.ObjectMetadata{})
	put(t, backend, "dir/deeper/other", []byte("x"), types.ObjectMetadata{})
	put(t, backend, "dir/file", []byte("x"), types.ObjectMetadata{})

	children, err := fs.List(ctx, mustPath(t, fs, "dir/"))
	require.NoError(t, err)
	keys := make([]string, len(children))
	for i, c := range children {
		keys[i] = c.Key()
	}
	assert.Equal(t, []string{"dir/deeper", "dir/file"}, keys)
	assert.True(t, children[0].SeemsLikeDirectory())
	assert.False(t, children[1].SeemsLikeDirectory())
}

func TestListNotADirectory(t *testing.T) {
	fs, backend := newTestFS(t)
	put(t, backend, "file", []byte("x"), types.ObjectMetadata{})

	_, err := fs.List(context.Background(), mustPath(t, fs, "file"))
	require.Error(t, err)
	assert.True(t, bfserrors.IsInvalidArgument(err))
}

func TestDelete(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "file", []byte("x"), types.ObjectMetadata{})

	require.NoError(t, fs.Delete(ctx, mustPath(t, fs, "file")))
	err := fs.Delete(ctx, mustPath(t, fs, "file"))
	assert.True(t, bfserrors.IsNotFound(err))
}

func TestDeleteIfExistsIdempotent(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "file", []byte("x"), types.ObjectMetadata{})

	deleted, err := fs.DeleteIfExists(ctx, mustPath(t, fs, "file"))
	require.NoError(t, err)
	assert.True(t, deleted)

	for i := 0; i < 3; i++ {
		deleted, err = fs.DeleteIfExists(ctx, mustPath(t, fs, "file"))
		require.NoError(t, err)
		assert.False(t, deleted)
	}
}

func TestDeleteRejectsDotSegments(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "a/b", []byte("x"), types.ObjectMetadata{})

	err := fs.Delete(ctx, mustPath(t, fs, "a/x/../b"))
	require.Error(t, err)
	assert.True(t, bfserrors.IsInvalidArgument(err))

	// The object is untouched.
	exists, err := fs.Exists(ctx, mustPath(t, fs, "a/b"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteDirectoryNoOpWithoutMarker(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "dir/file", []byte("x"), types.ObjectMetadata{})

	// Nothing stored for the directory itself; delete succeeds as a no-op.
	require.NoError(t, fs.Delete(ctx, mustPath(t, fs, "dir/")))
	assert.Equal(t, 1, backend.ObjectCount("bucket"))
}

func TestDeleteDirectoryRemovesMarker(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()
	put(t, backend, "dir/", nil, types.ObjectMetadata{})

	require.NoError(t, fs.Delete(ctx, mustPath(t, fs, "dir/")))
	assert.Equal(t, 0, backend.ObjectCount("bucket"))
}

func TestDeleteRootRejected(t *testing.T) {
	fs, _ := newTestFS(t)
	err := fs.Delete(context.Background(), mustPath(t, fs, "/"))
	require.Error(t, err)
	assert.True(t, bfserrors.IsInvalidArgument(err))
}

func TestCreateDirectory(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()

	// Under emulation every directory already exists.
	require.NoError(t, fs.CreateDirectory(ctx, mustPath(t, fs, "dir/")))
	assert.Equal(t, 0, backend.ObjectCount("bucket"))
}

func TestCreateDirectoryWithoutEmulation(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Filesystem.UsePseudoDirectories = false
	backend := memory.New()
	fs, err := New(backend, WithConfig(cfg))
	require.NoError(t, err)
	ctx := context.Background()

	dir := mustPath(t, fs, "dir/")
	require.NoError(t, fs.CreateDirectory(ctx, dir))

	obj, err := backend.GetObject(ctx, "bucket", "dir/")
	require.NoError(t, err)
	assert.Equal(t, int64(0), obj.Size)

	err = fs.CreateDirectory(ctx, dir)
	require.Error(t, err)
	assert.True(t, bfserrors.IsAlreadyExists(err))
}

func TestMetricsCollectorWired(t *testing.T) {
	fs, _ := newTestFS(t)
	require.NotNil(t, fs.Metrics())
	_, err := fs.Exists(context.Background(), mustPath(t, fs, "x"))
	require.NoError(t, err)
	assert.NotNil(t, fs.Metrics().Handler())
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Metrics.Enabled = false
	fs, err := New(memory.New(), WithConfig(cfg))
	require.NoError(t, err)
	assert.Nil(t, fs.Metrics())

	// Operations still work with no collector installed.
	exists, err := fs.Exists(context.Background(), mustPath(t, fs, "x"))
	require.NoError(t, err)
	assert.False(t, exists)
}
