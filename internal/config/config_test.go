package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	assert.True(t, cfg.Filesystem.UsePseudoDirectories)
	assert.False(t, cfg.Filesystem.PermitEmptyPathComponents)
	assert.True(t, cfg.Filesystem.StripPrefixSlash)
	assert.Equal(t, int64(8*1024*1024), cfg.Spool.MemoryThreshold)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	content := `
filesystem:
  use_pseudo_directories: false
  permit_empty_path_components: true
spool:
  memory_threshold: 1024
  directory: /var/spool/bucketfs
logging:
  level: DEBUG
metrics:
  enabled: false
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.False(t, cfg.Filesystem.UsePseudoDirectories)
	assert.True(t, cfg.Filesystem.PermitEmptyPathComponents)
	assert.Equal(t, int64(1024), cfg.Spool.MemoryThreshold)
	assert.Equal(t, "/var/spool/bucketfs", cfg.Spool.Directory)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, bfserrors.ErrCodeConfigLoad, bfserrors.CodeOf(err))
}

func TestLoadFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("filesystem: ["), 0o644))

	cfg := NewDefault()
	err := cfg.LoadFromFile(path)
	require.Error(t, err)
	assert.Equal(t, bfserrors.ErrCodeConfigLoad, bfserrors.CodeOf(err))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BUCKETFS_USE_PSEUDO_DIRECTORIES", "false")
	t.Setenv("BUCKETFS_PERMIT_EMPTY_PATH_COMPONENTS", "true")
	t.Setenv("BUCKETFS_SPOOL_MEMORY_THRESHOLD", "2048")
	t.Setenv("BUCKETFS_LOG_LEVEL", "WARN")

	cfg := NewDefault()
	cfg.LoadFromEnv()
	assert.False(t, cfg.Filesystem.UsePseudoDirectories)
	assert.True(t, cfg.Filesystem.PermitEmptyPathComponents)
	assert.Equal(t, int64(2048), cfg.Spool.MemoryThreshold)
	assert.Equal(t, "WARN", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	cfg := NewDefault()
	cfg.Spool.MemoryThreshold = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, bfserrors.ErrCodeInvalidConfig, bfserrors.CodeOf(err))

	cfg = NewDefault()
	cfg.Logging.Level = "LOUD"
	require.Error(t, cfg.Validate())

	cfg = NewDefault()
	cfg.Metrics.Namespace = ""
	require.Error(t, cfg.Validate())

	cfg = NewDefault()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Namespace = ""
	require.NoError(t, cfg.Validate())
}
