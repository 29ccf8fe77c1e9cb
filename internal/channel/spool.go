package channel

import (
	"bytes"
	"io"

	"github.com/spf13/afero"
)

// spool accumulates a write session's bytes in memory up to a threshold,
// then spills to a temporary file so very large sessions do not pin the
// whole payload in memory.
type spool struct {
	fs        afero.Fs
	dir       string
	threshold int64

	mem  bytes.Buffer
	file afero.File
	size int64
}

func newSpool(fs afero.Fs, dir string, threshold int64) *spool {
	return &spool{fs: fs, dir: dir, threshold: threshold}
}

func (s *spool) Write(p []byte) (int, error) {
	if s.file == nil && s.size+int64(len(p)) > s.threshold {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}
	var n int
	var err error
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.mem.Write(p)
	}
	s.size += int64(n)
	return n, err
}

func (s *spool) spill() error {
	f, err := afero.TempFile(s.fs, s.dir, "bucketfs-spool-")
	if err != nil {
		return err
	}
	if _, err := f.Write(s.mem.Bytes()); err != nil {
		name := f.Name()
		_ = f.Close()
		_ = s.fs.Remove(name)
		return err
	}
	s.mem.Reset()
	s.file = f
	return nil
}

// Len returns the number of bytes written so far.
func (s *spool) Len() int64 {
	return s.size
}

// Bytes materializes the full accumulated content for the commit.
func (s *spool) Bytes() ([]byte, error) {
	if s.file == nil {
		return s.mem.Bytes(), nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(s.file)
}

// Close releases the spool's resources, deleting any temporary file.
func (s *spool) Close() error {
	s.mem.Reset()
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	if rmErr := s.fs.Remove(name); err == nil {
		err = rmErr
	}
	s.file = nil
	return err
}
