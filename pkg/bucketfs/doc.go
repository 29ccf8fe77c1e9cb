// Package bucketfs exposes a hierarchical, POSIX-like file API over a flat
// key-object store. Directories are emulated from key prefixes and
// optional zero-length marker objects; reads are seekable positioned
// channels; writes buffer client-side and commit the whole object
// atomically at close, so no observer ever sees a half-written object.
//
// A FileSystem is constructed over an injected Backend (see pkg/types)
// and is safe for concurrent use. Configuration is immutable after
// construction.
//
//	fs, err := bucketfs.New(backend)
//	p, _ := fs.GetPath("bucket", "dir/file.txt")
//	err = fs.WriteFile(ctx, p, data, bucketfs.WithContentType("text/plain"))
package bucketfs
