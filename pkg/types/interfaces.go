package types

import (
	"context"
)

// Backend is the object-store collaborator the filesystem emulation is
// built on. Implementations talk to a flat key-object store: no native
// directories, whole-object replace only, and an atomic rename that works
// inside a single bucket.
//
// Every method reports absent objects with an OBJECT_NOT_FOUND error and
// lost conditional writes with PRECONDITION_FAILED (pkg/errors codes), so
// the orchestrator can translate them into its documented contract. No
// method retries internally; retry policy belongs to the network client.
type Backend interface {
	// GetObject returns the metadata of an object without its content.
	GetObject(ctx context.Context, bucket, key string) (*StoredObject, error)

	// GetBytes reads part of an object's content. A negative rng.Length
	// reads from rng.Offset to the end. Reading at or past the object's
	// size returns an empty slice and no error.
	GetBytes(ctx context.Context, bucket, key string, rng ByteRange) ([]byte, error)

	// PutObject atomically replaces the full content of an object. With
	// PreconditionDoesNotExist the write fails with PRECONDITION_FAILED
	// if the key is already present, leaving the existing object intact.
	PutObject(ctx context.Context, bucket, key string, data []byte, meta ObjectMetadata, pre Precondition) (*StoredObject, error)

	// DeleteObject removes an object, failing with OBJECT_NOT_FOUND when
	// the key is absent.
	DeleteObject(ctx context.Context, bucket, key string) error

	// ListByPrefix returns the keys in bucket beginning with prefix, in
	// lexicographic order. Marker objects (keys ending in the delimiter)
	// are included.
	ListByPrefix(ctx context.Context, bucket, prefix string) ([]string, error)

	// CopyObject copies one object to another, possibly across buckets,
	// applying the metadata policy to the target. Copying is never atomic
	// with respect to the source.
	CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string, policy CopyPolicy) (*StoredObject, error)

	// RenameObject atomically renames an object within one bucket. The
	// precondition applies to the target key.
	RenameObject(ctx context.Context, bucket, srcKey, dstKey string, pre Precondition) error
}
