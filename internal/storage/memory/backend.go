// Package memory implements an in-memory object-store backend. It exists
// for tests: each test constructs a fresh instance and injects it into the
// filesystem under test, so no state is shared across tests.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// DefaultContentType is applied to objects written without an explicit
// content type, matching what a real store reports.
const DefaultContentType = "application/octet-stream"

type object struct {
	info types.StoredObject
	data []byte
}

// Backend is a threadsafe in-memory implementation of types.Backend.
// Buckets spring into existence on first write.
type Backend struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*object
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{buckets: make(map[string]map[string]*object)}
}

var _ types.Backend = (*Backend)(nil)

// GetObject returns a copy of the object's metadata.
func (b *Backend) GetObject(_ context.Context, bucket, key string) (*types.StoredObject, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, err := b.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := obj.info
	return &info, nil
}

// GetBytes reads part of the object's content. Reading at or past the end
// returns an empty slice.
func (b *Backend) GetBytes(_ context.Context, bucket, key string, rng types.ByteRange) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, err := b.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	size := int64(len(obj.data))
	if rng.Offset < 0 {
		return nil, bfserrors.Newf(bfserrors.ErrCodeInvalidArgument, "negative range offset %d", rng.Offset)
	}
	if rng.Offset >= size {
		return []byte{}, nil
	}
	end := size
	if rng.Length >= 0 && rng.Offset+rng.Length < size {
		end = rng.Offset + rng.Length
	}
	out := make([]byte, end-rng.Offset)
	copy(out, obj.data[rng.Offset:end])
	return out, nil
}

// PutObject atomically replaces the object's full content, honoring the
// precondition under the backend lock.
func (b *Backend) PutObject(_ context.Context, bucket, key string, data []byte, meta types.ObjectMetadata, pre types.Precondition) (*types.StoredObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	objects := b.buckets[bucket]
	if objects == nil {
		objects = make(map[string]*object)
		b.buckets[bucket] = objects
	}
	if pre == types.PreconditionDoesNotExist {
		if _, ok := objects[key]; ok {
			return nil, bfserrors.New(bfserrors.ErrCodePreconditionFailed, "target already exists").
				WithOp("put").WithObject(bucket, key)
		}
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	now := time.Now()
	obj := &object{
		info: types.StoredObject{
			Bucket:             bucket,
			Key:                key,
			Size:               int64(len(stored)),
			LastModified:       now,
			CreateTime:         now,
			ETag:               etagOf(stored),
			ContentType:        meta.ContentType,
			CacheControl:       meta.CacheControl,
			ContentEncoding:    meta.ContentEncoding,
			ContentDisposition: meta.ContentDisposition,
			UserMetadata:       copyMap(meta.UserMetadata),
			ACL:                append([]types.Grant(nil), meta.ACL...),
		},
		data: stored,
	}
	if obj.info.ContentType == "" {
		obj.info.ContentType = DefaultContentType
	}
	objects[key] = obj

	info := obj.info
	return &info, nil
}

// DeleteObject removes an object, failing with not-found when absent.
func (b *Backend) DeleteObject(_ context.Context, bucket, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.lookup(bucket, key); err != nil {
		return err
	}
	delete(b.buckets[bucket], key)
	return nil
}

// ListByPrefix returns the bucket's keys beginning with prefix in
// lexicographic order.
func (b *Backend) ListByPrefix(_ context.Context, bucket, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for key := range b.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// CopyObject copies one object to another, applying the metadata policy.
func (b *Backend) CopyObject(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string, policy types.CopyPolicy) (*types.StoredObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, err := b.lookup(srcBucket, srcKey)
	if err != nil {
		return nil, err
	}

	var meta types.ObjectMetadata
	if policy.Directive == types.MetadataCopy {
		meta = types.MetadataOf(&src.info)
	}
	meta = meta.Merge(policy.Override)

	objects := b.buckets[dstBucket]
	if objects == nil {
		objects = make(map[string]*object)
		b.buckets[dstBucket] = objects
	}

	stored := make([]byte, len(src.data))
	copy(stored, src.data)
	now := time.Now()
	dst := &object{
		info: types.StoredObject{
			Bucket:             dstBucket,
			Key:                dstKey,
			Size:               int64(len(stored)),
			LastModified:       now,
			CreateTime:         now,
			ETag:               etagOf(stored),
			ContentType:        meta.ContentType,
			CacheControl:       meta.CacheControl,
			ContentEncoding:    meta.ContentEncoding,
			ContentDisposition: meta.ContentDisposition,
			UserMetadata:       copyMap(meta.UserMetadata),
			ACL:                append([]types.Grant(nil), meta.ACL...),
		},
		data: stored,
	}
	if dst.info.ContentType == "" {
		dst.info.ContentType = DefaultContentType
	}
	objects[dstKey] = dst

	info := dst.info
	return &info, nil
}

// RenameObject atomically renames an object within one bucket: source and
// target transition in a single step under the backend lock.
func (b *Backend) RenameObject(_ context.Context, bucket, srcKey, dstKey string, pre types.Precondition) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, err := b.lookup(bucket, srcKey)
	if err != nil {
		return err
	}
	objects := b.buckets[bucket]
	if pre == types.PreconditionDoesNotExist {
		if _, ok := objects[dstKey]; ok {
			return bfserrors.New(bfserrors.ErrCodePreconditionFailed, "target already exists").
				WithOp("rename").WithObject(bucket, dstKey)
		}
	}

	moved := *src
	moved.info.Key = dstKey
	objects[dstKey] = &moved
	delete(objects, srcKey)
	return nil
}

// ObjectCount reports the number of objects in a bucket, for assertions.
func (b *Backend) ObjectCount(bucket string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buckets[bucket])
}

func (b *Backend) lookup(bucket, key string) (*object, error) {
	objects, ok := b.buckets[bucket]
	if !ok {
		return nil, bfserrors.New(bfserrors.ErrCodeNotFound, "no such bucket").
			WithObject(bucket, key)
	}
	obj, ok := objects[key]
	if !ok {
		return nil, bfserrors.New(bfserrors.ErrCodeNotFound, "no such object").
			WithObject(bucket, key)
	}
	return obj, nil
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
