package types

import (
	"time"
)

// StoredObject is the backend-resident metadata the filesystem layer
// depends on. The core never persists anything beyond these objects.
type StoredObject struct {
	Bucket       string            `json:"bucket"`
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	CreateTime   time.Time         `json:"create_time"`
	ETag         string            `json:"etag,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
	CacheControl string            `json:"cache_control,omitempty"`
	// ContentEncoding and ContentDisposition mirror the store's optional
	// response headers; empty means unset.
	ContentEncoding    string            `json:"content_encoding,omitempty"`
	ContentDisposition string            `json:"content_disposition,omitempty"`
	UserMetadata       map[string]string `json:"user_metadata,omitempty"`
	ACL                []Grant           `json:"acl,omitempty"`
}

// Grant is one access-control entry on a stored object.
type Grant struct {
	Entity string `json:"entity"`
	Role   string `json:"role"`
}

// ObjectMetadata carries the store-specific attributes attached to an
// object at write or copy time.
type ObjectMetadata struct {
	ContentType        string
	CacheControl       string
	ContentEncoding    string
	ContentDisposition string
	UserMetadata       map[string]string
	ACL                []Grant
}

// Merge returns m with every non-zero field of override applied on top.
// Used by attribute-preserving copies that override individual fields.
func (m ObjectMetadata) Merge(override ObjectMetadata) ObjectMetadata {
	out := m
	if override.ContentType != "" {
		out.ContentType = override.ContentType
	}
	if override.CacheControl != "" {
		out.CacheControl = override.CacheControl
	}
	if override.ContentEncoding != "" {
		out.ContentEncoding = override.ContentEncoding
	}
	if override.ContentDisposition != "" {
		out.ContentDisposition = override.ContentDisposition
	}
	if override.UserMetadata != nil {
		out.UserMetadata = override.UserMetadata
	}
	if override.ACL != nil {
		out.ACL = override.ACL
	}
	return out
}

// MetadataOf extracts the writable metadata fields from a stored object.
func MetadataOf(obj *StoredObject) ObjectMetadata {
	return ObjectMetadata{
		ContentType:        obj.ContentType,
		CacheControl:       obj.CacheControl,
		ContentEncoding:    obj.ContentEncoding,
		ContentDisposition: obj.ContentDisposition,
		UserMetadata:       obj.UserMetadata,
		ACL:                obj.ACL,
	}
}

// Precondition states a condition a write or rename must hold at commit
// time. The backend's conditional-write guarantee makes commits atomic.
type Precondition int

const (
	// PreconditionNone commits unconditionally (last writer wins).
	PreconditionNone Precondition = iota
	// PreconditionDoesNotExist commits only if the target is absent.
	PreconditionDoesNotExist
)

// ByteRange addresses part of an object's content. Length < 0 reads to the
// end of the object.
type ByteRange struct {
	Offset int64
	Length int64
}

// MetadataDirective tells a copy what to do with the source's
// store-specific metadata.
type MetadataDirective int

const (
	// MetadataReplace gives the target fresh default metadata.
	MetadataReplace MetadataDirective = iota
	// MetadataCopy propagates the source's metadata to the target.
	MetadataCopy
)

// CopyPolicy governs metadata handling during a backend copy.
type CopyPolicy struct {
	Directive MetadataDirective
	// Override fields are applied on top of whatever the directive
	// produced; zero fields leave the directive's result untouched.
	Override ObjectMetadata
}
