// Package attrs implements the layered attribute-view system: a closed set
// of named views dispatched by a "view:name1,name2" request string.
package attrs

import (
	"strings"
	"time"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// View names recognized by the dispatcher.
const (
	ViewBasic  = "basic"
	ViewPosix  = "posix"
	ViewObject = "object"
)

// Synthetic principals returned by the posix view. The store has no native
// ownership model.
const (
	FakeOwner = "fakeowner"
	FakeGroup = "fakegroup"
)

// PseudoDirSize is the sentinel size reported for pseudo-directories,
// which are not real stored entities.
const PseudoDirSize int64 = 1

// FileHead is the resolved state of a path an attribute read operates on.
// Object is nil for a purely prefix-derived pseudo-directory.
type FileHead struct {
	Object *types.StoredObject
	IsDir  bool
}

// View exposes the attributes one named view defines.
type View interface {
	// Name returns the view's registered name.
	Name() string
	// List returns every attribute name the view defines.
	List() []string
	// Get returns the value for an attribute, or false when the view
	// does not define it.
	Get(name string) (interface{}, bool)
}

// ReadAttributes resolves a request of the form "view:n1,n2,...",
// "n1,n2,..." (defaulting to the basic view), or "view:*". Attributes the
// selected view does not define are silently omitted.
func ReadAttributes(head FileHead, request string) (map[string]interface{}, error) {
	viewName := ViewBasic
	names := request
	if idx := strings.Index(request, ":"); idx >= 0 {
		viewName = request[:idx]
		names = request[idx+1:]
	}

	view, err := lookupView(viewName, head)
	if err != nil {
		return nil, err
	}

	result := make(map[string]interface{})
	if names == "*" || names == "" {
		for _, name := range view.List() {
			if v, ok := view.Get(name); ok {
				result[name] = v
			}
		}
		return result, nil
	}

	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v, ok := view.Get(name); ok {
			result[name] = v
		}
	}
	return result, nil
}

func lookupView(name string, head FileHead) (View, error) {
	switch name {
	case ViewBasic:
		return basicView{head}, nil
	case ViewPosix:
		return posixView{basicView{head}}, nil
	case ViewObject:
		return objectView{basicView{head}}, nil
	default:
		return nil, bfserrors.Newf(bfserrors.ErrCodeUnsupported, "unknown attribute view %q", name)
	}
}

// basicView exposes generic file metadata: timestamps, size, and type
// flags.
type basicView struct {
	head FileHead
}

func (v basicView) Name() string { return ViewBasic }

func (v basicView) List() []string {
	return []string{
		"creationTime", "lastModifiedTime", "lastAccessTime",
		"isRegularFile", "isDirectory", "isSymbolicLink", "isOther",
		"size",
	}
}

func (v basicView) Get(name string) (interface{}, bool) {
	switch name {
	case "creationTime":
		return v.createTime(), true
	case "lastModifiedTime":
		return v.modTime(), true
	case "lastAccessTime":
		// The store records no access times; last-modified stands in.
		return v.modTime(), true
	case "isRegularFile":
		return !v.head.IsDir, true
	case "isDirectory":
		return v.head.IsDir, true
	case "isSymbolicLink":
		return false, true
	case "isOther":
		return false, true
	case "size":
		return v.size(), true
	default:
		return nil, false
	}
}

func (v basicView) size() int64 {
	if v.head.IsDir || v.head.Object == nil {
		return PseudoDirSize
	}
	return v.head.Object.Size
}

func (v basicView) modTime() time.Time {
	if v.head.Object == nil {
		return time.Time{}
	}
	return v.head.Object.LastModified
}

func (v basicView) createTime() time.Time {
	if v.head.Object == nil {
		return time.Time{}
	}
	if !v.head.Object.CreateTime.IsZero() {
		return v.head.Object.CreateTime
	}
	return v.head.Object.LastModified
}

// posixView adds the permission-emulation attributes on top of the basic
// view. It answers only the two synthetic principals plus whatever the
// basic view defines.
type posixView struct {
	basic basicView
}

func (v posixView) Name() string { return ViewPosix }

func (v posixView) List() []string {
	return append(v.basic.List(), "owner", "group")
}

func (v posixView) Get(name string) (interface{}, bool) {
	switch name {
	case "owner":
		return FakeOwner, true
	case "group":
		return FakeGroup, true
	default:
		return v.basic.Get(name)
	}
}

// objectView adds the store-specific attributes on top of the basic view.
type objectView struct {
	basic basicView
}

func (v objectView) Name() string { return ViewObject }

func (v objectView) List() []string {
	return append(v.basic.List(),
		"etag", "contentType", "acl", "cacheControl",
		"contentEncoding", "contentDisposition", "userMetadata")
}

func (v objectView) Get(name string) (interface{}, bool) {
	obj := v.basic.head.Object
	switch name {
	case "etag":
		return stringOrEmpty(obj, func(o *types.StoredObject) string { return o.ETag }), true
	case "contentType":
		return stringOrEmpty(obj, func(o *types.StoredObject) string { return o.ContentType }), true
	case "cacheControl":
		return stringOrEmpty(obj, func(o *types.StoredObject) string { return o.CacheControl }), true
	case "contentEncoding":
		return stringOrEmpty(obj, func(o *types.StoredObject) string { return o.ContentEncoding }), true
	case "contentDisposition":
		return stringOrEmpty(obj, func(o *types.StoredObject) string { return o.ContentDisposition }), true
	case "acl":
		if obj == nil {
			return []types.Grant(nil), true
		}
		return obj.ACL, true
	case "userMetadata":
		if obj == nil || obj.UserMetadata == nil {
			return map[string]string{}, true
		}
		return obj.UserMetadata, true
	default:
		return v.basic.Get(name)
	}
}

func stringOrEmpty(obj *types.StoredObject, get func(*types.StoredObject) string) string {
	if obj == nil {
		return ""
	}
	return get(obj)
}
