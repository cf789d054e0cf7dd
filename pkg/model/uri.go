package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ID is a 16-bit identifier at any level of the tree.
type ID uint16

// IDAll is the wildcard/unset sentinel valid at every level.
const IDAll ID = 0xFFFF

// IsSet reports whether id holds a concrete value.
func (id ID) IsSet() bool { return id != IDAll }

// ServerID is the short server identifier of a remote Server.
type ServerID uint16

// Depth is the specificity level of a URI.
type Depth uint8

const (
	DepthRoot Depth = iota
	DepthObject
	DepthInstance
	DepthResource
	DepthResourceInstance
)

// String returns the depth name.
func (d Depth) String() string {
	switch d {
	case DepthRoot:
		return "root"
	case DepthObject:
		return "object"
	case DepthInstance:
		return "instance"
	case DepthResource:
		return "resource"
	case DepthResourceInstance:
		return "resource-instance"
	default:
		return "unknown"
	}
}

// URI errors.
var (
	ErrInvalidURI = errors.New("invalid uri")
)

// URI addresses a node of the tree.
type URI struct {
	ObjectID           ID
	InstanceID         ID
	ResourceID         ID
	ResourceInstanceID ID
}

// RootURI returns the URI with every level unset.
func RootURI() URI {
	return URI{ObjectID: IDAll, InstanceID: IDAll, ResourceID: IDAll, ResourceInstanceID: IDAll}
}

// ObjectURI returns /objectID.
func ObjectURI(objectID ID) URI {
	u := RootURI()
	u.ObjectID = objectID
	return u
}

// InstanceURI returns /objectID/instanceID.
func InstanceURI(objectID, instanceID ID) URI {
	u := ObjectURI(objectID)
	u.InstanceID = instanceID
	return u
}

// ResourceURI returns /objectID/instanceID/resourceID.
func ResourceURI(objectID, instanceID, resourceID ID) URI {
	u := InstanceURI(objectID, instanceID)
	u.ResourceID = resourceID
	return u
}

// ResourceInstanceURI returns the fully qualified four-level URI.
func ResourceInstanceURI(objectID, instanceID, resourceID, resInstanceID ID) URI {
	u := ResourceURI(objectID, instanceID, resourceID)
	u.ResourceInstanceID = resInstanceID
	return u
}

// Depth returns how many leading levels of u are set.
func (u URI) Depth() Depth {
	switch {
	case !u.ObjectID.IsSet():
		return DepthRoot
	case !u.InstanceID.IsSet():
		return DepthObject
	case !u.ResourceID.IsSet():
		return DepthInstance
	case !u.ResourceInstanceID.IsSet():
		return DepthResource
	default:
		return DepthResourceInstance
	}
}

// HasObject reports whether the object level is set.
func (u URI) HasObject() bool { return u.ObjectID.IsSet() }

// HasInstance reports whether the instance level is set.
func (u URI) HasInstance() bool { return u.InstanceID.IsSet() }

// HasResource reports whether the resource level is set.
func (u URI) HasResource() bool { return u.ResourceID.IsSet() }

// HasResourceInstance reports whether the resource-instance level is set.
func (u URI) HasResourceInstance() bool { return u.ResourceInstanceID.IsSet() }

// Valid reports whether no level is set below an unset one.
func (u URI) Valid() bool {
	levels := [4]ID{u.ObjectID, u.InstanceID, u.ResourceID, u.ResourceInstanceID}
	unset := false
	for _, l := range levels {
		if !l.IsSet() {
			unset = true
			continue
		}
		if unset {
			return false
		}
	}
	return true
}

// Truncate returns u cut down to depth d.
func (u URI) Truncate(d Depth) URI {
	if d < DepthResourceInstance {
		u.ResourceInstanceID = IDAll
	}
	if d < DepthResource {
		u.ResourceID = IDAll
	}
	if d < DepthInstance {
		u.InstanceID = IDAll
	}
	if d < DepthObject {
		u.ObjectID = IDAll
	}
	return u
}

// Parent returns the URI one level up. The parent of the root is the root.
func (u URI) Parent() URI {
	d := u.Depth()
	if d == DepthRoot {
		return u
	}
	return u.Truncate(d - 1)
}

// Contains reports whether other is u itself or lies below u.
// Unset levels of u match anything.
func (u URI) Contains(other URI) bool {
	if u.ObjectID.IsSet() && u.ObjectID != other.ObjectID {
		return false
	}
	if u.InstanceID.IsSet() && u.InstanceID != other.InstanceID {
		return false
	}
	if u.ResourceID.IsSet() && u.ResourceID != other.ResourceID {
		return false
	}
	if u.ResourceInstanceID.IsSet() && u.ResourceInstanceID != other.ResourceInstanceID {
		return false
	}
	return true
}

// Overlaps reports whether u and other address intersecting subtrees, i.e.
// one contains the other.
func (u URI) Overlaps(other URI) bool {
	return u.Contains(other) || other.Contains(u)
}

// String formats u as a path, e.g. "/3/0/1". The root formats as "/".
func (u URI) String() string {
	if !u.ObjectID.IsSet() {
		return "/"
	}
	var b strings.Builder
	for _, id := range [4]ID{u.ObjectID, u.InstanceID, u.ResourceID, u.ResourceInstanceID} {
		if !id.IsSet() {
			break
		}
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}

// ParseURI parses a path such as "/3/0/1" or "3/0". An empty path or "/" is
// the root. IDAll is not a legal path segment.
func ParseURI(path string) (URI, error) {
	u := RootURI()
	path = strings.Trim(path, "/")
	if path == "" {
		return u, nil
	}
	parts := strings.Split(path, "/")
	if len(parts) > 4 {
		return u, fmt.Errorf("%w: too many segments in %q", ErrInvalidURI, path)
	}
	ids := make([]ID, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || ID(n) == IDAll {
			return u, fmt.Errorf("%w: bad segment %q", ErrInvalidURI, p)
		}
		ids[i] = ID(n)
	}
	return URIFromSegments(ids), nil
}

// URIFromSegments builds a URI from up to four leading identifiers.
func URIFromSegments(ids []ID) URI {
	u := RootURI()
	fields := []*ID{&u.ObjectID, &u.InstanceID, &u.ResourceID, &u.ResourceInstanceID}
	for i, id := range ids {
		if i >= len(fields) {
			break
		}
		*fields[i] = id
	}
	return u
}

// MustParseURI is like ParseURI but panics on error. Intended for tests and
// static tables.
func MustParseURI(path string) URI {
	u, err := ParseURI(path)
	if err != nil {
		panic(err)
	}
	return u
}
