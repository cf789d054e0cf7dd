// Package inspect provides catalog inspection utilities for the console.
//
// The inspect package offers:
//   - Parsing path expressions (e.g., "101:temperature/0/sensorValue")
//   - Resolving Object and Resource names to numeric ids
//   - Building and formatting a tree of Objects, Instances and values
package inspect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// Path errors.
var (
	ErrEmptyPath     = errors.New("empty path")
	ErrInvalidPath   = errors.New("invalid path format")
	ErrInvalidNumber = errors.New("invalid numeric value in path")
	ErrUnknownName   = errors.New("unknown name in path")
)

// Path represents a parsed inspection path.
// Format: [server:]object[/instance[/resource[/resourceInstance]]]
type Path struct {
	// Server is the Server short id given as prefix, 0 when absent.
	Server model.ServerID

	// URI is the addressed node.
	URI model.URI

	// Raw stores the original input string.
	Raw string
}

// ParsePath parses a path string into a Path.
//
// Supported formats:
//   - "/" - the root
//   - "3/0/0" or "/3/0/0" - numeric path
//   - "device/0/manufacturer" - names resolved against catalog
//   - "101:3303/0" - path with a Server prefix
//
// Numeric values can be decimal or hex (0x prefix). Object names are
// matched case-insensitively ignoring spaces, dashes and underscores, as
// are Resource names of the resolved Object. catalog may be nil, in which
// case only numeric paths are accepted.
func ParsePath(input string, catalog *model.Catalog) (*Path, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyPath
	}
	p := &Path{Raw: input, URI: model.RootURI()}

	if prefix, rest, ok := strings.Cut(input, ":"); ok {
		id, err := parseID(prefix)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("server: %w: %s", ErrInvalidNumber, prefix)
		}
		p.Server = model.ServerID(id)
		input = rest
	}

	input = strings.TrimPrefix(input, "/")
	if input == "" {
		return p, nil
	}
	if strings.Contains(input, "//") || strings.HasSuffix(input, "/") {
		return nil, ErrInvalidPath
	}
	parts := strings.Split(input, "/")
	if len(parts) > 4 {
		return nil, ErrInvalidPath
	}

	objID, obj, err := parseObject(parts[0], catalog)
	if err != nil {
		return nil, fmt.Errorf("object: %w", err)
	}
	p.URI = model.ObjectURI(objID)
	if len(parts) == 1 {
		return p, nil
	}

	instID, err := parseID(parts[1])
	if err != nil {
		return nil, fmt.Errorf("instance: %w", err)
	}
	p.URI = model.InstanceURI(objID, instID)
	if len(parts) == 2 {
		return p, nil
	}

	resID, err := parseResource(parts[2], obj)
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}
	p.URI = model.ResourceURI(objID, instID, resID)
	if len(parts) == 3 {
		return p, nil
	}

	riID, err := parseID(parts[3])
	if err != nil {
		return nil, fmt.Errorf("resource instance: %w", err)
	}
	p.URI = model.ResourceInstanceURI(objID, instID, resID, riID)
	return p, nil
}

// String returns the path as a string.
func (p *Path) String() string {
	if p.Server != 0 {
		return strconv.Itoa(int(p.Server)) + ":" + p.URI.String()
	}
	return p.URI.String()
}

// parseObject resolves an object segment. The Object is nil when it is
// not registered in catalog.
func parseObject(s string, catalog *model.Catalog) (model.ID, *model.Object, error) {
	if id, err := parseID(s); err == nil {
		var obj *model.Object
		if catalog != nil {
			obj, _ = catalog.Object(id)
		}
		return id, obj, nil
	}
	if obj, ok := ResolveObjectName(catalog, s); ok {
		return obj.ID(), obj, nil
	}
	return 0, nil, fmt.Errorf("%w: %s", ErrUnknownName, s)
}

// parseResource resolves a resource segment within obj.
func parseResource(s string, obj *model.Object) (model.ID, error) {
	if id, err := parseID(s); err == nil {
		return id, nil
	}
	if id, ok := ResolveResourceName(obj, s); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownName, s)
}

// parseID parses an identifier from a decimal or hex string. The wildcard
// value 65535 is rejected.
func parseID(s string) (model.ID, error) {
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 16)
	} else {
		v, err = strconv.ParseUint(s, 10, 16)
	}
	if err != nil || model.ID(v) == model.IDAll {
		return 0, fmt.Errorf("%w: %s", ErrInvalidNumber, s)
	}
	return model.ID(v), nil
}
