package inspect

import (
	"strconv"
	"strings"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// normalizeName folds a name for lookup: lower case without spaces,
// dashes or underscores. "Sensor Value" and "sensor_value" both become
// "sensorvalue".
func normalizeName(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '-', '_':
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ResolveObjectName finds a registered Object by name.
func ResolveObjectName(catalog *model.Catalog, name string) (*model.Object, bool) {
	if catalog == nil {
		return nil, false
	}
	key := normalizeName(name)
	for _, obj := range catalog.Objects() {
		if obj.Name() != "" && normalizeName(obj.Name()) == key {
			return obj, true
		}
	}
	return nil, false
}

// ResolveResourceName finds a Resource of obj by name.
func ResolveResourceName(obj *model.Object, name string) (model.ID, bool) {
	if obj == nil {
		return 0, false
	}
	key := normalizeName(name)
	for _, r := range obj.Resources() {
		if r.Name != "" && normalizeName(r.Name) == key {
			return r.ID, true
		}
	}
	return 0, false
}

// ObjectName returns the display name of obj.
func ObjectName(obj *model.Object) string {
	if obj.Name() != "" {
		return obj.Name()
	}
	return "Object " + strconv.Itoa(int(obj.ID()))
}

// ResourceName returns the display name of res.
func ResourceName(res *model.ResourceDescriptor) string {
	if res.Name != "" {
		return res.Name
	}
	return "Resource " + strconv.Itoa(int(res.ID))
}
