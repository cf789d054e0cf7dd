package model

import (
	"slices"
)

// Catalog is the registry of Objects exposed by the client.
type Catalog struct {
	objects []*Object // sorted by id
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

func (c *Catalog) search(id ID) (int, bool) {
	return slices.BinarySearchFunc(c.objects, id, func(o *Object, id ID) int {
		return int(o.ID()) - int(id)
	})
}

// AddObject registers obj.
func (c *Catalog) AddObject(obj *Object) error {
	i, found := c.search(obj.ID())
	if found {
		return ErrObjectExists
	}
	c.objects = slices.Insert(c.objects, i, obj)
	return nil
}

// RemoveObject unregisters the Object with id.
func (c *Catalog) RemoveObject(id ID) (*Object, error) {
	i, found := c.search(id)
	if !found {
		return nil, ErrObjectNotFound
	}
	obj := c.objects[i]
	c.objects = slices.Delete(c.objects, i, i+1)
	return obj, nil
}

// Object returns the Object with id.
func (c *Catalog) Object(id ID) (*Object, error) {
	i, found := c.search(id)
	if !found {
		return nil, ErrObjectNotFound
	}
	return c.objects[i], nil
}

// Objects returns every registered Object sorted by id.
func (c *Catalog) Objects() []*Object {
	return c.objects
}

// FindObject resolves the object level of uri.
func (c *Catalog) FindObject(uri URI) (*Object, error) {
	if !uri.HasObject() {
		return nil, ErrObjectNotFound
	}
	return c.Object(uri.ObjectID)
}

// FindInstance resolves the object and instance levels of uri. The returned
// Instance is nil when uri has no instance level.
func (c *Catalog) FindInstance(uri URI) (*Object, *Instance, error) {
	obj, err := c.FindObject(uri)
	if err != nil {
		return nil, nil, err
	}
	if !uri.HasInstance() {
		return obj, nil, nil
	}
	inst, err := obj.Instance(uri.InstanceID)
	if err != nil {
		return nil, nil, err
	}
	return obj, inst, nil
}

// FindResource resolves uri down to the resource level. Levels unset in uri
// are returned as nil. A Resource that exists on the Object but not on the
// addressed heterogeneous Instance is reported as not found.
func (c *Catalog) FindResource(uri URI) (*Object, *Instance, *ResourceDescriptor, error) {
	obj, inst, err := c.FindInstance(uri)
	if err != nil {
		return nil, nil, nil, err
	}
	if !uri.HasResource() {
		return obj, inst, nil, nil
	}
	res, err := obj.Resource(uri.ResourceID)
	if err != nil {
		return nil, nil, nil, err
	}
	if inst != nil && !obj.HasResource(inst, uri.ResourceID) {
		return nil, nil, nil, ErrResourceNotFound
	}
	return obj, inst, res, nil
}

// Exists reports whether uri resolves (resource-instance level excluded).
func (c *Catalog) Exists(uri URI) bool {
	if !uri.HasObject() {
		return true
	}
	_, _, _, err := c.FindResource(uri)
	return err == nil
}
