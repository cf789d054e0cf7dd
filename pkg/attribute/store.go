package attribute

import (
	"fmt"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// Store errors.
var (
	ErrConflictingUpdate = fmt.Errorf("%w: attribute set and cleared in one request", status.ErrBadRequest)
	ErrNumericLevel      = fmt.Errorf("%w: numeric attributes require a resource", status.ErrBadRequest)
	ErrNumericType       = fmt.Errorf("%w: numeric attributes require a single numeric resource", status.ErrMethodNotAllowed)
	ErrRootAttributes    = fmt.Errorf("%w: attributes cannot be written on the root", status.ErrMethodNotAllowed)
)

type entry struct {
	server model.ServerID
	uri    model.URI
	set    Set
}

// Store holds Attribute Sets per Server and URI.
//
// Entries live in a slice looked up by predicate; stores stay small (a few
// entries per observed URI).
type Store struct {
	catalog *model.Catalog
	entries []entry
}

// NewStore creates a store validating URIs against catalog.
func NewStore(catalog *model.Catalog) *Store {
	return &Store{catalog: catalog}
}

func (s *Store) find(server model.ServerID, uri model.URI) int {
	for i := range s.entries {
		if s.entries[i].server == server && s.entries[i].uri == uri {
			return i
		}
	}
	return -1
}

// Write applies a Write-Attributes update for server on uri.
//
// Clears are applied to the existing entry first, then the new values are
// merged over it. The result is validated before anything is committed; on
// error the store is unchanged. An empty result removes the entry.
func (s *Store) Write(server model.ServerID, uri model.URI, u Update) error {
	if !uri.HasObject() {
		return ErrRootAttributes
	}
	if u.Set.Flags&u.Clear != 0 {
		return fmt.Errorf("%w: %s", ErrConflictingUpdate, u.Set.Flags&u.Clear)
	}

	key := uri.Truncate(model.DepthResource)
	_, _, res, err := s.catalog.FindResource(key)
	if err != nil {
		return fmt.Errorf("write attributes %s: %w", uri, err)
	}

	idx := s.find(server, key)
	var result Set
	if idx >= 0 {
		result = s.entries[idx].set
	}
	result.Clear(u.Clear)
	result.Apply(u.Set)

	if result.Flags&NumericFlags != 0 {
		if uri.Depth() != model.DepthResource {
			return fmt.Errorf("%w: %s", ErrNumericLevel, uri)
		}
		if !res.SupportsNumericAttributes() {
			return fmt.Errorf("%w: %s is %s", ErrNumericType, uri, res.Type)
		}
	}
	if err := result.Validate(); err != nil {
		return err
	}

	switch {
	case result.IsEmpty() && idx >= 0:
		s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	case result.IsEmpty():
	case idx >= 0:
		s.entries[idx].set = result
	default:
		s.entries = append(s.entries, entry{server: server, uri: key, set: result})
	}
	return nil
}

// Get returns the attributes for server on uri.
//
// Without inheritance only the entry assigned to uri itself is returned.
// With inheritance the Resource, Instance and Object entries above uri are
// merged, most specific first; a max period smaller than the min period is
// then dropped. defaults, when non-nil, fills periods still unset after the
// merge. The boolean reports whether any attribute is set.
func (s *Store) Get(server model.ServerID, uri model.URI, inherit bool, defaults *Set) (Set, bool) {
	key := uri.Truncate(model.DepthResource)
	if !inherit {
		var result Set
		if idx := s.find(server, key); idx >= 0 {
			result = s.entries[idx].set
		}
		if defaults != nil {
			result.Inherit(periodsOf(*defaults))
		}
		return result, !result.IsEmpty()
	}

	var result Set
	for d := key.Depth(); d >= model.DepthObject; d-- {
		if idx := s.find(server, key.Truncate(d)); idx >= 0 {
			result.Inherit(s.entries[idx].set)
		}
	}
	if defaults != nil {
		result.Inherit(periodsOf(*defaults))
	}
	if result.Has(MaxPeriod) {
		if _, ok := result.EffectiveMaxPeriod(); !ok {
			result.Clear(MaxPeriod)
		}
	}
	return result, !result.IsEmpty()
}

func periodsOf(s Set) Set {
	s.Clear(NumericFlags)
	return s
}

// RemoveAll drops every entry of server.
func (s *Store) RemoveAll(server model.ServerID) {
	s.filter(func(e entry) bool { return e.server == server })
}

// RemoveUnder drops the entries of every server on uri and below it.
func (s *Store) RemoveUnder(uri model.URI) {
	s.filter(func(e entry) bool { return uri.Contains(e.uri) })
}

func (s *Store) filter(drop func(entry) bool) {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !drop(e) {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = entry{}
	}
	s.entries = kept
}

// Assigned lists the URIs carrying an entry for server, in write order.
func (s *Store) Assigned(server model.ServerID) []model.URI {
	var out []model.URI
	for _, e := range s.entries {
		if e.server == server {
			out = append(out, e.uri)
		}
	}
	return out
}

// Len returns the number of entries across all servers.
func (s *Store) Len() int {
	return len(s.entries)
}
