// Package server tracks the remote LwM2M Servers known to the client and
// their registration status.
//
// Registration itself is handled elsewhere; this package only records the
// status the registration layer reports.
package server

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// Status is the registration status of a Server.
type Status uint8

const (
	// StatusUnregistered covers every state in which requests are ignored.
	StatusUnregistered Status = iota

	// StatusRegistered means the Server accepted the registration.
	StatusRegistered

	// StatusUpdatePending means a registration update is due or in flight.
	StatusUpdatePending
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusUnregistered:
		return "UNREGISTERED"
	case StatusRegistered:
		return "REGISTERED"
	case StatusUpdatePending:
		return "UPDATE_PENDING"
	default:
		return "UNKNOWN"
	}
}

// AcceptsRequests reports whether device-management requests are served.
func (s Status) AcceptsRequests() bool {
	return s == StatusRegistered || s == StatusUpdatePending
}

// Registry errors.
var (
	ErrServerNotFound = errors.New("server not found")
	ErrServerExists   = errors.New("server already added")
	ErrInvalidConfig  = errors.New("invalid server configuration")
)

// Config configures one Server.
type Config struct {
	// ShortID identifies the Server.
	ShortID model.ServerID

	// ReliableNotifications sends notifications as confirmable messages.
	ReliableNotifications bool

	// DefaultMinPeriod is used when no pmin attribute applies. Zero means
	// unset.
	DefaultMinPeriod uint32

	// DefaultMaxPeriod is used when no pmax attribute applies. Zero means
	// unset.
	DefaultMaxPeriod uint32
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ShortID == 0 || c.ShortID == model.ServerID(model.IDAll) {
		return fmt.Errorf("%w: short id %d is reserved", ErrInvalidConfig, c.ShortID)
	}
	return nil
}

// Server is one remote Server.
type Server struct {
	Config
	Status Status

	// UpdateDue is set when the registration layer should send an update
	// because the Instance population changed.
	UpdateDue bool
}

// Registry holds the Servers in the order they were added.
type Registry struct {
	servers []*Server
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a Server in StatusUnregistered.
func (r *Registry) Add(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := r.Get(cfg.ShortID); err == nil {
		return nil, fmt.Errorf("%w: %d", ErrServerExists, cfg.ShortID)
	}
	s := &Server{Config: cfg}
	r.servers = append(r.servers, s)
	return s, nil
}

// Remove drops a Server.
func (r *Registry) Remove(id model.ServerID) error {
	i := slices.IndexFunc(r.servers, func(s *Server) bool { return s.ShortID == id })
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrServerNotFound, id)
	}
	r.servers = slices.Delete(r.servers, i, i+1)
	return nil
}

// Get returns the Server with the given short id.
func (r *Registry) Get(id model.ServerID) (*Server, error) {
	for _, s := range r.servers {
		if s.ShortID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrServerNotFound, id)
}

// All returns every Server.
func (r *Registry) All() []*Server {
	return r.servers
}

// MarkUpdateDue flags every registered Server for a registration update.
func (r *Registry) MarkUpdateDue() {
	for _, s := range r.servers {
		if s.Status.AcceptsRequests() {
			s.UpdateDue = true
		}
	}
}
