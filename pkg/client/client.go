package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/lwm2m-go/pkg/attribute"
	"github.com/mash-protocol/lwm2m-go/pkg/data"
	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/observe"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// Client is the device-management core of one LwM2M client.
type Client struct {
	mu sync.Mutex

	config    Config
	sessionID string

	guard   *model.CallbackGuard
	catalog *model.Catalog
	data    *data.Engine
	attrs   *attribute.Store
	servers *server.Registry
	codec   *wire.MultiCodec
	observe *observe.Engine
	router  *dm.Router

	eventHandlers []EventHandler

	// changes collects ResourceChanged reports until the next locked
	// entry point applies them. It has its own lock so Providers may
	// report from inside their callbacks.
	changesMu sync.Mutex
	changes   []model.URI

	// wake interrupts Run when new work may be due.
	wake chan struct{}
}

// New creates a Client sending through sender.
func New(sender observe.Sender, config Config) (*Client, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: nil sender", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxSleep == 0 {
		config.MaxSleep = DefaultMaxSleep
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	c := &Client{
		config:    config,
		sessionID: uuid.New().String(),
		guard:     &model.CallbackGuard{},
		catalog:   model.NewCatalog(),
		servers:   server.NewRegistry(),
		codec:     wire.NewMultiCodec(config.DefaultFormat),
		wake:      make(chan struct{}, 1),
	}
	c.data = data.NewEngine(c.catalog, c.guard, data.Config{Logger: config.Logger})
	c.attrs = attribute.NewStore(c.catalog)
	c.observe = observe.NewEngine(c.data, c.attrs, c.servers, c.codec, sender, c.guard, observe.Config{
		Logger:           config.Logger,
		ProtocolLogger:   config.ProtocolLogger,
		SessionID:        c.sessionID,
		RecentMessageIDs: config.RecentMessageIDs,
		Clock:            config.Clock,
	})
	c.data.SetListener(dataListener{c})
	c.router = dm.NewRouter(c.data, c.attrs, c.observe, c.servers, c.codec, sender, dm.Config{
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
		SessionID:      c.sessionID,
		Clock:          config.Clock,
	})
	return c, nil
}

// SessionID identifies this Client run in protocol logs.
func (c *Client) SessionID() string {
	return c.sessionID
}

// OnEvent registers a handler for Client events. Handlers run on their own
// goroutine.
func (c *Client) OnEvent(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandlers = append(c.eventHandlers, handler)
}

func (c *Client) emitEvent(event Event) {
	for _, handler := range c.eventHandlers {
		go handler(event)
	}
}

func (c *Client) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}

// signal wakes Run without blocking.
func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// AddObject registers obj and its Instances.
func (c *Client) AddObject(obj *model.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.catalog.AddObject(obj); err != nil {
		return fmt.Errorf("add object %d: %w", obj.ID(), err)
	}
	c.markUpdateDue(model.ObjectURI(obj.ID()))
	c.debugLog("client: object added", "object", obj.ID(), "instances", len(obj.Instances()))
	return nil
}

// RemoveObject unregisters the Object with id. Observations and attributes
// on the Object are dropped.
func (c *Client) RemoveObject(id model.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.catalog.RemoveObject(id); err != nil {
		return fmt.Errorf("remove object %d: %w", id, err)
	}
	uri := model.ObjectURI(id)
	c.dropUnder(uri)
	c.markUpdateDue(uri)
	c.debugLog("client: object removed", "object", id)
	return nil
}

// AddInstance adds an Instance the application created itself. resources
// lists the Resources of a heterogeneous Instance and is ignored otherwise.
// It must not be called from a Provider callback.
func (c *Client) AddInstance(objectID, instanceID model.ID, resources []model.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, err := c.catalog.Object(objectID)
	if err != nil {
		return fmt.Errorf("add instance /%d/%d: %w", objectID, instanceID, err)
	}
	if obj.Kind() != model.MultipleInstanceHeterogeneous {
		resources = nil
	}
	if err := obj.AddInstance(instanceID, resources); err != nil {
		return fmt.Errorf("add instance /%d/%d: %w", objectID, instanceID, err)
	}
	uri := model.InstanceURI(objectID, instanceID)
	c.observe.MarkDirty(uri)
	c.markUpdateDue(uri)
	c.signal()
	return nil
}

// RemoveInstance removes an Instance the application deleted itself.
// Observations and attributes on the Instance are dropped. It must not be
// called from a Provider callback.
func (c *Client) RemoveInstance(objectID, instanceID model.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, err := c.catalog.Object(objectID)
	if err != nil {
		return fmt.Errorf("remove instance /%d/%d: %w", objectID, instanceID, err)
	}
	if err := obj.RemoveInstance(instanceID); err != nil {
		return fmt.Errorf("remove instance /%d/%d: %w", objectID, instanceID, err)
	}
	uri := model.InstanceURI(objectID, instanceID)
	c.dropUnder(uri)
	c.observe.MarkDirty(model.ObjectURI(objectID))
	c.markUpdateDue(uri)
	c.signal()
	return nil
}

// ResourceChanged reports that the application changed a Resource value.
// IDAll may be passed for the instance or resource to report a wider
// change.
//
// ResourceChanged does not wait for the Client, so a Provider may call it
// from inside its callbacks. The change is applied before the next Step.
func (c *Client) ResourceChanged(objectID, instanceID, resourceID model.ID) {
	uri := model.ResourceURI(objectID, instanceID, resourceID)
	switch {
	case !instanceID.IsSet():
		uri = model.ObjectURI(objectID)
	case !resourceID.IsSet():
		uri = model.InstanceURI(objectID, instanceID)
	}
	c.changesMu.Lock()
	c.changes = append(c.changes, uri)
	c.changesMu.Unlock()
	c.signal()
}

// flushChanges marks every reported change dirty. c.mu must be held.
func (c *Client) flushChanges() {
	c.changesMu.Lock()
	changes := c.changes
	c.changes = nil
	c.changesMu.Unlock()
	for _, uri := range changes {
		c.observe.MarkDirty(uri)
	}
}

// Apply runs fn with exclusive access to the Providers and reports every
// uri in changed as modified when fn succeeds. It must not be called from
// a Provider callback.
func (c *Client) Apply(fn func() error, changed ...model.URI) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.flushChanges()
	if err := fn(); err != nil {
		return err
	}
	for _, uri := range changed {
		c.observe.MarkDirty(uri)
	}
	if len(changed) > 0 {
		c.signal()
	}
	return nil
}

// ReadFunc reads values as the application.
type ReadFunc func(ctx context.Context, uri model.URI) ([]model.Value, error)

// View runs fn with exclusive access to the catalog.
func (c *Client) View(fn func(catalog *model.Catalog, read ReadFunc) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.catalog, func(ctx context.Context, uri model.URI) ([]model.Value, error) {
		return c.data.Read(ctx, 0, uri)
	})
}

// dropUnder removes the observations and attributes at and below uri.
func (c *Client) dropUnder(uri model.URI) {
	c.attrs.RemoveUnder(uri)
	if n := c.observe.RemoveUnder(uri); n > 0 {
		c.emitEvent(Event{Type: EventObservationsDropped, URI: uri, Count: n})
	}
}

// markUpdateDue flags every registered Server for a registration update.
func (c *Client) markUpdateDue(uri model.URI) {
	before := c.pendingUpdates()
	c.servers.MarkUpdateDue()
	c.emitUpdates(before, uri)
}

func (c *Client) pendingUpdates() map[model.ServerID]bool {
	due := make(map[model.ServerID]bool)
	for _, s := range c.servers.All() {
		if s.UpdateDue {
			due[s.ShortID] = true
		}
	}
	return due
}

// emitUpdates emits EventUpdateDue for every Server flagged since before.
func (c *Client) emitUpdates(before map[model.ServerID]bool, uri model.URI) {
	for _, s := range c.servers.All() {
		if s.UpdateDue && !before[s.ShortID] {
			c.emitEvent(Event{Type: EventUpdateDue, Server: s.ShortID, URI: uri})
		}
	}
}

// ---------------------------------------------------------------------------
// Servers
// ---------------------------------------------------------------------------

// AddServer adds a Server in StatusUnregistered.
func (c *Client) AddServer(cfg server.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.servers.Add(cfg); err != nil {
		return err
	}
	c.logServer(cfg.ShortID, "", server.StatusUnregistered.String(), "added")
	return nil
}

// RemoveServer drops a Server with its attributes and observations.
func (c *Client) RemoveServer(id model.ServerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	srv, err := c.servers.Get(id)
	if err != nil {
		return err
	}
	n := len(c.observe.Observations(id))
	c.observe.RemoveServer(id)
	c.attrs.RemoveAll(id)
	if err := c.servers.Remove(id); err != nil {
		return err
	}
	c.logServer(id, srv.Status.String(), "REMOVED", "")
	if n > 0 {
		c.emitEvent(Event{Type: EventObservationsDropped, Server: id, Count: n})
	}
	return nil
}

// SetServerStatus records the registration status reported by the
// registration layer.
func (c *Client) SetServerStatus(id model.ServerID, status server.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	srv, err := c.servers.Get(id)
	if err != nil {
		return err
	}
	if srv.Status == status {
		return nil
	}
	old := srv.Status
	srv.Status = status
	c.logServer(id, old.String(), status.String(), "")
	c.emitEvent(Event{Type: EventServerStatusChanged, Server: id, Status: status})
	if status.AcceptsRequests() {
		c.signal()
	}
	return nil
}

// Server returns a copy of the Server with id.
func (c *Client) Server(id model.ServerID) (server.Server, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	srv, err := c.servers.Get(id)
	if err != nil {
		return server.Server{}, err
	}
	return *srv, nil
}

// Servers returns copies of every Server.
func (c *Client) Servers() []server.Server {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]server.Server, 0, len(c.servers.All()))
	for _, s := range c.servers.All() {
		out = append(out, *s)
	}
	return out
}

// TakeUpdateDue reports whether a registration update is due for Server id
// and clears the flag.
func (c *Client) TakeUpdateDue(id model.ServerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	srv, err := c.servers.Get(id)
	if err != nil {
		return false
	}
	due := srv.UpdateDue
	srv.UpdateDue = false
	return due
}

func (c *Client) logServer(id model.ServerID, oldState, newState, reason string) {
	c.debugLog("client: server state", "server", id, "from", oldState, "to", newState)
	if c.config.ProtocolLogger == nil {
		return
	}
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp: c.config.Clock(),
		SessionID: c.sessionID,
		ServerID:  uint16(id),
		Layer:     log.LayerClient,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityServer,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// HandleMessage processes a message received from Server serverID.
//
// Requests are answered through the Sender. A Reset cancels the
// observation whose notification it refers to. Other messages are
// ignored.
func (c *Client) HandleMessage(ctx context.Context, serverID model.ServerID, msg *wire.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.flushChanges()

	switch {
	case msg.Type == wire.Reset:
		err := c.router.HandleReset(serverID, msg.MessageID)
		if errors.Is(err, observe.ErrNotObserved) {
			return nil
		}
		return err

	case msg.IsRequest():
		before := c.pendingUpdates()
		err := c.router.HandleRequest(ctx, serverID, msg)
		c.emitUpdates(before, model.RootURI())
		c.signal()
		return err

	default:
		c.debugLog("client: ignoring message", "server", serverID, "message", msg.String())
		return nil
	}
}

// ObservationInfo describes an active observation.
type ObservationInfo struct {
	Server  model.ServerID
	Token   []byte
	Targets []model.URI
	Counter uint32
	Pending bool
	Summary string
}

// Observations lists the observations of Server id, most recent first.
func (c *Client) Observations(id model.ServerID) []ObservationInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushChanges()
	list := c.observe.Observations(id)
	out := make([]ObservationInfo, 0, len(list))
	for _, obs := range list {
		info := ObservationInfo{
			Server:  obs.Server,
			Token:   append([]byte(nil), obs.Token...),
			Counter: obs.Counter,
			Pending: obs.Pending(),
			Summary: obs.String(),
		}
		for _, t := range obs.Targets {
			info.Targets = append(info.Targets, t.URI)
		}
		out = append(out, info)
	}
	return out
}

// ---------------------------------------------------------------------------
// Scheduling
// ---------------------------------------------------------------------------

// Step sends the notifications that are due and returns how long the
// scheduler may sleep before calling Step again.
func (c *Client) Step(ctx context.Context) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushChanges()
	hint, ok := c.observe.Tick(ctx)
	if !ok || hint > c.config.MaxSleep {
		return c.config.MaxSleep
	}
	return hint
}

// minRunInterval bounds how often Run steps.
const minRunInterval = 10 * time.Millisecond

// Run calls Step until ctx is done, sleeping as Step suggests and waking
// early when messages arrive or values change.
func (c *Client) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-c.wake:
		}
		d := max(c.Step(ctx), minRunInterval)
		timer.Reset(d)
	}
}

// dataListener routes data engine changes into the observation engine.
// It runs with c.mu held.
type dataListener struct{ c *Client }

func (l dataListener) MarkDirty(uri model.URI) {
	l.c.observe.MarkDirty(uri)
}

func (l dataListener) InstanceRemoved(uri model.URI) {
	l.c.dropUnder(uri)
}
