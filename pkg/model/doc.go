// Package model implements the LwM2M resource data model.
//
// # Hierarchy
//
// The client exposes a three-level tree to remote Servers:
//
//	Catalog > Object > Instance > Resource [> Resource Instance]
//
// An Object describes a class of functionality (e.g. Device /3, Temperature
// /3303) through a static list of Resource Descriptors. Instances are the
// concrete occurrences of an Object; a heterogeneous Object lets every
// Instance expose its own subset of Resources.
//
// # Addressing
//
// Every node is addressed by a URI of up to four Identifiers:
//
//	/objectID/instanceID/resourceID/resourceInstanceID
//
// IDAll (65535) marks an unset level. The depth of a URI is the number of
// leading levels that are set.
//
// # Values
//
// Object state lives in the application, not in this package. An Object
// carries a Provider that fills, stores and executes Values on request;
// optional capabilities (instance creation, deletion, multi-instance
// enumeration) are discovered through interface assertions.
//
// # Concurrency
//
// Nothing in this package locks. The enclosing client serialises every call
// into the model, so providers are only ever invoked from one goroutine at a
// time.
package model
