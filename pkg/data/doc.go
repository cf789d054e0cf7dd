// Package data implements the Data Access Engine: it expands request URIs
// into Resource Value lists, validates payloads against the Resource
// Catalog and calls the owning Object's Provider.
//
// Every Provider call is made inside the client's CallbackGuard with the
// requesting Server attached to the context (see model.ServerFromContext).
package data
