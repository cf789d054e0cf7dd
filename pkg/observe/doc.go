// Package observe implements observations and notifications.
//
// A Server starts an observation by reading one or more URIs with the
// Observe option. The Engine keeps the observation per Server, identified
// by the request token, until the Server cancels it, the observed Instance
// is deleted or the Server is removed.
//
// # Attributes
//
// Each target URI is governed by its effective Attribute Set, inherited
// from the Resource, Instance and Object levels and completed with the
// Server's default periods:
//   - pmin: minimum seconds between notifications
//   - pmax: maximum seconds without a notification
//   - gt, lt: thresholds whose crossing triggers a notification
//   - st: minimum change that triggers a notification
//
// A composite observation uses the largest pmin and the smallest pmax of
// its targets. A pmax smaller than pmin is ignored.
//
// # Evaluation
//
// Changes reported with MarkDirty only flag the observation. Tick evaluates
// flagged observations once the minimum period has elapsed and sends a
// notification when a threshold or step condition fires, or unconditionally
// for non-numeric and composite targets. Independently, an observation
// whose maximum period has elapsed is notified with fresh values.
//
// Tick returns how long the scheduler may sleep before the next deadline.
package observe
