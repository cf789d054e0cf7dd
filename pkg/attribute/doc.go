// Package attribute implements the per-Server Attribute Store.
//
// Attributes govern when notifications are sent for an observed URI:
//
//	pmin  minimum period between notifications (seconds)
//	pmax  maximum period without a notification (seconds)
//	gt    notify when the value crosses above or below this threshold
//	lt    notify when the value crosses above or below this threshold
//	st    notify when the value moved by at least this amount
//
// Entries are attached to an Object, Instance or Resource URI and a Server.
// Effective attributes for a URI are resolved by inheritance: a Resource
// entry wins over its Instance entry, which wins over its Object entry.
package attribute
