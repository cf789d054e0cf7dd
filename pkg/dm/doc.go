// Package dm routes device-management requests from Servers.
//
// The Router maps each CoAP request onto the data engine, the Attribute
// Store or the observation engine and sends exactly one response, except
// for non-confirmable requests that succeed without content:
//
//	GET     Read, Observe (Observe option) or Discover (Accept: link-format)
//	POST    Create on an Object, partial Write on an Instance, Execute on a Resource
//	PUT     Write-Attributes (Uri-Query) or replacing Write
//	DELETE  Delete an Instance
//
// Requests from Servers that are not registered are dropped silently.
package dm
