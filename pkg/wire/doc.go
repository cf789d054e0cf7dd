// Package wire defines the message envelope exchanged with the transport
// layer and the payload codecs used by the device-management core.
//
// The transport (reliable delivery, retransmission, block-wise transfer) is
// not part of this module; it hands complete Messages to the core and
// transmits the Messages the core produces. Codes, content formats and
// option semantics follow CoAP (RFC 7252, RFC 7641).
//
// # Payload Formats
//
// Values are encoded as SenML-CBOR records (content format 112) by default.
// Single Resources can also be carried as text/plain or
// application/octet-stream. Discover responses use CoRE Link Format (40).
package wire
