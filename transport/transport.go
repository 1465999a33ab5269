// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package transport provides the bytewise channels over which an XMPP session
// engine talks to a server: plain TCP, TLS-on-connect, and BOSH (XEP-0124).
//
// A transport hides layering changes from the engine: after StartTLS or
// Compress succeeds, subsequent reads and writes transparently go through the
// new layer. The engine remains responsible for resetting its XML parser
// whenever a layer change requires a stream restart.
package transport // import "github.com/iuvei/exmpp/transport"

import (
	"crypto/tls"
	"errors"
	"io"
)

// Type identifies the concrete binding of a transport.
type Type int

// Supported transport bindings.
const (
	TCP Type = iota
	TLS
	BOSH
)

// String returns the lowercase conventional name of the binding.
func (t Type) String() string {
	switch t {
	case TCP:
		return "tcp"
	case TLS:
		return "tls"
	case BOSH:
		return "bosh"
	}
	return "unknown"
}

// Errors returned by transports.
var (
	ErrUnsupportedUpgrade = errors.New("transport: upgrade not supported on this transport")
	ErrAlreadySecure      = errors.New("transport: connection is already encrypted")
	ErrAlreadyCompressed  = errors.New("transport: connection is already compressed")
	ErrClosed             = errors.New("transport: connection closed")
)

// Common property names accepted by Property.
const (
	PropLocalAddr  = "local_addr"
	PropRemoteAddr = "remote_addr"
	PropEncrypted  = "encrypted"
	PropCompressed = "compressed"
	PropSessionID  = "sid"
)

// A Transport is a bytewise channel between the session engine and an XMPP
// server.
//
// Reads and writes may happen from different goroutines, but layering changes
// (StartTLS, Compress) must only be performed while no read is in flight; the
// session engine guarantees this by parking its reader around upgrades.
type Transport interface {
	io.ReadWriter

	// Close tears down the connection, unblocking any in-flight read.
	Close() error

	// StartTLS performs an in-place TLS handshake in the client role. After a
	// successful handshake all traffic flows through the TLS layer.
	StartTLS(cfg *tls.Config) error

	// Compress engages zlib stream compression on top of the current layers.
	// If TLS was negotiated first, TLS wraps compression on the wire.
	Compress() error

	// WhitespacePing emits a single space byte. Transports without a raw
	// stream representation (BOSH) treat this as a no-op.
	WhitespacePing() error

	// Type reports the binding of this transport. The reported type changes
	// from TCP to TLS after a successful StartTLS.
	Type() Type

	// Property queries transport metadata by name. The second return is false
	// when the property is not supported by this transport.
	Property(name string) (string, bool)
}
